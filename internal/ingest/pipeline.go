// Package ingest orchestrates the batch pipeline: classify each candidate
// file, apply the kind-specific transform, and persist through the tiered
// store, reporting per-file outcomes and overall progress.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/store"
)

// File is one candidate upload.
type File struct {
	Name        string
	ContentType string
	Payload     []byte
}

// Status classifies a per-file outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FileResult reports one file's outcome within a batch. Warning is set when
// the file was accepted but persisted in a degraded form.
type FileResult struct {
	Name    string       `json:"name"`
	Status  Status       `json:"status"`
	Reason  string       `json:"reason,omitempty"`
	Warning string       `json:"warning,omitempty"`
	Asset   *media.Asset `json:"asset,omitempty"`
}

// BatchResult summarizes a whole batch.
type BatchResult struct {
	Results   []FileResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
}

// ProgressFunc receives the percentage of files completed so far.
type ProgressFunc func(percent int)

// Options tunes one batch.
type Options struct {
	// MaxFileSize skips any file above this many bytes; <= 0 disables the
	// check.
	MaxFileSize int64
	// AllowedKinds restricts accepted kinds; nil allows all three.
	AllowedKinds []media.Kind
	// Progress, when set, is called after each file completes.
	Progress ProgressFunc
}

// Pipeline runs ingestion batches. Files are processed sequentially so
// heavy transcodes never compete for the same decoding resources.
type Pipeline struct {
	store  *store.TieredStore
	images *media.ImageOptimizer
	audio  *media.AudioRepairer
	video  *media.VideoProcessor
	logger *slog.Logger
}

func NewPipeline(log *slog.Logger, s *store.TieredStore, images *media.ImageOptimizer, audio *media.AudioRepairer, video *media.VideoProcessor) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:  s,
		images: images,
		audio:  audio,
		video:  video,
		logger: log.With(slog.String("service", "ingest")),
	}
}

// Run ingests the batch in file order. A single file's failure never fails
// the batch; it is recorded in that file's result and processing moves on.
func (p *Pipeline) Run(ctx context.Context, files []File, opts Options) BatchResult {
	batch := BatchResult{Results: make([]FileResult, 0, len(files))}
	for i, file := range files {
		result := p.ingestOne(ctx, file, opts)
		batch.Results = append(batch.Results, result)
		switch result.Status {
		case StatusOK:
			batch.Succeeded++
		case StatusSkipped:
			batch.Skipped++
		default:
			batch.Failed++
		}
		if opts.Progress != nil {
			opts.Progress((i + 1) * 100 / len(files))
		}
	}
	p.logger.Info("batch finished",
		slog.Int("files", len(files)),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("skipped", batch.Skipped),
		slog.Int("failed", batch.Failed))
	return batch
}

func (p *Pipeline) ingestOne(ctx context.Context, file File, opts Options) FileResult {
	if opts.MaxFileSize > 0 && int64(len(file.Payload)) > opts.MaxFileSize {
		p.logger.Warn("file exceeds maximum size, skipping",
			slog.String("name", file.Name),
			slog.Int("size", len(file.Payload)))
		return FileResult{
			Name:   file.Name,
			Status: StatusSkipped,
			Reason: fmt.Sprintf("exceeds maximum size of %d bytes", opts.MaxFileSize),
		}
	}

	declared := media.NormalizeMime(file.ContentType)
	if declared == "" || declared == "application/octet-stream" {
		declared = media.SniffContentType(file.Payload)
	}
	kind, err := media.Classify(media.FileDescriptor{
		Name:        file.Name,
		ContentType: declared,
		ByteSize:    int64(len(file.Payload)),
	}, opts.AllowedKinds)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedFormat) {
			return FileResult{Name: file.Name, Status: StatusSkipped, Reason: err.Error()}
		}
		return FileResult{Name: file.Name, Status: StatusFailed, Reason: err.Error()}
	}

	asset := media.Asset{
		ID:           uuid.NewString(),
		DisplayName:  file.Name,
		OriginalName: file.Name,
		Kind:         kind,
		IngestedAt:   time.Now().UTC(),
	}

	var payload []byte
	var mime string
	switch kind {
	case media.KindImage:
		optimized, err := p.images.Optimize(file.Payload)
		if err != nil {
			return FileResult{Name: file.Name, Status: StatusFailed, Reason: err.Error()}
		}
		payload = optimized.Payload
		mime = optimized.Mime
		asset.DisplayRef = optimized.DataURL
		asset.Optimized = true

	case media.KindAudio:
		repaired := p.audio.Repair(file.Payload, file.ContentType, file.Name)
		payload = repaired.Payload
		mime = repaired.Mime
		asset.DisplayRef = repaired.DataURL

	case media.KindVideo:
		artifacts, err := p.video.Process(ctx, file.Payload, file.ContentType, file.Name)
		if err != nil {
			return FileResult{Name: file.Name, Status: StatusFailed, Reason: err.Error()}
		}
		payload = artifacts.FullVideo
		mime = artifacts.Mime
		asset.DisplayRef = artifacts.ThumbnailDataURL
		asset.Optimized = artifacts.Transcoded
	}
	asset.ByteSize = int64(len(payload))

	written, receipt, err := p.store.Write(ctx, asset, payload, mime)
	if err != nil {
		return FileResult{Name: file.Name, Status: StatusFailed, Reason: err.Error()}
	}
	if !receipt.VaultOK && !receipt.VaultSkipped {
		p.logger.Warn("asset persisted without its vault copy",
			slog.String("id", written.ID),
			slog.String("name", file.Name))
		return FileResult{
			Name:    file.Name,
			Status:  StatusOK,
			Warning: "stored without its full payload: the durable copy could not be written",
			Asset:   &written,
		}
	}
	return FileResult{Name: file.Name, Status: StatusOK, Asset: &written}
}
