package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/craftpage/mediavault/internal/media"
)

// legacyRecord matches the deprecated flat gallery store: one JSON array of
// self-contained records with the payload embedded as a data URL.
type legacyRecord struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Added   string `json:"added,omitempty"`
}

// MigrateLegacy performs the one-time import of records from the deprecated
// flat store at path, re-routing each through Write so the normal tiering
// policy applies. Unparseable records are skipped with a warning; a missing
// file is not an error. Returns the number of assets migrated.
func (s *TieredStore) MigrateLegacy(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read legacy store: %w", err)
	}
	var records []legacyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return 0, fmt.Errorf("decode legacy store: %w", err)
	}

	migrated := 0
	for _, record := range records {
		kind, err := media.Classify(media.FileDescriptor{
			Name:        record.Name,
			ContentType: media.MimeOfDataURL(record.Content),
		}, nil)
		if err != nil {
			s.logger.Warn("skipping unclassifiable legacy record",
				slog.String("name", record.Name), slog.Any("error", err))
			continue
		}
		payload, err := media.DecodeDataURL(record.Content)
		if err != nil {
			s.logger.Warn("skipping undecodable legacy record",
				slog.String("name", record.Name), slog.Any("error", err))
			continue
		}

		ingestedAt := time.Now().UTC()
		if record.Added != "" {
			if parsed, parseErr := time.Parse(time.RFC3339, record.Added); parseErr == nil {
				ingestedAt = parsed
			}
		}
		asset := media.Asset{
			ID:           uuid.NewString(),
			DisplayName:  record.Name,
			OriginalName: record.Name,
			Kind:         kind,
			ByteSize:     int64(len(payload)),
			IngestedAt:   ingestedAt,
			DisplayRef:   record.Content,
		}
		if s.IsHeavy(kind, asset.ByteSize) && kind == media.KindVideo {
			// Legacy video records carried the full payload inline; the new
			// scheme keeps only a stand-in in the index.
			asset.DisplayRef = ""
		}
		if _, _, err := s.Write(ctx, asset, payload, media.MimeOfDataURL(record.Content)); err != nil {
			return migrated, fmt.Errorf("migrate %q: %w", record.Name, err)
		}
		migrated++
	}
	return migrated, nil
}
