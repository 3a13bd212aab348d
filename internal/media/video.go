package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Video processing limits. The transcode is a best-effort compatibility
// pass, bounded hard so a pathological upload cannot stall ingestion.
const (
	ThumbMaxWidth  = 400
	ThumbMaxHeight = 300
	ThumbTimeout   = 10 * time.Second

	TranscodeMaxWidth  = 1920
	TranscodeMaxHeight = 1080
	TranscodeFrameCap  = 300
	TranscodeFPS       = 24
	TranscodeBitrate   = "1000k"
	TranscodeTimeout   = 30 * time.Second
)

// encoderPreference is the ranked capability-negotiation list: the first
// encoder ffmpeg reports as available wins.
var encoderPreference = []targetEncoding{
	{encoder: "libx264", container: "mp4", mime: "video/mp4", extraArgs: []string{"-pix_fmt", "yuv420p", "-movflags", "+faststart"}},
	{encoder: "libvpx-vp9", container: "webm", mime: "video/webm", extraArgs: []string{"-pix_fmt", "yuv420p"}},
	{encoder: "libvpx", container: "webm", mime: "video/webm", extraArgs: []string{"-pix_fmt", "yuv420p"}},
}

// playableCodecs are source codecs broadly playable in browsers; matching
// sources skip transcoding and keep their original bytes.
var playableCodecs = map[string]bool{
	"h264": true,
	"vp8":  true,
	"vp9":  true,
	"av1":  true,
}

type targetEncoding struct {
	encoder   string
	container string
	mime      string
	extraArgs []string
}

// VideoProcessor derives two artifacts from one upload: a still-frame
// thumbnail for browsing and a best-effort transcoded full video for
// playback compatibility. Both run concurrently and each has its own
// fallback, so neither can fail the ingestion of the asset.
type VideoProcessor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger

	// runCommand is swappable in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// VideoArtifacts is the processor's output contract.
type VideoArtifacts struct {
	// Thumbnail is always populated: a bounded JPEG frame grab, or the
	// built-in placeholder when extraction fails.
	Thumbnail []byte
	// ThumbnailDataURL is the inline descriptor for Thumbnail.
	ThumbnailDataURL string
	// FullVideo is the transcoded payload on success, else the original bytes.
	FullVideo []byte
	Mime      string
	// Transcoded reports whether FullVideo differs from the upload.
	Transcoded bool
}

// NewVideoProcessor creates a processor using the given ffmpeg/ffprobe
// binaries (empty values fall back to $PATH lookup).
func NewVideoProcessor(log *slog.Logger, ffmpegPath, ffprobePath string) *VideoProcessor {
	if log == nil {
		log = slog.Default()
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &VideoProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      log.With(slog.String("service", "video_processor")),
		runCommand:  runCommand,
	}
}

// Process spools the upload to a temp file and derives both artifacts
// concurrently, joining before return. The error is always nil today; the
// signature keeps room for a future fatal path (e.g. spool failure), which
// is the only case that returns one.
func (p *VideoProcessor) Process(ctx context.Context, raw []byte, declaredType, name string) (VideoArtifacts, error) {
	tmp, err := os.CreateTemp("", "mediavault-video-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return VideoArtifacts{}, fmt.Errorf("spool video: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return VideoArtifacts{}, fmt.Errorf("spool video: %w", err)
	}
	tmp.Close()

	var (
		wg        sync.WaitGroup
		thumbnail []byte
		full      []byte
		fullMime  string
		encoded   bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		thumbnail = p.extractThumbnail(ctx, tmpPath)
	}()
	go func() {
		defer wg.Done()
		full, fullMime, encoded = p.transcode(ctx, tmpPath, raw, declaredType, name)
	}()
	wg.Wait()

	return VideoArtifacts{
		Thumbnail:        thumbnail,
		ThumbnailDataURL: EncodeDataURL("image/jpeg", thumbnail),
		FullVideo:        full,
		Mime:             fullMime,
		Transcoded:       encoded,
	}, nil
}

// extractThumbnail grabs one frame near the start of the video, bounded to
// ThumbMaxWidth x ThumbMaxHeight. Any failure or timeout yields the built-in
// placeholder; this path never fails the asset.
func (p *VideoProcessor) extractThumbnail(ctx context.Context, inputPath string) []byte {
	ctx, cancel := context.WithTimeout(ctx, ThumbTimeout)
	defer cancel()

	seek := p.thumbnailSeek(ctx, inputPath)
	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", ThumbMaxWidth, ThumbMaxHeight)
	out, err := p.runCommand(ctx, p.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(seek),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", scale,
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)
	if err != nil || len(out) == 0 {
		p.logger.Warn("thumbnail extraction failed, using placeholder", slog.Any("error", err))
		return PlaceholderThumbnail()
	}
	return out
}

// thumbnailSeek returns min(duration*0.1, 2s); zero when probing fails.
func (p *VideoProcessor) thumbnailSeek(ctx context.Context, inputPath string) float64 {
	duration := p.probeDuration(ctx, inputPath)
	if duration <= 0 {
		return 0
	}
	seek := duration * 0.1
	if seek > 2 {
		seek = 2
	}
	return seek
}

// transcode returns the full-video payload: the original bytes when the
// source is already browser playable or when any step of the re-encode
// fails, otherwise the re-encoded bytes.
func (p *VideoProcessor) transcode(ctx context.Context, inputPath string, raw []byte, declaredType, name string) (payload []byte, mime string, transcoded bool) {
	originalMime := NormalizeMime(declaredType)
	if !strings.HasPrefix(originalMime, "video/") {
		originalMime = MimeForSuffix(name)
	}

	ctx, cancel := context.WithTimeout(ctx, TranscodeTimeout)
	defer cancel()

	codec := p.probeCodec(ctx, inputPath)
	if PlayableInBrowser(codec, originalMime) {
		return raw, originalMime, false
	}

	target, err := p.negotiateTarget(ctx)
	if err != nil {
		p.logger.Warn("transcode skipped", slog.Any("error", err))
		return raw, originalMime, false
	}

	out, err := p.encode(ctx, inputPath, target)
	if err != nil {
		p.logger.Warn("transcode failed, keeping original bytes",
			slog.String("encoder", target.encoder),
			slog.Any("error", fmt.Errorf("%w: %v", ErrTranscodeFailed, err)),
		)
		return raw, originalMime, false
	}
	return out, target.mime, true
}

// negotiateTarget returns the first encoding from the preference list whose
// encoder this ffmpeg build supports.
func (p *VideoProcessor) negotiateTarget(ctx context.Context) (targetEncoding, error) {
	out, err := p.runCommand(ctx, p.ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		return targetEncoding{}, fmt.Errorf("%w: probe encoders: %v", ErrNoSupportedEncoder, err)
	}
	available := parseEncoderList(string(out))
	for _, target := range encoderPreference {
		if available[target.encoder] {
			return target, nil
		}
	}
	return targetEncoding{}, ErrNoSupportedEncoder
}

func (p *VideoProcessor) encode(ctx context.Context, inputPath string, target targetEncoding) ([]byte, error) {
	outDir, err := os.MkdirTemp("", "mediavault-transcode")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)
	outPath := filepath.Join(outDir, "out."+target.container)

	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", TranscodeMaxWidth, TranscodeMaxHeight)
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vf", scale,
		"-r", strconv.Itoa(TranscodeFPS),
		"-b:v", TranscodeBitrate,
		"-frames:v", strconv.Itoa(TranscodeFrameCap),
		"-c:v", target.encoder,
	}
	args = append(args, target.extraArgs...)
	args = append(args, "-an", outPath)

	if _, err := p.runCommand(ctx, p.ffmpegPath, args...); err != nil {
		return nil, err
	}
	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("encoder produced empty output")
	}
	return out, nil
}

func (p *VideoProcessor) probeDuration(ctx context.Context, inputPath string) float64 {
	out, err := p.runCommand(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	if err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}

func (p *VideoProcessor) probeCodec(ctx context.Context, inputPath string) string {
	out, err := p.runCommand(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(string(out)))
}

// PlayableInBrowser reports whether a source can be played directly by
// mainstream browsers, by probed codec first and declared container type as
// the fallback signal when probing yielded nothing.
func PlayableInBrowser(codec, mime string) bool {
	if codec != "" {
		return playableCodecs[codec] && (mime == "video/mp4" || mime == "video/webm")
	}
	return mime == "video/mp4" || mime == "video/webm"
}

// parseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Lines look like " V....D libx264  H.264 / AVC ...".
func parseEncoderList(out string) map[string]bool {
	encoders := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		flags := fields[0]
		if !strings.HasPrefix(flags, "V") && !strings.HasPrefix(flags, "A") {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %s: %w", name, msg, err)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
