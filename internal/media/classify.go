package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// kindBySuffix is the fixed fallback table consulted when the declared
// content type is missing or generic.
var kindBySuffix = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".ogg":  KindAudio,
	".m4a":  KindAudio,
	".aac":  KindAudio,
	".flac": KindAudio,
	".mp4":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".mkv":  KindVideo,
	".m4v":  KindVideo,
}

// Classify assigns a media kind to a candidate file. The declared
// content-type prefix wins; a generic or absent type falls back to the
// filename suffix table. Files matching neither, or matching a kind outside
// the allow-list, are rejected with ErrUnsupportedFormat.
func Classify(desc FileDescriptor, allowed []Kind) (Kind, error) {
	kind, ok := detectKind(desc)
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, desc.Name, desc.ContentType)
	}
	if len(allowed) > 0 && !kindAllowed(kind, allowed) {
		return "", fmt.Errorf("%w: %s not accepted here", ErrUnsupportedFormat, kind)
	}
	return kind, nil
}

func detectKind(desc FileDescriptor) (Kind, bool) {
	declared := NormalizeMime(desc.ContentType)
	// SVG is vector markup the raster optimizer cannot decode.
	if declared == "image/svg+xml" || strings.EqualFold(filepath.Ext(desc.Name), ".svg") {
		return "", false
	}
	switch {
	case strings.HasPrefix(declared, "image/"):
		return KindImage, true
	case strings.HasPrefix(declared, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(declared, "video/"):
		return KindVideo, true
	}
	suffix := strings.ToLower(filepath.Ext(desc.Name))
	kind, ok := kindBySuffix[suffix]
	return kind, ok
}

func kindAllowed(kind Kind, allowed []Kind) bool {
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// MimeForSuffix maps a filename suffix to its common MIME, defaulting to the
// generic binary type.
func MimeForSuffix(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".flac":
		return "audio/flac"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".m4v":
		return "video/x-m4v"
	default:
		return genericContentType
	}
}
