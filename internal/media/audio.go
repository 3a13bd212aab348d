package media

import (
	"log/slog"
	"strings"
)

// AudioRepairer passes audio payloads through untouched and repairs only the
// descriptor metadata: a generic binary content type is rewritten to the
// declared audio type, and names outside the Latin script gain a charset
// hint so consumers render them correctly.
type AudioRepairer struct {
	logger *slog.Logger
}

// RepairedAudio carries the unmodified payload plus its repaired descriptor.
type RepairedAudio struct {
	Payload []byte
	DataURL string
	Mime    string
}

const defaultAudioMime = "audio/mpeg"

// NewAudioRepairer creates a repairer.
func NewAudioRepairer(log *slog.Logger) *AudioRepairer {
	if log == nil {
		log = slog.Default()
	}
	return &AudioRepairer{logger: log.With(slog.String("service", "audio_repairer"))}
}

// Repair never re-encodes: full fidelity is preserved regardless of size.
func (r *AudioRepairer) Repair(raw []byte, declaredType, name string) RepairedAudio {
	mime := NormalizeMime(declaredType)
	if !strings.HasPrefix(mime, "audio/") {
		// Mis-declared or generic; fall back to suffix, then the common default.
		mime = MimeForSuffix(name)
		if !strings.HasPrefix(mime, "audio/") {
			mime = defaultAudioMime
		}
		r.logger.Debug("repaired audio content type",
			slog.String("declared", declaredType),
			slog.String("repaired", mime),
		)
	}

	dataURL := EncodeDataURL(mime, raw)
	if HasNonLatinName(name) {
		dataURL = EncodeDataURLWithCharset(mime, "utf-8", raw)
	}
	return RepairedAudio{Payload: raw, DataURL: dataURL, Mime: mime}
}
