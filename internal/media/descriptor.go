package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// A display reference is an inline data URL of the form
// data:<mime>[;charset=<cs>];base64,<payload>. Light assets embed their full
// payload; heavy assets embed a thumbnail or nothing.

const genericContentType = "application/octet-stream"

// EncodeDataURL builds an inline data URL for the given payload.
func EncodeDataURL(mime string, payload []byte) string {
	mime = NormalizeMime(mime)
	if mime == "" {
		mime = genericContentType
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

// EncodeDataURLWithCharset builds a data URL carrying an explicit charset
// parameter, used when the asset name needs a rendering hint.
func EncodeDataURLWithCharset(mime, charset string, payload []byte) string {
	mime = NormalizeMime(mime)
	if mime == "" {
		mime = genericContentType
	}
	return "data:" + mime + ";charset=" + charset + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

// MimeOfDataURL extracts the normalized MIME from a data URL, or "".
func MimeOfDataURL(ref string) string {
	value := strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToLower(value), "data:") {
		return ""
	}
	rest := value[len("data:"):]
	if idx := strings.IndexAny(rest, ";,"); idx >= 0 {
		rest = rest[:idx]
	}
	return NormalizeMime(rest)
}

// DecodeDataURL returns the binary payload of a base64 data URL.
func DecodeDataURL(ref string) ([]byte, error) {
	value := strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToLower(value), "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	idx := strings.Index(value, ",")
	if idx < 0 {
		return nil, fmt.Errorf("data url has no payload")
	}
	payload, err := base64.StdEncoding.DecodeString(value[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data url payload: %w", err)
	}
	return payload, nil
}

// PayloadSize returns the decoded byte size of a data URL payload without
// decoding it. Returns 0 for anything that is not a base64 data URL.
func PayloadSize(ref string) int64 {
	idx := strings.Index(ref, ",")
	if idx < 0 || !strings.HasPrefix(strings.ToLower(ref), "data:") {
		return 0
	}
	encoded := int64(len(ref) - idx - 1)
	padding := int64(strings.Count(ref[idx+1:], "="))
	size := encoded/4*3 - padding
	if size < 0 {
		return 0
	}
	return size
}

// RewriteDataURLMime replaces the MIME of a data URL, preserving parameters
// and payload. Used to repair descriptors that declare a generic binary type.
func RewriteDataURLMime(ref, mime string) string {
	value := strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToLower(value), "data:") {
		return ref
	}
	rest := value[len("data:"):]
	idx := strings.IndexAny(rest, ";,")
	if idx < 0 {
		return ref
	}
	return "data:" + NormalizeMime(mime) + rest[idx:]
}

// NormalizeMime lowercases a MIME value and strips any parameters.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// SniffContentType inspects up to the first 512 bytes of a payload and
// returns the detected normalized MIME.
func SniffContentType(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	if len(payload) > 512 {
		payload = payload[:512]
	}
	return NormalizeMime(http.DetectContentType(payload))
}

// HasNonLatinName reports whether a display name contains characters outside
// the Latin script, in which case descriptors carry a charset hint so
// consumers render the name correctly.
func HasNonLatinName(name string) bool {
	for _, r := range name {
		if r > 0x024F {
			return true
		}
	}
	return false
}
