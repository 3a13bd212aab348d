// Package media holds the asset domain model and the per-kind binary
// transformations applied during ingestion.
package media

import (
	"errors"
	"time"
)

// Kind classifies an asset's media kind.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Asset is the logical unit exposed to site-construction collaborators.
// ID is assigned at ingestion and immutable; DisplayName is the only
// mutable field.
type Asset struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	OriginalName string    `json:"original_name"`
	Kind         Kind      `json:"kind"`
	ByteSize     int64     `json:"byte_size"`
	IngestedAt   time.Time `json:"ingested_at"`
	Optimized    bool      `json:"optimized"`
	// DisplayRef is an inline data URL usable for immediate rendering:
	// the full payload for light assets, a thumbnail for video.
	DisplayRef string `json:"display_ref"`
	// HeavyPayload is true when the full content lives only in the
	// content vault and DisplayRef may be a reduced stand-in.
	HeavyPayload bool `json:"heavy_payload"`
	// RemoteOrigin records the external location descriptor for assets
	// hosted on a remote object store; probed by the cleanup sweeper.
	RemoteOrigin string `json:"remote_origin,omitempty"`
}

// FileDescriptor describes one candidate upload before any transformation.
type FileDescriptor struct {
	Name        string
	ContentType string
	ByteSize    int64
}

var (
	// ErrUnsupportedFormat rejects a file whose kind cannot be determined
	// or is not in the caller's allow-list.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	// ErrOptimizationFailed marks a single-asset transformation error.
	ErrOptimizationFailed = errors.New("media optimization failed")
	// ErrTranscodeFailed is soft: the caller substitutes the original bytes.
	ErrTranscodeFailed = errors.New("video transcode failed")
	// ErrNoSupportedEncoder means capability negotiation found no usable
	// target encoding, feeding the same fallback path as ErrTranscodeFailed.
	ErrNoSupportedEncoder = errors.New("no supported target encoder")
)
