// Package vault abstracts the heavy-payload content store backends.
package vault

import (
	"context"
	"errors"
	"time"
)

// Entry describes one stored payload. It duplicates a few identifying asset
// fields so the retrieval reconciler can run a name-based fallback search
// without consulting the metadata index.
type Entry struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	OriginalName string    `json:"original_name"`
	Kind         string    `json:"kind"`
	Mime         string    `json:"mime"`
	ByteSize     int64     `json:"byte_size"`
	StoredAt     time.Time `json:"stored_at"`
}

// Provider abstracts vault storage operations. Payloads are written once and
// never partially updated; Put on an existing ID replaces the whole entry.
type Provider interface {
	// Put stores a payload with its entry descriptor.
	Put(ctx context.Context, entry Entry, payload []byte) error
	// Open returns the payload and descriptor for the given asset ID.
	Open(ctx context.Context, id string) ([]byte, Entry, error)
	// Delete removes the entry; deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
	// List returns every entry descriptor without loading payloads.
	List(ctx context.Context) ([]Entry, error)
	// AccessPath returns a backend-specific reference for a stored entry
	// (filesystem path, object key).
	AccessPath(id string) string
}

var (
	// ErrEntryNotFound reports a missing vault entry.
	ErrEntryNotFound = errors.New("vault entry not found")
	// ErrVaultUnavailable reports a vault whose backend cannot be reached;
	// writers degrade to index-only persistence.
	ErrVaultUnavailable = errors.New("content vault unavailable")
)
