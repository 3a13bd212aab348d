package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/craftpage/mediavault/internal/media"
)

// Mirror persists a reduced-fidelity copy of the metadata index to a
// secondary location, for environments where the primary index is
// unavailable. Heavy inline fields are blanked so the mirror stays small.
type Mirror struct {
	path string
}

type mirrorDocument struct {
	WrittenAt time.Time     `json:"written_at"`
	Assets    []media.Asset `json:"assets"`
}

// NewMirror creates a mirror writing to path.
func NewMirror(path string) *Mirror {
	return &Mirror{path: path}
}

// Write snapshots the given entries, blanking every display reference that
// embeds payload bytes. The write is atomic (temp file + rename) so a crash
// never leaves a truncated mirror.
func (m *Mirror) Write(assets []media.Asset) error {
	reduced := make([]media.Asset, len(assets))
	for i, asset := range assets {
		asset.DisplayRef = ""
		reduced[i] = asset
	}
	doc := mirrorDocument{WrittenAt: time.Now().UTC(), Assets: reduced}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("mirror dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("commit mirror: %w", err)
	}
	return nil
}

// Read loads the mirrored entries; a missing mirror yields an empty list.
func (m *Mirror) Read() ([]media.Asset, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	var doc mirrorDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode mirror: %w", err)
	}
	return doc.Assets, nil
}
