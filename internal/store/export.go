package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/craftpage/mediavault/internal/media"
)

// exportVersion tags the portable document format.
const exportVersion = 1

// ExportDocument is the portable backup of the metadata index. Vault
// content is deliberately excluded to bound export size.
type ExportDocument struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Assets     []media.Asset `json:"assets"`
}

// ExportAll serializes the full metadata index.
func (s *TieredStore) ExportAll(ctx context.Context) (ExportDocument, error) {
	assets, err := s.index.List(ctx, "")
	if err != nil {
		return ExportDocument{}, fmt.Errorf("export: %w", err)
	}
	return ExportDocument{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Assets:     assets,
	}, nil
}

// ImportAll loads a portable document into the index, replacing entries by
// ID. Imported heavy assets keep their flag; their vault payloads are only
// available if the vault still holds them, which the reconciler tolerates.
func (s *TieredStore) ImportAll(ctx context.Context, raw []byte) (int, error) {
	var doc ExportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("decode import document: %w", err)
	}
	if doc.Version > exportVersion {
		return 0, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	imported := 0
	for _, asset := range doc.Assets {
		if asset.ID == "" || asset.Kind == "" {
			continue
		}
		if err := s.index.Upsert(ctx, asset); err != nil {
			return imported, fmt.Errorf("import %s: %w", asset.ID, err)
		}
		imported++
	}
	s.writeMirror(ctx)
	return imported, nil
}
