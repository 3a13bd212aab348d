package store

import (
	"context"
	"sort"
	"sync"

	"github.com/craftpage/mediavault/internal/media"
)

// MemoryIndex is an in-memory Index used by tests and by the import preview
// path, where entries are staged before committing to the database.
type MemoryIndex struct {
	mu     sync.RWMutex
	assets map[string]media.Asset
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{assets: map[string]media.Asset{}}
}

func (m *MemoryIndex) Upsert(_ context.Context, asset media.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
	return nil
}

func (m *MemoryIndex) Get(_ context.Context, id string) (media.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.assets[id]
	if !ok {
		return media.Asset{}, ErrAssetNotFound
	}
	return asset, nil
}

func (m *MemoryIndex) List(_ context.Context, kind media.Kind) ([]media.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var assets []media.Asset
	for _, asset := range m.assets {
		if kind == "" || asset.Kind == kind {
			assets = append(assets, asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].IngestedAt.Equal(assets[j].IngestedAt) {
			return assets[i].ID < assets[j].ID
		}
		return assets[i].IngestedAt.After(assets[j].IngestedAt)
	})
	return assets, nil
}

func (m *MemoryIndex) Rename(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[id]
	if !ok {
		return ErrAssetNotFound
	}
	asset.DisplayName = displayName
	m.assets[id] = asset
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return ErrAssetNotFound
	}
	delete(m.assets, id)
	return nil
}
