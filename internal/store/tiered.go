package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/vault"
)

// DefaultAudioInlineMax is the threshold above which audio payloads are
// promoted to the content vault instead of being inlined in the index.
const DefaultAudioInlineMax = 50 << 10

// TieredStore owns the consistency contract between the metadata index and
// the content vault. Index writes are authoritative; vault writes are
// opportunistic and their failure degrades the asset rather than the batch.
type TieredStore struct {
	index          Index
	vault          vault.Provider
	mirror         *Mirror
	audioInlineMax int64
	logger         *slog.Logger
}

// WriteReceipt reports per-tier success for one write.
type WriteReceipt struct {
	IndexOK bool `json:"index_ok"`
	VaultOK bool `json:"vault_ok"`
	// VaultSkipped is true for light assets that never touch the vault.
	VaultSkipped bool `json:"vault_skipped"`
}

// NewTieredStore wires the two tiers. mirror may be nil to disable the
// fallback mirror; audioInlineMax <= 0 selects the default threshold.
func NewTieredStore(log *slog.Logger, index Index, vaultProvider vault.Provider, mirror *Mirror, audioInlineMax int64) *TieredStore {
	if log == nil {
		log = slog.Default()
	}
	if audioInlineMax <= 0 {
		audioInlineMax = DefaultAudioInlineMax
	}
	return &TieredStore{
		index:          index,
		vault:          vaultProvider,
		mirror:         mirror,
		audioInlineMax: audioInlineMax,
		logger:         log.With(slog.String("service", "tiered_store")),
	}
}

// IsHeavy applies the promotion policy: video always, audio above the
// threshold, images never.
func (s *TieredStore) IsHeavy(kind media.Kind, byteSize int64) bool {
	switch kind {
	case media.KindVideo:
		return true
	case media.KindAudio:
		return byteSize > s.audioInlineMax
	default:
		return false
	}
}

// Write persists one asset. The index entry is always written; heavy
// payloads additionally go to the vault. A vault failure leaves the asset
// index-only with HeavyPayload=false and a reduced display reference, and
// the receipt carries the partial result to the caller. An index failure
// after a successful vault write rolls the vault entry back so vault entries
// are never orphaned from the index.
func (s *TieredStore) Write(ctx context.Context, asset media.Asset, payload []byte, mime string) (media.Asset, WriteReceipt, error) {
	receipt := WriteReceipt{}
	heavy := s.IsHeavy(asset.Kind, asset.ByteSize)

	if heavy && s.vault != nil {
		entry := vault.Entry{
			ID:           asset.ID,
			DisplayName:  asset.DisplayName,
			OriginalName: asset.OriginalName,
			Kind:         string(asset.Kind),
			Mime:         mime,
			StoredAt:     asset.IngestedAt,
		}
		if err := s.vault.Put(ctx, entry, payload); err != nil {
			s.logger.Warn("vault write failed, asset degrades to index-only",
				slog.String("id", asset.ID),
				slog.Any("error", err),
			)
		} else {
			receipt.VaultOK = true
		}
	} else if !heavy {
		receipt.VaultSkipped = true
	}

	// The heavy flag tracks actual vault state, not intent.
	asset.HeavyPayload = receipt.VaultOK
	if heavy && asset.Kind == media.KindAudio {
		// The index never carries an oversized audio payload inline; the
		// vault copy (when written) is the only home for the bytes.
		asset.DisplayRef = ""
	}

	if err := s.index.Upsert(ctx, asset); err != nil {
		if receipt.VaultOK {
			if delErr := s.vault.Delete(ctx, asset.ID); delErr != nil {
				s.logger.Warn("vault rollback failed, entry will be swept later",
					slog.String("id", asset.ID), slog.Any("error", delErr))
			}
		}
		return media.Asset{}, receipt, fmt.Errorf("index write: %w", err)
	}
	receipt.IndexOK = true
	s.writeMirror(ctx)
	return asset, receipt, nil
}

// Read returns the metadata index entry.
func (s *TieredStore) Read(ctx context.Context, id string) (media.Asset, error) {
	return s.index.Get(ctx, id)
}

// ReadFull returns the vault entry for id when it is present and larger
// than the index's stand-in reference; otherwise ErrAssetNotFound.
func (s *TieredStore) ReadFull(ctx context.Context, id string) ([]byte, vault.Entry, error) {
	if s.vault == nil {
		return nil, vault.Entry{}, ErrAssetNotFound
	}
	payload, entry, err := s.vault.Open(ctx, id)
	if err != nil {
		if errors.Is(err, vault.ErrEntryNotFound) {
			return nil, vault.Entry{}, ErrAssetNotFound
		}
		return nil, vault.Entry{}, err
	}

	standInSize := int64(0)
	if asset, idxErr := s.index.Get(ctx, id); idxErr == nil {
		standInSize = media.PayloadSize(asset.DisplayRef)
	}
	if int64(len(payload)) <= standInSize {
		return nil, vault.Entry{}, ErrAssetNotFound
	}
	return payload, entry, nil
}

// Delete removes both tiers. Index deletion is authoritative: a vault
// failure leaves unreachable garbage for the sweeper rather than failing
// the delete.
func (s *TieredStore) Delete(ctx context.Context, id string) error {
	if err := s.index.Delete(ctx, id); err != nil {
		return err
	}
	if s.vault != nil {
		if err := s.vault.Delete(ctx, id); err != nil {
			s.logger.Warn("vault delete failed, entry becomes unreachable garbage",
				slog.String("id", id), slog.Any("error", err))
		}
	}
	s.writeMirror(ctx)
	return nil
}

// ListAll returns all metadata entries; cost is independent of how many
// assets carry heavy payloads because the vault is never consulted.
func (s *TieredStore) ListAll(ctx context.Context, kind media.Kind) ([]media.Asset, error) {
	return s.index.List(ctx, kind)
}

// ListVault returns the vault's entry descriptors for fallback searches.
func (s *TieredStore) ListVault(ctx context.Context) ([]vault.Entry, error) {
	if s.vault == nil {
		return nil, nil
	}
	return s.vault.List(ctx)
}

// OpenVault returns a raw vault payload without the stand-in size check.
func (s *TieredStore) OpenVault(ctx context.Context, id string) ([]byte, vault.Entry, error) {
	if s.vault == nil {
		return nil, vault.Entry{}, ErrAssetNotFound
	}
	payload, entry, err := s.vault.Open(ctx, id)
	if errors.Is(err, vault.ErrEntryNotFound) {
		return nil, vault.Entry{}, ErrAssetNotFound
	}
	return payload, entry, err
}

// Rename updates the display name in the index only. The vault descriptor
// keeps the name the entry was stored with; name fallback matches on the
// immutable original name, so the stale duplicate is harmless.
func (s *TieredStore) Rename(ctx context.Context, id, displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return fmt.Errorf("display name is required")
	}
	if err := s.index.Rename(ctx, id, displayName); err != nil {
		return err
	}
	s.writeMirror(ctx)
	return nil
}

func (s *TieredStore) writeMirror(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	assets, err := s.index.List(ctx, "")
	if err != nil {
		s.logger.Warn("mirror snapshot skipped", slog.Any("error", err))
		return
	}
	if err := s.mirror.Write(assets); err != nil {
		s.logger.Warn("mirror write failed", slog.Any("error", err))
	}
}
