// Package reconcile locates the best available representation of an asset
// at use-time, tolerating storage inconsistency between the metadata index
// and the content vault.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/vault"
)

// Source records which tier satisfied a resolution.
type Source string

const (
	// SourceInline: the index's display reference was the full payload.
	SourceInline Source = "inline"
	// SourceVault: the vault returned the payload under the asset's ID.
	SourceVault Source = "vault"
	// SourceNameFallback: identity lookup missed and a name-based scan of
	// same-kind vault entries recovered the payload.
	SourceNameFallback Source = "name_fallback"
	// SourceStandIn: nothing better was available; the caller renders the
	// reduced stand-in instead of erroring.
	SourceStandIn Source = "stand_in"
)

// Resolution is the outcome of resolving one asset for active use.
type Resolution struct {
	Asset media.Asset
	// Payload holds the full content bytes when a vault tier satisfied
	// the request; nil when Ref alone is the answer.
	Payload []byte
	// Mime describes Payload when it is set.
	Mime string
	// Ref is a ready-to-render reference (data URL); always set.
	Ref    string
	Source Source
}

// Reconciler resolves asset identities to displayable or playable content.
type Reconciler struct {
	store  *store.TieredStore
	logger *slog.Logger
}

func NewReconciler(log *slog.Logger, s *store.TieredStore) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:  s,
		logger: log.With(slog.String("service", "reconciler")),
	}
}

// Resolve walks the ordered fallback chain for id: inline reference, vault
// by identity, vault by name, stand-in. Only a missing index entry is an
// error; every storage inconsistency below that degrades instead.
func (r *Reconciler) Resolve(ctx context.Context, id string) (Resolution, error) {
	asset, err := r.store.Read(ctx, id)
	if err != nil {
		return Resolution{}, err
	}

	if !asset.HeavyPayload {
		return Resolution{Asset: asset, Ref: asset.DisplayRef, Source: SourceInline}, nil
	}

	payload, entry, err := r.store.ReadFull(ctx, id)
	if err == nil && r.plausible(asset, entry, payload) {
		return Resolution{
			Asset:   asset,
			Payload: payload,
			Mime:    entry.Mime,
			Ref:     media.EncodeDataURL(entry.Mime, payload),
			Source:  SourceVault,
		}, nil
	}
	if err != nil && !errors.Is(err, store.ErrAssetNotFound) {
		r.logger.Warn("vault read failed, trying name fallback",
			slog.String("id", id), slog.Any("error", err))
	}

	if res, ok := r.resolveByName(ctx, asset); ok {
		return res, nil
	}

	r.logger.Warn("asset degraded to stand-in reference", slog.String("id", id))
	return Resolution{Asset: asset, Ref: asset.DisplayRef, Source: SourceStandIn}, nil
}

// resolveByName scans all vault entries of the asset's kind for one whose
// display or original name matches, newest first so repeated uploads of the
// same file resolve deterministically.
func (r *Reconciler) resolveByName(ctx context.Context, asset media.Asset) (Resolution, bool) {
	entries, err := r.store.ListVault(ctx)
	if err != nil {
		r.logger.Warn("vault scan failed", slog.Any("error", err))
		return Resolution{}, false
	}

	var candidates []vault.Entry
	for _, entry := range entries {
		if entry.Kind != string(asset.Kind) {
			continue
		}
		if entry.DisplayName == asset.DisplayName || entry.OriginalName == asset.OriginalName {
			candidates = append(candidates, entry)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StoredAt.After(candidates[j].StoredAt)
	})

	for _, candidate := range candidates {
		payload, entry, err := r.store.OpenVault(ctx, candidate.ID)
		if err != nil {
			continue
		}
		if !r.plausible(asset, entry, payload) {
			continue
		}
		r.logger.Info("resolved asset via name fallback",
			slog.String("id", asset.ID),
			slog.String("vault_id", candidate.ID))
		return Resolution{
			Asset:   asset,
			Payload: payload,
			Mime:    entry.Mime,
			Ref:     media.EncodeDataURL(entry.Mime, payload),
			Source:  SourceNameFallback,
		}, true
	}
	return Resolution{}, false
}

// plausible judges whether a vault payload looks like a genuine full
// payload for the asset: larger than the index's stand-in and carrying a
// content type consistent with the asset's kind.
func (r *Reconciler) plausible(asset media.Asset, entry vault.Entry, payload []byte) bool {
	if int64(len(payload)) <= media.PayloadSize(asset.DisplayRef) {
		return false
	}
	mime := entry.Mime
	if mime == "" {
		mime = media.SniffContentType(payload)
	}
	return kindMatchesMime(asset.Kind, mime)
}

func kindMatchesMime(kind media.Kind, mime string) bool {
	switch kind {
	case media.KindImage:
		return strings.HasPrefix(mime, "image/")
	case media.KindAudio:
		return strings.HasPrefix(mime, "audio/")
	case media.KindVideo:
		// Browsers report some video containers under application/*.
		return strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "application/")
	default:
		return false
	}
}

// Pick returns the newest asset among the given kinds together with its
// resolved reference, for picker surfaces. A nil kinds slice means any kind.
func (r *Reconciler) Pick(ctx context.Context, kinds []media.Kind) (Resolution, error) {
	var pool []media.Asset
	if len(kinds) == 0 {
		assets, err := r.store.ListAll(ctx, "")
		if err != nil {
			return Resolution{}, err
		}
		pool = assets
	} else {
		for _, kind := range kinds {
			assets, err := r.store.ListAll(ctx, kind)
			if err != nil {
				return Resolution{}, err
			}
			pool = append(pool, assets...)
		}
	}
	if len(pool) == 0 {
		return Resolution{}, store.ErrAssetNotFound
	}
	sort.Slice(pool, func(i, j int) bool {
		return pool[i].IngestedAt.After(pool[j].IngestedAt)
	})
	res, err := r.Resolve(ctx, pool[0].ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve picked asset: %w", err)
	}
	return res, nil
}
