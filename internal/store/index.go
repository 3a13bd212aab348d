// Package store implements the two-tier asset persistence scheme: a cheap
// always-written metadata index and an opportunistically-written content
// vault for heavy payloads.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftpage/mediavault/internal/db"
	"github.com/craftpage/mediavault/internal/media"
)

// ErrAssetNotFound reports a missing metadata index entry.
var ErrAssetNotFound = errors.New("asset not found")

// Index is the metadata tier. Entries are small and cheap to scan; writes
// replace by ID with no partial merge.
type Index interface {
	Upsert(ctx context.Context, asset media.Asset) error
	Get(ctx context.Context, id string) (media.Asset, error)
	// List returns entries matching kind, or all entries when kind is empty,
	// ordered by ingestion time descending.
	List(ctx context.Context, kind media.Kind) ([]media.Asset, error)
	Rename(ctx context.Context, id, displayName string) error
	Delete(ctx context.Context, id string) error
}

// PostgresIndex is the production Index backed by the assets table.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex creates an index over the given pool.
func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

const assetColumns = `id, display_name, original_name, kind, byte_size, ingested_at, optimized, display_ref, heavy_payload, remote_origin`

func (r *PostgresIndex) Upsert(ctx context.Context, asset media.Asset) error {
	pgID, err := db.ParseUUID(asset.ID)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			display_name  = EXCLUDED.display_name,
			original_name = EXCLUDED.original_name,
			kind          = EXCLUDED.kind,
			byte_size     = EXCLUDED.byte_size,
			ingested_at   = EXCLUDED.ingested_at,
			optimized     = EXCLUDED.optimized,
			display_ref   = EXCLUDED.display_ref,
			heavy_payload = EXCLUDED.heavy_payload,
			remote_origin = EXCLUDED.remote_origin`
	_, err = r.pool.Exec(ctx, query,
		pgID,
		asset.DisplayName,
		asset.OriginalName,
		string(asset.Kind),
		asset.ByteSize,
		asset.IngestedAt,
		asset.Optimized,
		asset.DisplayRef,
		asset.HeavyPayload,
		db.TextFromString(asset.RemoteOrigin),
	)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

func (r *PostgresIndex) Get(ctx context.Context, id string) (media.Asset, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return media.Asset{}, fmt.Errorf("%w: %v", ErrAssetNotFound, err)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, pgID)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return media.Asset{}, ErrAssetNotFound
		}
		return media.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (r *PostgresIndex) List(ctx context.Context, kind media.Kind) ([]media.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY ingested_at DESC`
	args := []any{}
	if kind != "" {
		query = `SELECT ` + assetColumns + ` FROM assets WHERE kind = $1 ORDER BY ingested_at DESC`
		args = append(args, string(kind))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []media.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *PostgresIndex) Rename(ctx context.Context, id, displayName string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssetNotFound, err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE assets SET display_name = $2 WHERE id = $1`, pgID, displayName)
	if err != nil {
		return fmt.Errorf("rename asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *PostgresIndex) Delete(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssetNotFound, err)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (media.Asset, error) {
	var (
		asset        media.Asset
		id           pgtype.UUID
		kind         string
		ingestedAt   pgtype.Timestamptz
		remoteOrigin pgtype.Text
	)
	err := row.Scan(
		&id,
		&asset.DisplayName,
		&asset.OriginalName,
		&kind,
		&asset.ByteSize,
		&ingestedAt,
		&asset.Optimized,
		&asset.DisplayRef,
		&asset.HeavyPayload,
		&remoteOrigin,
	)
	if err != nil {
		return media.Asset{}, err
	}
	asset.ID = db.UUIDString(id)
	asset.Kind = media.Kind(kind)
	asset.IngestedAt = db.TimeFromPg(ingestedAt)
	asset.RemoteOrigin = db.TextToString(remoteOrigin)
	return asset, nil
}
