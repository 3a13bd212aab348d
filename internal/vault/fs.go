package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FSProvider stores payloads under root/<id prefix>/<id>.bin with a JSON
// sidecar carrying the entry descriptor. The sidecar is what List scans, so
// browsing the vault never reads payload bytes.
type FSProvider struct {
	root   string
	logger *slog.Logger
}

// NewFSProvider creates a filesystem vault rooted at dir.
func NewFSProvider(log *slog.Logger, dir string) (*FSProvider, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("vault root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", ErrVaultUnavailable, err)
	}
	return &FSProvider{
		root:   dir,
		logger: log.With(slog.String("service", "vault_fs")),
	}, nil
}

func (p *FSProvider) payloadPath(id string) string {
	return filepath.Join(p.root, shardDir(id), id+".bin")
}

func (p *FSProvider) sidecarPath(id string) string {
	return filepath.Join(p.root, shardDir(id), id+".json")
}

// Put writes the payload first and the sidecar last, so a sidecar's presence
// implies a complete payload.
func (p *FSProvider) Put(ctx context.Context, entry Entry, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("entry id is required")
	}
	dir := filepath.Join(p.root, shardDir(entry.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	entry.ByteSize = int64(len(payload))
	if err := os.WriteFile(p.payloadPath(entry.ID), payload, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	sidecar, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(p.sidecarPath(entry.ID), sidecar, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func (p *FSProvider) Open(ctx context.Context, id string) ([]byte, Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, Entry{}, err
	}
	entry, err := p.readSidecar(p.sidecarPath(id))
	if err != nil {
		return nil, Entry{}, err
	}
	payload, err := os.ReadFile(p.payloadPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Entry{}, ErrEntryNotFound
		}
		return nil, Entry{}, fmt.Errorf("read payload: %w", err)
	}
	return payload, entry, nil
}

func (p *FSProvider) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Sidecar goes first: a payload without a sidecar is invisible garbage,
	// a sidecar without a payload would look like a broken entry.
	if err := os.Remove(p.sidecarPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	if err := os.Remove(p.payloadPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove payload: %w", err)
	}
	return nil
}

func (p *FSProvider) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		entry, readErr := p.readSidecar(path)
		if readErr != nil {
			p.logger.Warn("skipping unreadable vault sidecar", slog.String("path", path), slog.Any("error", readErr))
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *FSProvider) AccessPath(id string) string {
	return p.payloadPath(id)
}

func (p *FSProvider) readSidecar(path string) (Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("read sidecar: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode sidecar: %w", err)
	}
	return entry, nil
}

// shardDir spreads entries over 256 directories by ID prefix.
func shardDir(id string) string {
	if len(id) < 2 {
		return "00"
	}
	return strings.ToLower(id[:2])
}
