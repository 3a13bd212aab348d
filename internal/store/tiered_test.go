package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/vault"
)

// fakeVault is an in-memory vault.Provider with failure injection.
type fakeVault struct {
	entries    map[string]vault.Entry
	payloads   map[string][]byte
	failPut    bool
	failDelete bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{entries: map[string]vault.Entry{}, payloads: map[string][]byte{}}
}

func (f *fakeVault) Put(_ context.Context, entry vault.Entry, payload []byte) error {
	if f.failPut {
		return vault.ErrVaultUnavailable
	}
	entry.ByteSize = int64(len(payload))
	f.entries[entry.ID] = entry
	f.payloads[entry.ID] = payload
	return nil
}

func (f *fakeVault) Open(_ context.Context, id string) ([]byte, vault.Entry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, vault.Entry{}, vault.ErrEntryNotFound
	}
	return f.payloads[id], entry, nil
}

func (f *fakeVault) Delete(_ context.Context, id string) error {
	if f.failDelete {
		return fmt.Errorf("vault delete refused")
	}
	delete(f.entries, id)
	delete(f.payloads, id)
	return nil
}

func (f *fakeVault) List(_ context.Context) ([]vault.Entry, error) {
	var entries []vault.Entry
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeVault) AccessPath(id string) string { return "fake://" + id }

// failingIndex wraps MemoryIndex and fails Upsert.
type failingIndex struct {
	*MemoryIndex
}

func (f *failingIndex) Upsert(context.Context, media.Asset) error {
	return fmt.Errorf("index down")
}

func videoAsset(id string, size int64) media.Asset {
	return media.Asset{
		ID:           id,
		DisplayName:  "clip.mp4",
		OriginalName: "clip.mp4",
		Kind:         media.KindVideo,
		ByteSize:     size,
		IngestedAt:   time.Now().UTC(),
		DisplayRef:   media.EncodeDataURL("image/jpeg", []byte("thumb")),
	}
}

const testID1 = "11111111-1111-1111-1111-111111111111"
const testID2 = "22222222-2222-2222-2222-222222222222"

func TestWriteLightImageSkipsVault(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	payload := []byte("jpeg-bytes")
	asset := media.Asset{
		ID:         testID1,
		Kind:       media.KindImage,
		ByteSize:   int64(len(payload)),
		IngestedAt: time.Now().UTC(),
		DisplayRef: media.EncodeDataURL("image/jpeg", payload),
	}

	got, receipt, err := s.Write(context.Background(), asset, payload, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, receipt.IndexOK)
	assert.True(t, receipt.VaultSkipped)
	assert.False(t, got.HeavyPayload)
	assert.Empty(t, fv.entries, "light assets must not touch the vault")

	stored, err := s.Read(context.Background(), testID1)
	require.NoError(t, err)
	assert.Equal(t, got.DisplayRef, stored.DisplayRef)
}

func TestWriteVideoGoesToVault(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	payload := []byte("full-video-payload-bytes")
	asset := videoAsset(testID1, int64(len(payload)))

	got, receipt, err := s.Write(context.Background(), asset, payload, "video/mp4")
	require.NoError(t, err)
	assert.True(t, receipt.IndexOK)
	assert.True(t, receipt.VaultOK)
	assert.True(t, got.HeavyPayload, "heavy flag must be true iff vault entry written")
	assert.Equal(t, payload, fv.payloads[testID1])
	assert.Equal(t, "clip.mp4", fv.entries[testID1].DisplayName, "vault duplicates identifying fields")
}

func TestWriteVaultFailureDegradesToIndexOnly(t *testing.T) {
	fv := newFakeVault()
	fv.failPut = true
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	asset := videoAsset(testID1, 1000)

	got, receipt, err := s.Write(context.Background(), asset, []byte("payload"), "video/mp4")
	require.NoError(t, err, "vault failure must not fail the write")
	assert.True(t, receipt.IndexOK)
	assert.False(t, receipt.VaultOK)
	assert.False(t, got.HeavyPayload)

	stored, err := s.Read(context.Background(), testID1)
	require.NoError(t, err)
	assert.False(t, stored.HeavyPayload)
	assert.NotEmpty(t, stored.DisplayRef, "video keeps its thumbnail stand-in")
}

func TestWriteAudioThreshold(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 100)

	small := media.Asset{ID: testID1, Kind: media.KindAudio, ByteSize: 80, IngestedAt: time.Now()}
	_, receipt, err := s.Write(context.Background(), small, make([]byte, 80), "audio/mpeg")
	require.NoError(t, err)
	assert.True(t, receipt.VaultSkipped, "audio at or under the threshold stays inline")

	big := media.Asset{ID: testID2, Kind: media.KindAudio, ByteSize: 200, IngestedAt: time.Now()}
	_, receipt, err = s.Write(context.Background(), big, make([]byte, 200), "audio/mpeg")
	require.NoError(t, err)
	assert.True(t, receipt.VaultOK, "audio above the threshold is promoted to the vault")
}

func TestWriteIndexFailureRollsBackVault(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, &failingIndex{NewMemoryIndex()}, fv, nil, 0)

	_, receipt, err := s.Write(context.Background(), videoAsset(testID1, 10), []byte("payload"), "video/mp4")
	require.Error(t, err)
	assert.True(t, receipt.VaultOK, "vault write succeeded before the index failed")
	assert.False(t, receipt.IndexOK)
	assert.Empty(t, fv.entries, "vault entry must be rolled back so it is never orphaned")
}

func TestReadFull(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	payload := []byte("a genuinely large full-video payload, much larger than the thumb")
	asset := videoAsset(testID1, int64(len(payload)))
	_, _, err := s.Write(context.Background(), asset, payload, "video/mp4")
	require.NoError(t, err)

	got, entry, err := s.ReadFull(context.Background(), testID1)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "video", entry.Kind)

	_, _, err = s.ReadFull(context.Background(), testID2)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestReadFullRejectsPayloadSmallerThanStandIn(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	asset := videoAsset(testID1, 2)
	// Vault holds a payload smaller than the inline thumbnail: implausible
	// as a full video.
	_, _, err := s.Write(context.Background(), asset, []byte("x"), "video/mp4")
	require.NoError(t, err)

	_, _, err = s.ReadFull(context.Background(), testID1)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestDeleteRemovesBothTiers(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	_, _, err := s.Write(context.Background(), videoAsset(testID1, 10), []byte("payload-data"), "video/mp4")
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), testID1))

	assets, err := s.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, assets)
	_, _, err = s.ReadFull(context.Background(), testID1)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestDeleteIndexAuthoritativeOnVaultFailure(t *testing.T) {
	fv := newFakeVault()
	s := NewTieredStore(nil, NewMemoryIndex(), fv, nil, 0)
	_, _, err := s.Write(context.Background(), videoAsset(testID1, 10), []byte("payload-data"), "video/mp4")
	require.NoError(t, err)

	fv.failDelete = true
	require.NoError(t, s.Delete(context.Background(), testID1), "index delete proceeds despite vault failure")
	_, err = s.Read(context.Background(), testID1)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestMirrorBlanksHeavyFields(t *testing.T) {
	dir := t.TempDir()
	mirrorPath := filepath.Join(dir, "mirror.json")
	s := NewTieredStore(nil, NewMemoryIndex(), newFakeVault(), NewMirror(mirrorPath), 0)

	_, _, err := s.Write(context.Background(), videoAsset(testID1, 10), []byte("payload"), "video/mp4")
	require.NoError(t, err)

	raw, err := os.ReadFile(mirrorPath)
	require.NoError(t, err)
	var doc struct {
		Assets []media.Asset `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Assets, 1)
	assert.Empty(t, doc.Assets[0].DisplayRef, "mirror must blank inline references")
	assert.Equal(t, testID1, doc.Assets[0].ID)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := NewTieredStore(nil, NewMemoryIndex(), newFakeVault(), nil, 0)
	_, _, err := s.Write(context.Background(), videoAsset(testID1, 10), []byte("payload"), "video/mp4")
	require.NoError(t, err)

	doc, err := s.ExportAll(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Assets, 1)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	fresh := NewTieredStore(nil, NewMemoryIndex(), newFakeVault(), nil, 0)
	imported, err := fresh.ImportAll(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	assets, err := fresh.ListAll(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, testID1, assets[0].ID)
}

func TestMigrateLegacy(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "gallery.json")
	records := []map[string]string{
		{"name": "logo.png", "type": "image", "content": media.EncodeDataURL("image/png", []byte("png-bytes"))},
		{"name": "song.mp3", "type": "audio", "content": media.EncodeDataURL("audio/mpeg", []byte("mp3"))},
		{"name": "broken", "type": "", "content": "not-a-data-url"},
	}
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(legacyPath, raw, 0o644))

	s := NewTieredStore(nil, NewMemoryIndex(), newFakeVault(), nil, 0)
	migrated, err := s.MigrateLegacy(context.Background(), legacyPath)
	require.NoError(t, err)
	assert.Equal(t, 2, migrated, "unparseable records are skipped, not fatal")

	assets, err := s.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestMigrateLegacyMissingFile(t *testing.T) {
	s := NewTieredStore(nil, NewMemoryIndex(), newFakeVault(), nil, 0)
	migrated, err := s.MigrateLegacy(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, migrated)
}

func TestMemoryIndexNotFound(t *testing.T) {
	idx := NewMemoryIndex()
	_, err := idx.Get(context.Background(), "missing")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrAssetNotFound", err)
	}
	if err := idx.Rename(context.Background(), "missing", "x"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("Rename(missing) = %v, want ErrAssetNotFound", err)
	}
	if err := idx.Delete(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("Delete(missing) = %v, want ErrAssetNotFound", err)
	}
}
