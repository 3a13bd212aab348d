package sweeper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpage/mediavault/internal/config"
	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/vault"
)

func testConfig() config.SweeperConfig {
	return config.SweeperConfig{Schedule: "@every 1h", ProbePauseMS: 1, ProbeTimeoutS: 1}
}

func seededStore(t *testing.T, assets ...media.Asset) *store.TieredStore {
	t.Helper()
	provider, err := vault.NewFSProvider(nil, t.TempDir())
	require.NoError(t, err)
	s := store.NewTieredStore(nil, store.NewMemoryIndex(), provider, nil, 0)
	for _, asset := range assets {
		_, _, err := s.Write(context.Background(), asset, []byte("payload"), "image/jpeg")
		require.NoError(t, err)
	}
	return s
}

func TestRunRemovesGoneRemotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	old := time.Now().Add(-time.Hour)
	s := seededStore(t,
		media.Asset{ID: "keep", Kind: media.KindImage, IngestedAt: old, RemoteOrigin: srv.URL + "/alive.jpg"},
		media.Asset{ID: "drop", Kind: media.KindImage, IngestedAt: old, RemoteOrigin: srv.URL + "/gone.jpg"},
		media.Asset{ID: "local", Kind: media.KindImage, IngestedAt: old},
	)

	report, err := NewSweeper(nil, s, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned, "assets without a remote origin are never probed")
	assert.Equal(t, 1, report.Removed)

	remaining, err := s.ListAll(context.Background(), "")
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, a := range remaining {
		ids[a.ID] = true
	}
	assert.True(t, ids["keep"])
	assert.True(t, ids["local"], "assets with no remote origin must survive every sweep")
	assert.False(t, ids["drop"])
}

func TestRunKeepsAssetOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := seededStore(t, media.Asset{
		ID: "flaky", Kind: media.KindImage,
		IngestedAt: time.Now().Add(-time.Hour), RemoteOrigin: srv.URL + "/a.jpg",
	})

	report, err := NewSweeper(nil, s, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Removed, "a failing remote is not a gone remote")
}

func TestRunKeepsUnreachableHost(t *testing.T) {
	s := seededStore(t, media.Asset{
		ID: "dark", Kind: media.KindImage,
		IngestedAt: time.Now().Add(-time.Hour), RemoteOrigin: "http://127.0.0.1:1/x.jpg",
	})

	report, err := NewSweeper(nil, s, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Removed, "transport errors must not trigger deletion")
}

func TestRunSkipsFreshIngests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := seededStore(t, media.Asset{
		ID: "fresh", Kind: media.KindImage,
		IngestedAt: time.Now(), RemoteOrigin: srv.URL + "/new.jpg",
	})

	report, err := NewSweeper(nil, s, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned, "assets just ingested are left alone")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := seededStore(t)
	sw := NewSweeper(nil, s, testConfig())
	assert.Error(t, sw.Start("not a schedule"))
	require.NoError(t, sw.Start("@every 1h"))
	sw.Stop()
}
