package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realprice/server/config"
	"realprice/server/internal/models"
)

// buildArchive zips a register-style CSV next to a decoy member
func buildArchive(t *testing.T, csvContent string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	manifest, err := w.Create("manifest.xml")
	require.NoError(t, err)
	_, err = manifest.Write([]byte("<manifest/>"))
	require.NoError(t, err)

	member, err := w.Create("lvr_land_a.csv")
	require.NoError(t, err)
	_, err = member.Write([]byte(csvContent))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestManager(t *testing.T, serverURL string) *Manager {
	t.Helper()
	cfg := &config.Config{
		DataDir:         t.TempDir(),
		ArtifactTTLDays: 7,
	}
	cfg.Download.MaxRetries = 2
	cfg.Download.RetryDelay = 0
	cfg.Download.Timeout = 5
	cfg.Download.RequestsPerSecond = 100

	m, err := NewManager(testLogger(), cfg)
	require.NoError(t, err)
	m.regions = []config.RegionSource{
		{
			Key:      "taichung",
			Name:     "臺中市",
			URL:      serverURL + "/DownloadSeason?season=113S2&type=zip&fileName=lvr_landcsv.zip",
			Filename: "taichung_prices.csv",
			Archive:  true,
		},
	}
	return m
}

func TestRefresh_FullPipeline(t *testing.T) {
	archive := buildArchive(t, nationwideCSV)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	require.NoError(t, m.Refresh(context.Background(), "taichung"))

	artifactPath, err := m.ArtifactPath("taichung")
	require.NoError(t, err)
	data, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "北屯區")
	assert.NotContains(t, string(data), "臺北市")

	info := m.CacheInfo("taichung")
	require.NotNil(t, info)
	assert.True(t, info.IsValid)
	assert.Equal(t, "113年第2季", info.Version)
	assert.Equal(t, 2, info.RowCount)

	// Temp download and extract dirs are cleaned up
	assert.False(t, fileExists(filepath.Join(m.dataDir, "temp_download.zip")))
	_, err = os.Stat(filepath.Join(m.dataDir, "temp_extract"))
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureData_DownloadsOncePerTTL(t *testing.T) {
	archive := buildArchive(t, nationwideCSV)
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(archive)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	ok, err := m.EnsureData(context.Background(), "taichung")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.EnsureData(context.Background(), "taichung")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, requests)
}

func TestEnsureData_FallsBackToStaleArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	// A stale artifact with no version record forces a refresh attempt
	artifactPath, err := m.ArtifactPath("taichung")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(artifactPath, []byte(nationwideCSV), 0644))

	ok, err := m.EnsureData(context.Background(), "taichung")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureData_FailsWithoutAnyArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	ok, err := m.EnsureData(context.Background(), "taichung")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestEnsureData_UnknownRegion(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0")

	_, err := m.EnsureData(context.Background(), "atlantis")
	assert.Error(t, err)
}

func TestRefresh_SkipsMatchingVersion(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	require.NoError(t, m.versions.Put("taichung", models.VersionRecord{
		Version:      "113年第2季",
		LastDownload: time.Now(),
	}))

	require.NoError(t, m.Refresh(context.Background(), "taichung"))
	assert.Equal(t, 0, requests)
}

func TestBackupRotation(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0")
	region := m.regionByKey("taichung")
	require.NotNil(t, region)

	artifactPath := filepath.Join(m.dataDir, region.Filename)
	require.NoError(t, os.WriteFile(artifactPath, []byte("data"), 0644))

	current := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	for i := 0; i < maxBackups+2; i++ {
		m.backupArtifact(region)
		current = current.Add(time.Minute)
	}

	backups, err := filepath.Glob(filepath.Join(m.backupDir, "taichung_prices_*.csv"))
	require.NoError(t, err)
	assert.Len(t, backups, maxBackups)

	// The oldest two were pruned, the newest survives
	for _, path := range backups {
		assert.NotContains(t, path, "20260101_000000")
		assert.NotContains(t, path, "20260101_000100")
	}
	assert.Contains(t, backups[len(backups)-1], "20260101_001100")
}

func TestCacheInfo_NilWithoutArtifact(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:0")
	assert.Nil(t, m.CacheInfo("taichung"))
}

func TestSeasonLabel(t *testing.T) {
	assert.Equal(t, "114年第3季", seasonLabel("114S3"))
	assert.Equal(t, "114年第3季", seasonLabel("114s3"))
	assert.Equal(t, "bogus", seasonLabel("bogus"))
}
