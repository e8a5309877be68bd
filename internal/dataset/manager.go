package dataset

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"realprice/server/config"
	"realprice/server/internal/fetcher"
	"realprice/server/internal/models"
	"realprice/server/internal/version"
)

const maxBackups = 10

// Manager keeps each region's filtered artifact fresh under the TTL policy
// and degrades to the previous artifact when a refresh fails.
type Manager struct {
	logger     *logrus.Logger
	dataDir    string
	backupDir  string
	downloader *fetcher.Downloader
	versions   *version.Store
	regions    []config.RegionSource
	refreshMu  sync.Mutex
	now        func() time.Time
}

// versionDescriptor is what the version probe yields for a region
type versionDescriptor struct {
	Version     string
	DownloadURL string
	FileName    string
}

func NewManager(logger *logrus.Logger, cfg *config.Config) (*Manager, error) {
	dataDir := cfg.DataDir
	backupDir := filepath.Join(dataDir, "backup")
	for _, dir := range []string{dataDir, backupDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	policy := fetcher.RetryPolicy{
		MaxAttempts: cfg.Download.MaxRetries,
		Delay:       time.Duration(cfg.Download.RetryDelay) * time.Second,
		Timeout:     time.Duration(cfg.Download.Timeout) * time.Second,
	}

	return &Manager{
		logger:     logger,
		dataDir:    dataDir,
		backupDir:  backupDir,
		downloader: fetcher.NewDownloader(logger, policy, cfg.Download.RequestsPerSecond),
		versions:   version.NewStore(logger, filepath.Join(dataDir, ".version_info.json"), cfg.ArtifactTTLDays),
		regions:    config.SupportedRegions,
		now:        time.Now,
	}, nil
}

func (m *Manager) regionByKey(key string) *config.RegionSource {
	for _, region := range m.regions {
		if region.Key == key {
			return &region
		}
	}
	return nil
}

// ArtifactPath returns the filtered CSV path for a region key
func (m *Manager) ArtifactPath(regionKey string) (string, error) {
	region := m.regionByKey(regionKey)
	if region == nil {
		return "", fmt.Errorf("unsupported region: %s", regionKey)
	}
	return filepath.Join(m.dataDir, region.Filename), nil
}

// EnsureData makes a region's artifact available, downloading only when the
// cached one is missing or past the TTL. A failed refresh falls back to the
// stale artifact when one exists.
func (m *Manager) EnsureData(ctx context.Context, regionKey string) (bool, error) {
	artifactPath, err := m.ArtifactPath(regionKey)
	if err != nil {
		return false, err
	}

	if fileExists(artifactPath) && m.versions.IsValid(regionKey) {
		age, _ := m.versions.AgeDays(regionKey)
		m.logger.WithFields(logrus.Fields{
			"region":   regionKey,
			"age_days": age,
		}).Info("Cached artifact still valid")
		return true, nil
	}

	m.logger.WithField("region", regionKey).Info("Cache invalid or missing, refreshing")
	if err := m.Refresh(ctx, regionKey); err != nil {
		if fileExists(artifactPath) {
			age, _ := m.versions.AgeDays(regionKey)
			m.logger.WithError(err).WithFields(logrus.Fields{
				"region":   regionKey,
				"age_days": age,
			}).Warn("Refresh failed, falling back to stale artifact")
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// Refresh downloads, extracts and filters a region's dataset, then swaps the
// artifact and version record in. Only one refresh runs at a time.
func (m *Manager) Refresh(ctx context.Context, regionKey string) error {
	region := m.regionByKey(regionKey)
	if region == nil {
		return fmt.Errorf("unsupported region: %s", regionKey)
	}

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	descriptor := m.latestVersion(region)

	if record, ok := m.versions.Get(regionKey); ok &&
		record.Version == descriptor.Version && m.versions.IsValid(regionKey) {
		m.logger.WithFields(logrus.Fields{
			"region":  regionKey,
			"version": descriptor.Version,
		}).Info("Already on the latest version")
		return nil
	}

	tempName := "temp_download.csv"
	if region.Archive {
		tempName = "temp_download.zip"
	}
	tempPath := filepath.Join(m.dataDir, tempName)
	defer os.Remove(tempPath)

	if err := m.downloader.Download(ctx, descriptor.DownloadURL, tempPath); err != nil {
		return err
	}

	csvPath := tempPath
	if region.Archive {
		extractDir := filepath.Join(m.dataDir, "temp_extract")
		defer os.RemoveAll(extractDir)

		extracted, err := fetcher.ExtractCSV(m.logger, tempPath, extractDir)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		csvPath = extracted
	}

	artifactPath := filepath.Join(m.dataDir, region.Filename)
	m.backupArtifact(region)

	rowCount, fields, err := filterRegion(m.logger, csvPath, artifactPath, CityTokens(region.Name))
	if err != nil {
		return err
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return err
	}

	if err := m.versions.Put(regionKey, models.VersionRecord{
		Version:      descriptor.Version,
		LastDownload: m.now(),
		SourceURL:    descriptor.DownloadURL,
		FileSize:     info.Size(),
		RowCount:     rowCount,
		Fields:       fields,
	}); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"region":  regionKey,
		"version": descriptor.Version,
		"rows":    rowCount,
	}).Info("Dataset refresh completed")
	return nil
}

// RefreshAll fans out one refresh per region. Regions fail independently;
// the returned map carries a nil error for each region that succeeded.
func (m *Manager) RefreshAll(ctx context.Context) map[string]error {
	results := make(map[string]error, len(m.regions))
	var mu sync.Mutex
	var g errgroup.Group

	for _, region := range m.regions {
		key := region.Key
		g.Go(func() error {
			err := m.Refresh(ctx, key)
			mu.Lock()
			results[key] = err
			mu.Unlock()
			if err != nil {
				m.logger.WithError(err).WithField("region", key).Error("Region refresh failed")
			}
			return nil
		})
	}

	g.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	m.logger.WithFields(logrus.Fields{
		"total":     len(results),
		"succeeded": succeeded,
	}).Info("Refresh-all completed")
	return results
}

// CacheInfo reports artifact freshness for a region, or nil when no
// artifact has ever been downloaded.
func (m *Manager) CacheInfo(regionKey string) *models.CacheInfo {
	artifactPath, err := m.ArtifactPath(regionKey)
	if err != nil || !fileExists(artifactPath) {
		return nil
	}
	record, ok := m.versions.Get(regionKey)
	if !ok {
		return nil
	}
	age, _ := m.versions.AgeDays(regionKey)

	return &models.CacheInfo{
		Region:        regionKey,
		IsValid:       m.versions.IsValid(regionKey),
		AgeDays:       age,
		ExpiresInDays: m.versions.ExpiresInDays(regionKey),
		Version:       record.Version,
		RowCount:      record.RowCount,
	}
}

// latestVersion derives the version descriptor for a region. The batch
// endpoint encodes the Minguo season in its query string (e.g. 114S3).
func (m *Manager) latestVersion(region *config.RegionSource) versionDescriptor {
	descriptor := versionDescriptor{
		Version:     "unknown",
		DownloadURL: region.URL,
		FileName:    "data.csv",
	}
	if region.Archive {
		descriptor.FileName = "data.zip"
	}

	if u, err := url.Parse(region.URL); err == nil {
		if name := u.Query().Get("fileName"); name != "" {
			descriptor.FileName = name
		}
		if season := u.Query().Get("season"); season != "" {
			descriptor.Version = seasonLabel(season)
		}
	}
	return descriptor
}

// seasonLabel turns "114S3" into "114年第3季"
func seasonLabel(season string) string {
	parts := strings.SplitN(strings.ToUpper(season), "S", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return season
	}
	return fmt.Sprintf("%s年第%s季", parts[0], parts[1])
}

// backupArtifact copies the current artifact aside with a timestamp suffix
// and prunes all but the newest backups by name order.
func (m *Manager) backupArtifact(region *config.RegionSource) {
	artifactPath := filepath.Join(m.dataDir, region.Filename)
	if !fileExists(artifactPath) {
		return
	}

	base := strings.TrimSuffix(region.Filename, ".csv")
	stamp := m.now().Format("20060102_150405")
	backupPath := filepath.Join(m.backupDir, fmt.Sprintf("%s_%s.csv", base, stamp))

	if err := copyFile(artifactPath, backupPath); err != nil {
		m.logger.Warnf("Backup failed: %v", err)
		return
	}
	m.logger.WithField("backup", filepath.Base(backupPath)).Info("Previous artifact backed up")

	pattern := filepath.Join(m.backupDir, base+"_*.csv")
	backups, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	sort.Strings(backups)
	if len(backups) > maxBackups {
		for _, old := range backups[:len(backups)-maxBackups] {
			if err := os.Remove(old); err == nil {
				m.logger.WithField("file", filepath.Base(old)).Info("Removed old backup")
			}
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
