package market

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"realprice/server/config"
	"realprice/server/internal/dataset"
	"realprice/server/internal/models"
)

// Service answers price queries over one region's filtered artifact. It owns
// the two process-wide caches (parsed rows, computed results); both are
// mutex-guarded so concurrent queries are safe.
type Service struct {
	logger    *logrus.Logger
	cfg       *config.Config
	datasets  *dataset.Manager
	regionKey string
	rows      *rowCache
	results   *resultCache
	now       func() time.Time
}

func NewService(logger *logrus.Logger, cfg *config.Config, datasets *dataset.Manager, regionKey string) *Service {
	return &Service{
		logger:    logger,
		cfg:       cfg,
		datasets:  datasets,
		regionKey: regionKey,
		rows:      newRowCache(time.Duration(cfg.ResultTTLHours) * time.Hour),
		results:   newResultCache(time.Duration(cfg.ResultTTLHours) * time.Hour),
		now:       time.Now,
	}
}

// EnsureData makes the region's artifact available, honoring the TTL
func (s *Service) EnsureData(ctx context.Context, regionKey string) (bool, error) {
	return s.datasets.EnsureData(ctx, regionKey)
}

// GetCacheInfo reports artifact freshness, or nil when nothing is cached
func (s *Service) GetCacheInfo(regionKey string) *models.CacheInfo {
	return s.datasets.CacheInfo(regionKey)
}

// RefreshAll refreshes every supported region independently
func (s *Service) RefreshAll(ctx context.Context) map[string]error {
	return s.datasets.RefreshAll(ctx)
}

// SetCacheTTL reconfigures the result cache TTL at runtime. The whole cache
// is discarded; surviving entries are not re-evaluated against the new TTL.
func (s *Service) SetCacheTTL(hours int) {
	s.results.setTTL(time.Duration(hours) * time.Hour)
	s.logger.Infof("Result cache TTL set to %d hours", hours)
}

// ClearCache drops both the result cache and the parsed-row cache
func (s *Service) ClearCache() {
	s.results.clear()
	s.rows.clear()
}

// QueryPrice resolves a free-text area into aggregate price statistics.
// Failures surface as *UserInputError (unrecognized area), *DataAbsentError
// (no matching rows) or a wrapped dataset.ErrFormat.
func (s *Service) QueryPrice(ctx context.Context, area string, useCache bool) (*models.PriceStatistics, error) {
	if useCache {
		if stats, ok := s.results.get(area); ok {
			s.logger.WithField("area", area).Info("Result cache hit")
			return stats, nil
		}
	}

	district, road := NormalizeArea(area)
	if district == "" {
		return nil, &UserInputError{Area: area, Suggestions: SuggestDistricts(area)}
	}

	rows, err := s.loadRows(ctx)
	if err != nil {
		return nil, err
	}

	filtered := filterByDistrictAndRoad(rows, district, road)
	if len(filtered) == 0 {
		s.logger.WithField("district", district).Warn("District filter matched nothing")
		return nil, &DataAbsentError{
			Area:      area,
			Districts: availableDistricts(rows),
		}
	}

	// Label covers everything the district holds, before the window trims it
	fullCodes := periodCodes(filtered)

	windowed := filterByDateWindow(s.logger, filtered, s.cfg.QueryWindowYears, s.now())
	if len(windowed) == 0 {
		s.logger.WithFields(logrus.Fields{
			"district": district,
			"years":    s.cfg.QueryWindowYears,
		}).Warn("All transactions fall outside the query window")
		return nil, &DataAbsentError{
			Area:          area,
			OutsideWindow: true,
			WindowYears:   s.cfg.QueryWindowYears,
		}
	}

	transactions, err := convertRows(s.logger, windowed)
	if err != nil {
		return nil, err
	}

	stats, err := Analyze(transactions, area, fullCodes, s.cfg.ProximityThreshold)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"area":         area,
		"transactions": stats.TotalTransactions,
		"groups":       len(stats.ProjectGroups),
	}).Info("Query completed")

	if useCache {
		s.results.set(area, stats)
	}
	return stats, nil
}

// loadRows returns the parsed artifact rows, reading from disk at most once
// per TTL. The refresh pipeline runs first so the artifact is as fresh as
// the TTL policy allows; a failed refresh degrades to whatever is on disk.
func (s *Service) loadRows(ctx context.Context) ([]models.RawRow, error) {
	if rows, ok := s.rows.get(); ok {
		return rows, nil
	}

	if _, err := s.datasets.EnsureData(ctx, s.regionKey); err != nil {
		s.logger.WithError(err).Warn("Could not ensure fresh data, trying local artifact")
	}

	artifactPath, err := s.datasets.ArtifactPath(s.regionKey)
	if err != nil {
		return nil, err
	}

	rows, err := readRows(artifactPath)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("rows", len(rows)).Info("Loaded artifact rows")
	s.rows.set(rows)
	return rows, nil
}
