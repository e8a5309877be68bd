package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"realprice/server/internal/models"
)

// Store persists one VersionRecord per region in a single JSON side-file.
// Records are only replaced by a successful refresh cycle; every write goes
// through a temp file and rename so a crash never leaves a torn record.
type Store struct {
	logger  *logrus.Logger
	path    string
	ttlDays int
	mu      sync.RWMutex
	records map[string]models.VersionRecord
	now     func() time.Time
}

func NewStore(logger *logrus.Logger, path string, ttlDays int) *Store {
	s := &Store{
		logger:  logger,
		path:    path,
		ttlDays: ttlDays,
		records: make(map[string]models.VersionRecord),
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("Could not load version records: %v", err)
		}
		return
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		s.logger.Errorf("Failed to parse version records: %v", err)
		s.records = make(map[string]models.VersionRecord)
		return
	}

	s.logger.Infof("Loaded version records for %d regions", len(s.records))
}

// Get returns the stored record for a region, if any
func (s *Store) Get(region string) (models.VersionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[region]
	return record, ok
}

// Put replaces a region's record and persists the store
func (s *Store) Put(region string, record models.VersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[region] = record

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"region":  region,
		"version": record.Version,
	}).Info("Version record updated")
	return nil
}

// AgeDays returns the whole days since the region's last download
func (s *Store) AgeDays(region string) (int, bool) {
	record, ok := s.Get(region)
	if !ok || record.LastDownload.IsZero() {
		return 0, false
	}
	return int(s.now().Sub(record.LastDownload).Hours() / 24), true
}

// IsValid reports whether the region's artifact is still inside the TTL.
// An artifact exactly ttlDays old is already stale.
func (s *Store) IsValid(region string) bool {
	age, ok := s.AgeDays(region)
	return ok && age < s.ttlDays
}

// ExpiresInDays returns the remaining freshness in days, never negative
func (s *Store) ExpiresInDays(region string) int {
	age, ok := s.AgeDays(region)
	if !ok {
		return 0
	}
	remaining := s.ttlDays - age
	if remaining < 0 {
		return 0
	}
	return remaining
}
