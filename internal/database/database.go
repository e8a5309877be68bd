package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// QueryRecord is one answered price query, kept for history
type QueryRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Area         string    `gorm:"index" json:"area"`
	Transactions int       `json:"transactions"`
	AvgUnitPrice float64   `json:"avg_unit_price"`
	CacheHit     bool      `json:"cache_hit"`
	CreatedAt    time.Time `json:"created_at"`
}

// MonitorRule is a persisted unit-price alert threshold for an area.
// Direction "above" fires when the mean unit price exceeds Threshold,
// "below" when it drops under it.
type MonitorRule struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Area       string    `gorm:"index" json:"area"`
	Threshold  float64   `json:"threshold"`
	Direction  string    `gorm:"default:above" json:"direction"`
	WebhookURL string    `json:"webhook_url"`
	Enabled    bool      `gorm:"default:true" json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{db: db}, nil
}

// RunMigrations creates or updates the schema
func (d *Database) RunMigrations() error {
	return d.db.AutoMigrate(&QueryRecord{}, &MonitorRule{})
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordQuery appends a history row
func (d *Database) RecordQuery(record *QueryRecord) error {
	return d.db.Create(record).Error
}

// GetRecentQueries returns the newest history rows, capped at limit
func (d *Database) GetRecentQueries(limit int) ([]QueryRecord, error) {
	var records []QueryRecord
	err := d.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// CreateMonitorRule stores a rule
func (d *Database) CreateMonitorRule(rule *MonitorRule) error {
	return d.db.Create(rule).Error
}

// GetMonitorRules returns enabled rules, optionally narrowed to an area
func (d *Database) GetMonitorRules(area string) ([]MonitorRule, error) {
	var rules []MonitorRule
	q := d.db.Where("enabled = ?", true)
	if area != "" {
		q = q.Where("area = ?", area)
	}
	err := q.Find(&rules).Error
	return rules, err
}

// ListMonitorRules returns every rule, enabled or not
func (d *Database) ListMonitorRules() ([]MonitorRule, error) {
	var rules []MonitorRule
	err := d.db.Order("id").Find(&rules).Error
	return rules, err
}

// DeleteMonitorRule removes a rule by id
func (d *Database) DeleteMonitorRule(id uint) error {
	result := d.db.Delete(&MonitorRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
