package models

import "time"

// VersionRecord is the persisted side-record describing the last successful
// refresh of one region's artifact. It is only mutated by a refresh cycle.
type VersionRecord struct {
	Version      string    `json:"version"`
	LastDownload time.Time `json:"last_download"`
	SourceURL    string    `json:"source_url"`
	FileSize     int64     `json:"file_size"`
	RowCount     int       `json:"row_count"`
	Fields       []string  `json:"fields"`
}

// CacheInfo summarizes artifact freshness for consumers
type CacheInfo struct {
	Region        string `json:"region"`
	IsValid       bool   `json:"is_valid"`
	AgeDays       int    `json:"age_days"`
	ExpiresInDays int    `json:"expires_in_days"`
	Version       string `json:"version"`
	RowCount      int    `json:"row_count"`
}
