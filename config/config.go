package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Data directory for downloaded artifacts, backups and the version record
	DataDir string `env:"DATA_DIR" envDefault:"data"`

	// Database file for query history and monitoring rules
	DatabasePath string `env:"DATABASE_PATH" envDefault:"database/realprice.db"`

	// Download configuration
	Download struct {
		// Maximum number of attempts per download
		MaxRetries int `env:"DOWNLOAD_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"DOWNLOAD_RETRY_DELAY" envDefault:"5"`

		// Per-attempt timeout in seconds
		Timeout int `env:"DOWNLOAD_TIMEOUT" envDefault:"600"`

		// Maximum requests per second against the open-data host
		RequestsPerSecond int `env:"DOWNLOAD_RPS" envDefault:"1"`
	}

	// Number of days a downloaded artifact stays fresh
	ArtifactTTLDays int `env:"ARTIFACT_TTL_DAYS" envDefault:"7"`

	// Number of hours a computed query result stays cached
	ResultTTLHours int `env:"RESULT_TTL_HOURS" envDefault:"24"`

	// Trailing window for queries, in years
	QueryWindowYears int `env:"QUERY_WINDOW_YEARS" envDefault:"5"`

	// Maximum gap between consecutive house numbers within a project group
	ProximityThreshold int `env:"PROXIMITY_THRESHOLD" envDefault:"100"`

	// HTTP server port
	Port string `env:"PORT" envDefault:"5250"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
