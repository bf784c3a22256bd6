package config

import (
	"errors"
	"fmt"
	"time"
)

// CatalogConfig extends BaseConfig with scan, match and provider settings.
type CatalogConfig struct {
	// flatten keeps base defaults at the top level when loaded through the
	// structs provider; squash does the same on unmarshal.
	BaseConfig `koanf:",squash,flatten"`
	Scanner    ScannerSettings  `koanf:"scanner"`
	Matcher    MatcherSettings  `koanf:"matcher"`
	Metadata   MetadataSettings `koanf:"metadata"`
	Watcher    WatcherSettings  `koanf:"watcher"`
	Events     EventsSettings   `koanf:"events"`
	Archive    ArchiveSettings  `koanf:"archive"`
}

// ScannerSettings controls the scan job controller and the walker.
type ScannerSettings struct {
	Workers              int      `koanf:"workers"`
	QueueSize            int      `koanf:"queue_size"`
	Extensions           []string `koanf:"extensions"`
	IgnorePatterns       []string `koanf:"ignore_patterns"`
	FollowSymlinks       bool     `koanf:"follow_symlinks"`
	JobHistory           int      `koanf:"job_history"`
	FailOnProviderOutage bool     `koanf:"fail_on_provider_outage"`
	RemoveMissing        bool     `koanf:"remove_missing"`
}

// MatcherSettings holds the scoring thresholds.
type MatcherSettings struct {
	AcceptThreshold    float64 `koanf:"accept_threshold"`
	PlausibleThreshold float64 `koanf:"plausible_threshold"`
	MinMargin          float64 `koanf:"min_margin"`
	TitleWeight        float64 `koanf:"title_weight"`
	YearExactBonus     float64 `koanf:"year_exact_bonus"`
	YearPenaltyPerYear float64 `koanf:"year_penalty_per_year"`
	MaxAmbiguous       int     `koanf:"max_ambiguous"`
}

// ProviderSettings configures one metadata provider.
type ProviderSettings struct {
	Name     string `koanf:"name"`
	Type     string `koanf:"type"` // tmdb
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	Language string `koanf:"language"`
	Priority int    `koanf:"priority"`
	Enabled  bool   `koanf:"enabled"`
}

// CacheSettings configures provider response caching.
type CacheSettings struct {
	// Persistent keeps responses in Redis beyond a single scan job
	Persistent bool          `koanf:"persistent"`
	TTL        time.Duration `koanf:"ttl"`
	KeyPrefix  string        `koanf:"key_prefix"`
}

// MetadataSettings configures the metadata client stack.
type MetadataSettings struct {
	Providers      []ProviderSettings `koanf:"providers"`
	Timeout        time.Duration      `koanf:"timeout"`
	MaxAttempts    int                `koanf:"max_attempts"`
	InitialBackoff time.Duration      `koanf:"initial_backoff"`
	MaxBackoff     time.Duration      `koanf:"max_backoff"`
	RateLimit      float64            `koanf:"rate_limit"`
	RateBurst      int                `koanf:"rate_burst"`
	Cache          CacheSettings      `koanf:"cache"`
}

// WatcherSettings configures live filesystem notifications.
type WatcherSettings struct {
	Enabled               bool          `koanf:"enabled"`
	Debounce              time.Duration `koanf:"debounce"`
	ResubscribeBackoff    time.Duration `koanf:"resubscribe_backoff"`
	MaxResubscribeBackoff time.Duration `koanf:"max_resubscribe_backoff"`
}

// EventsSettings selects the event transport.
type EventsSettings struct {
	Driver       string   `koanf:"driver"` // memory, nats, kafka
	NATSURL      string   `koanf:"nats_url"`
	NATSStream   string   `koanf:"nats_stream"`
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// ArchiveSettings configures where finished job reports are stored.
type ArchiveSettings struct {
	Enabled bool `koanf:"enabled"`
	// Dir stores reports on local disk instead of S3 when Bucket is empty
	Dir      string `koanf:"dir"`
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// Validate validates the catalog configuration
func (c *CatalogConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if c.Scanner.Workers < 1 {
		return errors.New("scanner workers must be at least 1")
	}
	if c.Scanner.QueueSize < 1 {
		return errors.New("scanner queue size must be at least 1")
	}
	if len(c.Scanner.Extensions) == 0 {
		return errors.New("scanner extensions must not be empty")
	}
	if err := c.Matcher.Validate(); err != nil {
		return err
	}
	if c.Metadata.MaxAttempts < 1 {
		return errors.New("metadata max attempts must be at least 1")
	}
	if c.Metadata.Timeout <= 0 {
		return errors.New("metadata timeout must be positive")
	}
	for _, p := range c.Metadata.Providers {
		if p.Enabled && p.Type == "" {
			return fmt.Errorf("metadata provider %q has no type", p.Name)
		}
	}
	switch c.Events.Driver {
	case "memory":
	case "nats":
		if c.Events.NATSURL == "" {
			return errors.New("events nats_url is required for the nats driver")
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("events kafka_brokers is required for the kafka driver")
		}
	default:
		return fmt.Errorf("unsupported events driver: %q", c.Events.Driver)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" && c.Archive.Dir == "" {
		return errors.New("archive bucket or dir is required when archiving is enabled")
	}
	return nil
}

// Validate checks threshold ordering and ranges.
func (m MatcherSettings) Validate() error {
	if m.AcceptThreshold <= 0 || m.AcceptThreshold > 1 {
		return fmt.Errorf("matcher accept threshold out of range: %v", m.AcceptThreshold)
	}
	if m.PlausibleThreshold <= 0 || m.PlausibleThreshold > m.AcceptThreshold {
		return fmt.Errorf("matcher plausible threshold must be in (0, accept]: %v", m.PlausibleThreshold)
	}
	if m.MinMargin < 0 {
		return errors.New("matcher min margin must not be negative")
	}
	if m.MaxAmbiguous < 2 {
		return errors.New("matcher max ambiguous must be at least 2")
	}
	return nil
}

// GetDefaultCatalogConfig returns default catalog configuration
func GetDefaultCatalogConfig() *CatalogConfig {
	base := GetDefaults()
	base.Service.Name = "catalog"

	return &CatalogConfig{
		BaseConfig: *base,
		Scanner: ScannerSettings{
			Workers:   DefaultScanWorkers,
			QueueSize: DefaultScanQueueSize,
			Extensions: []string{
				".mkv", ".mp4", ".avi", ".mov", ".m4v", ".wmv", ".mpg", ".mpeg", ".ts", ".webm",
			},
			IgnorePatterns: []string{"sample", "trailer", "featurette", "extras"},
			JobHistory:     DefaultJobHistorySize,
			RemoveMissing:  true,
		},
		Matcher: GetDefaultMatcherSettings(),
		Metadata: MetadataSettings{
			Providers: []ProviderSettings{
				{
					Name:     "tmdb",
					Type:     "tmdb",
					BaseURL:  "https://api.themoviedb.org/3",
					Language: "en-US",
					Priority: 100,
					Enabled:  true,
				},
			},
			Timeout:        DefaultProviderTimeout,
			MaxAttempts:    DefaultProviderAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			RateLimit:      DefaultProviderRateLimit,
			RateBurst:      DefaultProviderRateBurst,
			Cache: CacheSettings{
				TTL:       DefaultPersistentCacheTTL,
				KeyPrefix: "catalog:metadata:",
			},
		},
		Watcher: WatcherSettings{
			Enabled:               true,
			Debounce:              DefaultWatchDebounce,
			ResubscribeBackoff:    DefaultResubscribeBackoff,
			MaxResubscribeBackoff: DefaultMaxResubscribeBackoff,
		},
		Events: EventsSettings{
			Driver:     "memory",
			NATSStream: "CATALOG",
			KafkaTopic: "catalog-events",
		},
		Archive: ArchiveSettings{
			Prefix: "scan-reports/",
			Region: "us-east-1",
		},
	}
}

// GetDefaultMatcherSettings returns the default scoring thresholds.
func GetDefaultMatcherSettings() MatcherSettings {
	return MatcherSettings{
		AcceptThreshold:    0.85,
		PlausibleThreshold: 0.6,
		MinMargin:          0.1,
		TitleWeight:        1.0,
		YearExactBonus:     0.1,
		YearPenaltyPerYear: 0.15,
		MaxAmbiguous:       5,
	}
}
