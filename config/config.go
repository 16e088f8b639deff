package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "sjsage522/dealworker/pkg/errors"
)

// DateLayout is the layout of FROM_DATE / TO_DATE
const DateLayout = "2006-01-02"

// Config represents the application configuration
type Config struct {
	// Search parameters
	TargetURL     string
	FromDate      string
	ToDate        string
	LocationQuery string
	MinPrice      string
	ScrollCycles  int

	// Browser configuration
	Headless          bool
	ActionDelay       time.Duration
	TypingDelay       time.Duration
	SettleDelay       time.Duration
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	ScrollWait        time.Duration
	ChromePath        string
	ProxyServer       string
	UserAgent         string

	// Parsing configuration
	SelectorsFile  string
	DistrictPrefix string

	// JSON sink
	OutputDir string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string
	DedupeTTL    time.Duration
	BlockTime    time.Duration

	// Anomaly sink
	DatabaseURL string
	ClassifyURL string
	AnomalyURL  string

	// Worker configuration
	ScrapeInterval time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		TargetURL:     getEnv("TARGET_URL", "https://srem.moj.gov.sa/transactions-info"),
		FromDate:      getEnv("FROM_DATE", ""),
		ToDate:        getEnv("TO_DATE", ""),
		LocationQuery: getEnv("LOCATION_QUERY", "مدينة الرياض"),
		MinPrice:      getEnv("MIN_PRICE", "1"),
		ScrollCycles:  getEnvInt("SCROLL_CYCLES", 5),

		Headless:          getEnvBool("HEADLESS", true),
		ActionDelay:       time.Duration(getEnvInt("ACTION_DELAY_MS", 250)) * time.Millisecond,
		TypingDelay:       time.Duration(getEnvInt("TYPING_DELAY_MS", 100)) * time.Millisecond,
		SettleDelay:       time.Duration(getEnvInt("SETTLE_DELAY_MS", 2000)) * time.Millisecond,
		ActionTimeout:     time.Duration(getEnvInt("ACTION_TIMEOUT_SECONDS", 15)) * time.Second,
		NavigationTimeout: time.Duration(getEnvInt("NAVIGATION_TIMEOUT_SECONDS", 60)) * time.Second,
		ScrollWait:        time.Duration(getEnvInt("SCROLL_WAIT_MS", 5000)) * time.Millisecond,
		ChromePath:        getEnv("CHROME_PATH", ""),
		ProxyServer:       getEnv("PROXY_SERVER", ""),
		UserAgent:         getEnv("USER_AGENT", ""),

		SelectorsFile:  getEnv("SELECTORS_FILE", ""),
		DistrictPrefix: getEnv("DISTRICT_PREFIX", "الرياض ,"),

		OutputDir: getEnv("OUTPUT_DIR", "."),

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "deals"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),
		DedupeTTL:    time.Duration(getEnvInt("DEDUPE_TTL_HOURS", 48)) * time.Hour,
		BlockTime:    time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 900)) * time.Second,

		DatabaseURL: getEnv("DATABASE_URL", ""),
		ClassifyURL: getEnv("CLASSIFY_URL", ""),
		AnomalyURL:  getEnv("ANOMALY_URL", ""),

		ScrapeInterval: time.Duration(getEnvInt("SCRAPE_INTERVAL_SECONDS", 86400)) * time.Second,

		Environment: getEnv("DEAL_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid TARGET_URL %q", c.TargetURL), err)
	}
	if strings.TrimSpace(c.LocationQuery) == "" {
		return apperrors.NewConfiguration("LOCATION_QUERY must not be empty", nil)
	}
	if c.ScrollCycles < 0 {
		return apperrors.NewConfiguration("SCROLL_CYCLES must not be negative", nil)
	}
	if c.RedisStreamCount < 1 {
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.ScrapeInterval <= 0 {
		return apperrors.NewConfiguration("SCRAPE_INTERVAL_SECONDS must be positive", nil)
	}
	from, to, err := c.DateRange(time.Now())
	if err != nil {
		return err
	}
	if from.After(to) {
		return apperrors.NewConfiguration(fmt.Sprintf("FROM_DATE %s is after TO_DATE %s",
			from.Format(DateLayout), to.Format(DateLayout)), nil)
	}
	return nil
}

// DateRange resolves the search window relative to now.
// Unset dates default to yesterday..today.
func (c *Config) DateRange(now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -1)
	to := today

	if c.FromDate != "" {
		t, err := time.ParseInLocation(DateLayout, c.FromDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewConfiguration("invalid FROM_DATE", err)
		}
		from = t
	}
	if c.ToDate != "" {
		t, err := time.ParseInLocation(DateLayout, c.ToDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewConfiguration("invalid TO_DATE", err)
		}
		to = t
	}
	return from, to, nil
}

// AnomalySinkEnabled reports whether the classify -> anomaly -> store chain is configured
func (c *Config) AnomalySinkEnabled() bool {
	return c.DatabaseURL != "" && c.ClassifyURL != "" && c.AnomalyURL != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
