package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// Config holds configuration settings for the guardian
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		APIKeys  []string
		LogLevel string

		// External services
		EngineURL   string
		SDLCURL     string
		DepotURL    string
		EngineToken string
		SDLCToken   string
		DepotToken  string

		// Defaults applied when an intent omits them
		ProjectID   string
		WorkspaceID string

		// Adapter & Retry
		AdapterTimeout time.Duration
		Retry          api.RetryConfig

		// Bulk backfill
		BackfillParallelism int
		BackfillTolerance   float64
		SampleSize          int

		// Manifests & idempotency
		ManifestBucketURL    string
		IdempotencyRedisAddr string
		IdempotencyTTL       time.Duration

		// Policy
		PolicyScript string

		ShutdownTimeout time.Duration
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultEngineURL = "http://localhost:6300"
	DefaultSDLCURL   = "http://localhost:6100"
	DefaultDepotURL  = "http://localhost:6200"

	DefaultAdapterTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultIdempotencyTTL  = 24 * time.Hour

	DefaultRetryMaxRetries  = 3
	DefaultRetryInitBackoff = 1000
	DefaultMaxRetryBackoff  = 60000
	DefaultRetryBackoffType = api.BackoffTypeExponential

	DefaultBackfillParallelism = 4
	DefaultBackfillTolerance   = 0.05
	DefaultSampleSize          = 100

	DefaultManifestBucketURL = "mem://"

	MaxRetryMaxRetries  = 1000
	MaxBackfillWorkers  = 64
	MaxRetryInitBackoff = 24 * 60 * 60 * 1000 // 1 day in ms
	MaxRetryMaxBackoff  = MaxRetryInitBackoff
)

var (
	ErrInvalidAPIPort          = errors.New("invalid API port")
	ErrNoAPIKeys               = errors.New("at least one API key is required")
	ErrInvalidTolerance        = errors.New("backfill tolerance must be in [0, 1]")
	ErrInvalidParallelism      = errors.New("backfill parallelism must be positive")
	ErrInvalidRetryMaxRetries  = errors.New("retry max retries cannot be zero")
	ErrInvalidRetryInitBackoff = errors.New("retry initial backoff must be positive")
	ErrInvalidRetryMaxBackoff  = errors.New("retry max backoff must be positive")
	ErrRetryMaxBackoffTooSmall = errors.New("retry max backoff must be >= retry initial backoff")
	ErrInvalidRetryBackoffType = errors.New("invalid retry backoff type")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// server, adapter, retry, and flow settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:   DefaultAPIHost,
		APIPort:   DefaultAPIPort,
		APIKeys:   []string{"demo-key"},
		LogLevel:  "info",
		EngineURL: DefaultEngineURL,
		SDLCURL:   DefaultSDLCURL,
		DepotURL:  DefaultDepotURL,

		ProjectID:   "demo-project",
		WorkspaceID: "guardian-dev",

		AdapterTimeout: DefaultAdapterTimeout,
		Retry: api.RetryConfig{
			MaxRetries:  DefaultRetryMaxRetries,
			InitBackoff: DefaultRetryInitBackoff,
			MaxBackoff:  DefaultMaxRetryBackoff,
			BackoffType: DefaultRetryBackoffType,
		},

		BackfillParallelism: DefaultBackfillParallelism,
		BackfillTolerance:   DefaultBackfillTolerance,
		SampleSize:          DefaultSampleSize,

		ManifestBucketURL: DefaultManifestBucketURL,
		IdempotencyTTL:    DefaultIdempotencyTTL,

		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("ENGINE_URL", &c.EngineURL)
	loadEnvString("SDLC_URL", &c.SDLCURL)
	loadEnvString("DEPOT_URL", &c.DepotURL)
	loadEnvString("ENGINE_TOKEN", &c.EngineToken)
	loadEnvString("SDLC_TOKEN", &c.SDLCToken)
	loadEnvString("DEPOT_TOKEN", &c.DepotToken)
	loadEnvString("PROJECT_ID", &c.ProjectID)
	loadEnvString("WORKSPACE_ID", &c.WorkspaceID)
	loadEnvString("MANIFEST_BUCKET_URL", &c.ManifestBucketURL)
	loadEnvString("IDEMPOTENCY_REDIS_ADDR", &c.IdempotencyRedisAddr)
	loadEnvString("POLICY_SCRIPT", &c.PolicyScript)
	loadEnvString("RETRY_BACKOFF_TYPE", &c.Retry.BackoffType)

	if keys := os.Getenv("API_KEYS"); keys != "" {
		c.APIKeys = c.APIKeys[:0]
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				c.APIKeys = append(c.APIKeys, key)
			}
		}
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}

	if err := loadEnvInt(
		"RETRY_MAX_RETRIES", &c.Retry.MaxRetries, 0, MaxRetryMaxRetries,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_INITIAL_BACKOFF", &c.Retry.InitBackoff, 0, MaxRetryInitBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff, 0, MaxRetryMaxBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"BACKFILL_PARALLELISM", &c.BackfillParallelism, 0, MaxBackfillWorkers,
	); err != nil {
		return err
	}

	if ms := os.Getenv("ADAPTER_TIMEOUT"); ms != "" {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid ADAPTER_TIMEOUT: %q", ms)
		}
		c.AdapterTimeout = time.Duration(v) * time.Millisecond
	}

	if ms := os.Getenv("SHUTDOWN_TIMEOUT"); ms != "" {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %q", ms)
		}
		c.ShutdownTimeout = time.Duration(v) * time.Millisecond
	}

	if tol := os.Getenv("BACKFILL_ERROR_TOLERANCE"); tol != "" {
		v, err := strconv.ParseFloat(tol, 64)
		if err != nil || v < 0 || v > 1 {
			return fmt.Errorf("invalid BACKFILL_ERROR_TOLERANCE: %q", tol)
		}
		c.BackfillTolerance = v
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if len(c.APIKeys) == 0 {
		return ErrNoAPIKeys
	}

	if c.BackfillTolerance < 0 || c.BackfillTolerance > 1 {
		return ErrInvalidTolerance
	}

	if c.BackfillParallelism <= 0 {
		return ErrInvalidParallelism
	}

	if c.Retry.MaxRetries == 0 {
		return ErrInvalidRetryMaxRetries
	}

	if c.Retry.InitBackoff <= 0 {
		return ErrInvalidRetryInitBackoff
	}

	if c.Retry.MaxBackoff <= 0 {
		return ErrInvalidRetryMaxBackoff
	}

	if c.Retry.MaxBackoff < c.Retry.InitBackoff {
		return ErrRetryMaxBackoffTooSmall
	}

	if c.Retry.BackoffType != api.BackoffTypeFixed &&
		c.Retry.BackoffType != api.BackoffTypeLinear &&
		c.Retry.BackoffType != api.BackoffTypeExponential {
		return fmt.Errorf("%w: %s",
			ErrInvalidRetryBackoffType, c.Retry.BackoffType)
	}

	return nil
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
