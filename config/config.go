package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PolicyEngine/obr-forecast/observe"
)

// Config holds every obrforecastd setting.
type Config struct {
	ListenAddr string

	// StaticDir, when set and present, is served for unmatched GET paths.
	StaticDir string

	ShutdownTimeout time.Duration

	Cache   CacheConfig
	Jobs    JobsConfig
	Compute ComputeConfig
	Submit  SubmitConfig
	Observe ObserveConfig
	Auth    AuthConfig
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration

	// BudgetBytes is the estimated size the cache health check treats as full.
	BudgetBytes int64
}

// JobsConfig configures the job registry.
type JobsConfig struct {
	// Retention is how long finished jobs stay pollable. Zero keeps them forever.
	Retention      time.Duration
	StuckThreshold time.Duration
}

// ComputeConfig bounds background computations.
type ComputeConfig struct {
	// Timeout caps one computation. Zero disables the cap.
	Timeout time.Duration

	// MaxConcurrent caps simultaneous computations. Zero disables the cap.
	MaxConcurrent int

	// Latency is the simulated forecast engine latency.
	Latency time.Duration
}

// SubmitConfig throttles submissions.
type SubmitConfig struct {
	// Rate is submissions per second. Zero disables throttling.
	Rate  float64
	Burst int
}

// ObserveConfig selects telemetry exporters.
type ObserveConfig struct {
	ServiceName     string
	LogLevel        string
	TracingExporter string
	SampleRate      float64
	MetricsExporter string
}

// AuthConfig holds admin credentials. Empty values disable that method.
type AuthConfig struct {
	AdminAPIKey string
	JWTSecret   string
	JWTIssuer   string
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		ListenAddr:      ":8000",
		ShutdownTimeout: 30 * time.Second,
		Cache: CacheConfig{
			DefaultTTL:    time.Hour,
			MaxTTL:        24 * time.Hour,
			SweepInterval: time.Minute,
			BudgetBytes:   256 << 20,
		},
		Jobs: JobsConfig{
			Retention:      24 * time.Hour,
			StuckThreshold: 15 * time.Minute,
		},
		Compute: ComputeConfig{
			Timeout:       10 * time.Minute,
			MaxConcurrent: 8,
			Latency:       2 * time.Second,
		},
		Submit: SubmitConfig{
			Rate:  10,
			Burst: 20,
		},
		Observe: ObserveConfig{
			ServiceName:     "obr-forecast",
			LogLevel:        "info",
			TracingExporter: "none",
			SampleRate:      1.0,
			MetricsExporter: "prometheus",
		},
	}
}

// Load reads the configuration through lookup, starting from Default.
// A nil lookup uses os.LookupEnv. Credentials may be secret references
// resolved by the file and env providers.
func Load(ctx context.Context, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	l := &loader{
		lookup:   lookup,
		resolver: NewResolver(lookup, FileProvider{}, EnvProvider{Lookup: lookup}),
	}

	cfg := Default()

	l.str(ctx, "OBR_LISTEN_ADDR", &cfg.ListenAddr)
	l.str(ctx, "STATIC_FILES_DIR", &cfg.StaticDir)
	l.duration(ctx, "OBR_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	l.duration(ctx, "OBR_CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL)
	l.duration(ctx, "OBR_CACHE_MAX_TTL", &cfg.Cache.MaxTTL)
	l.duration(ctx, "OBR_CACHE_SWEEP_INTERVAL", &cfg.Cache.SweepInterval)
	l.int64(ctx, "OBR_CACHE_BUDGET_BYTES", &cfg.Cache.BudgetBytes)

	l.duration(ctx, "OBR_JOB_RETENTION", &cfg.Jobs.Retention)
	l.duration(ctx, "OBR_JOB_STUCK_THRESHOLD", &cfg.Jobs.StuckThreshold)

	l.duration(ctx, "OBR_COMPUTE_TIMEOUT", &cfg.Compute.Timeout)
	l.int(ctx, "OBR_COMPUTE_MAX_CONCURRENT", &cfg.Compute.MaxConcurrent)
	l.duration(ctx, "OBR_FORECAST_LATENCY", &cfg.Compute.Latency)

	l.float(ctx, "OBR_SUBMIT_RATE", &cfg.Submit.Rate)
	l.int(ctx, "OBR_SUBMIT_BURST", &cfg.Submit.Burst)

	l.str(ctx, "OBR_SERVICE_NAME", &cfg.Observe.ServiceName)
	l.str(ctx, "OBR_LOG_LEVEL", &cfg.Observe.LogLevel)
	l.str(ctx, "OBR_TRACING_EXPORTER", &cfg.Observe.TracingExporter)
	l.float(ctx, "OBR_TRACE_SAMPLE_RATE", &cfg.Observe.SampleRate)
	l.str(ctx, "OBR_METRICS_EXPORTER", &cfg.Observe.MetricsExporter)

	l.str(ctx, "OBR_ADMIN_API_KEY", &cfg.Auth.AdminAPIKey)
	l.str(ctx, "OBR_JWT_SECRET", &cfg.Auth.JWTSecret)
	l.str(ctx, "OBR_JWT_ISSUER", &cfg.Auth.JWTIssuer)

	if err := errors.Join(l.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that parse but cannot work together.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, &FieldError{Key: "OBR_LISTEN_ADDR", Err: ErrInvalidValue})
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, &FieldError{Key: "OBR_CACHE_DEFAULT_TTL", Value: c.Cache.DefaultTTL.String(), Err: ErrInvalidTTL})
	}
	if c.Cache.MaxTTL > 0 && c.Cache.MaxTTL < c.Cache.DefaultTTL {
		errs = append(errs, &FieldError{
			Key:   "OBR_CACHE_MAX_TTL",
			Value: c.Cache.MaxTTL.String(),
			Err:   fmt.Errorf("%w: below default ttl %s", ErrInvalidTTL, c.Cache.DefaultTTL),
		})
	}

	for key, v := range map[string]time.Duration{
		"OBR_CACHE_SWEEP_INTERVAL": c.Cache.SweepInterval,
		"OBR_JOB_RETENTION":        c.Jobs.Retention,
		"OBR_JOB_STUCK_THRESHOLD":  c.Jobs.StuckThreshold,
		"OBR_COMPUTE_TIMEOUT":      c.Compute.Timeout,
		"OBR_FORECAST_LATENCY":     c.Compute.Latency,
		"OBR_SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
	} {
		if v < 0 {
			errs = append(errs, &FieldError{Key: key, Value: v.String(), Err: ErrInvalidValue})
		}
	}
	if c.Compute.MaxConcurrent < 0 {
		errs = append(errs, &FieldError{Key: "OBR_COMPUTE_MAX_CONCURRENT", Value: strconv.Itoa(c.Compute.MaxConcurrent), Err: ErrInvalidValue})
	}
	if c.Submit.Rate < 0 || c.Submit.Burst < 0 {
		errs = append(errs, &FieldError{Key: "OBR_SUBMIT_RATE", Err: ErrInvalidValue})
	}

	obs := c.Observer()
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Observer converts the telemetry settings to an observe.Config.
func (c Config) Observer() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingExporter != "" && c.Observe.TracingExporter != "none",
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SampleRate,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsExporter != "" && c.Observe.MetricsExporter != "none",
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observe.LogLevel != "off",
			Level:   c.Observe.LogLevel,
		},
	}
}

// loader collects every parse error instead of stopping at the first.
type loader struct {
	lookup   LookupFunc
	resolver *Resolver
	errs     []error
}

func (l *loader) get(ctx context.Context, key string) (string, bool) {
	raw, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	v, err := l.resolver.Resolve(ctx, strings.TrimSpace(raw))
	if err != nil {
		l.errs = append(l.errs, &FieldError{Key: key, Err: err})
		return "", false
	}
	return v, true
}

func (l *loader) str(ctx context.Context, key string, dst *string) {
	if v, ok := l.get(ctx, key); ok {
		*dst = v
	}
}

func (l *loader) duration(ctx context.Context, key string, dst *time.Duration) {
	v, ok := l.get(ctx, key)
	if !ok || v == "" {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		l.errs = append(l.errs, &FieldError{Key: key, Value: v, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)})
		return
	}
	*dst = d
}

func (l *loader) int(ctx context.Context, key string, dst *int) {
	v, ok := l.get(ctx, key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, &FieldError{Key: key, Value: v, Err: ErrInvalidValue})
		return
	}
	*dst = n
}

func (l *loader) int64(ctx context.Context, key string, dst *int64) {
	v, ok := l.get(ctx, key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		l.errs = append(l.errs, &FieldError{Key: key, Value: v, Err: ErrInvalidValue})
		return
	}
	*dst = n
}

func (l *loader) float(ctx context.Context, key string, dst *float64) {
	v, ok := l.get(ctx, key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, &FieldError{Key: key, Value: v, Err: ErrInvalidValue})
		return
	}
	*dst = f
}

// parseDuration accepts Go durations ("90s", "1h") and bare seconds ("3600").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
