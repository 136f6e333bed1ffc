// Command obrforecastd serves the OBR forecast impact API.
//
// Configuration is read from OBR_* environment variables; see package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/PolicyEngine/obr-forecast/api"
	"github.com/PolicyEngine/obr-forecast/auth"
	"github.com/PolicyEngine/obr-forecast/cache"
	"github.com/PolicyEngine/obr-forecast/config"
	"github.com/PolicyEngine/obr-forecast/forecast"
	"github.com/PolicyEngine/obr-forecast/health"
	"github.com/PolicyEngine/obr-forecast/job"
	"github.com/PolicyEngine/obr-forecast/observe"
	"github.com/PolicyEngine/obr-forecast/resilience"
	"github.com/PolicyEngine/obr-forecast/runner"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "obrforecastd:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, nil)
	if err != nil {
		return err
	}

	promRegistry := promclient.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obsCfg := cfg.Observer()
	obsCfg.Version = version
	obsCfg.Exporters.Registerer = promRegistry
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("observer middleware: %w", err)
	}
	logger := obs.Logger()

	results := cache.NewMemoryCache(cache.WithSweepHook(func(removed int) {
		mw.Swept(ctx, removed)
	}))
	jobs := job.NewRegistry(job.Config{Retention: cfg.Jobs.Retention})
	engine := forecast.NewEngine(forecast.EngineConfig{Latency: cfg.Compute.Latency})

	r, err := runner.New(forecast.Executor(engine),
		runner.WithCache(results),
		runner.WithRegistry(jobs),
		runner.WithPolicy(cache.Policy{DefaultTTL: cfg.Cache.DefaultTTL, MaxTTL: cfg.Cache.MaxTTL}),
		runner.WithGuard(newGuard(cfg.Compute)),
		runner.WithMiddleware(mw),
	)
	if err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register("jobs", health.NewStuckJobsChecker(r, health.StuckJobsConfig{Threshold: cfg.Jobs.StuckThreshold}))
	agg.Register("cache", health.NewCacheChecker(r, health.CacheCheckerConfig{Budget: cfg.Cache.BudgetBytes}))

	admin := newAdminAuthenticator(cfg.Auth)
	if admin == nil {
		logger.Warn(ctx, "no admin credentials configured, cache admin routes are closed")
	}

	var metricsHandler http.Handler
	if cfg.Observe.MetricsExporter == "prometheus" {
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry})
	}

	srv, err := api.New(api.Config{
		Service:   r,
		Limiter:   newLimiter(cfg.Submit),
		Admin:     admin,
		Health:    agg,
		Metrics:   metricsHandler,
		StaticDir: staticDir(cfg.StaticDir),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	results.StartJanitor(ctx, cfg.Cache.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "listening", observe.F("addr", cfg.ListenAddr), observe.F("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweepJobs(gctx, r, cfg.Cache.SweepInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		errs := []error{httpServer.Shutdown(shutdownCtx)}
		if err := r.Close(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "abandoning in-flight computations", observe.F("error", err))
		}
		errs = append(errs, results.Close(), obs.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}

// sweepJobs drops expired finished jobs every interval until ctx is done.
func sweepJobs(ctx context.Context, r *runner.Runner, interval time.Duration, logger observe.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.SweepJobs(); n > 0 {
				logger.Debug(ctx, "swept jobs", observe.F("removed", n))
			}
		}
	}
}

// newGuard bounds computations. Units wait for a bulkhead slot for as long
// as one computation may run.
func newGuard(cfg config.ComputeConfig) *resilience.Guard {
	var opts []resilience.GuardOption
	if cfg.MaxConcurrent > 0 {
		wait := cfg.Timeout
		if wait <= 0 {
			wait = time.Hour
		}
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       wait,
		})))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Timeout))
	}
	if len(opts) == 0 {
		return nil
	}
	return resilience.NewGuard(opts...)
}

func newLimiter(cfg config.SubmitConfig) *resilience.RateLimiter {
	if cfg.Rate <= 0 {
		return nil
	}
	return resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: cfg.Rate, Burst: cfg.Burst})
}

// newAdminAuthenticator returns nil when no admin credential is configured.
func newAdminAuthenticator(cfg config.AuthConfig) auth.Authenticator {
	var auths []auth.Authenticator

	if cfg.AdminAPIKey != "" {
		store := auth.NewMemoryAPIKeyStore()
		store.Add(auth.APIKeyInfo{
			ID:        "admin",
			KeyHash:   auth.HashAPIKey(cfg.AdminAPIKey),
			Principal: "admin",
			Roles:     []string{auth.RoleAdmin},
		})
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store))
	}
	if cfg.JWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(
			auth.JWTConfig{Issuer: cfg.JWTIssuer},
			auth.NewStaticKeyProvider([]byte(cfg.JWTSecret)),
		))
	}

	if len(auths) == 0 {
		return nil
	}
	return auth.NewCompositeAuthenticator(auths...)
}

// staticDir returns dir if it is an existing directory, else "".
func staticDir(dir string) string {
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}
