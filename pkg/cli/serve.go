package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/sitepass/pkg/api"
	"github.com/platinummonkey/sitepass/pkg/config"
	"github.com/platinummonkey/sitepass/pkg/events"
	"github.com/platinummonkey/sitepass/pkg/middleware"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/sweeper"
)

const dbStatsInterval = 15 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API, the health and metrics server and, when enabled,
the scheduled invitation sweep. SIGINT or SIGTERM drains in-flight requests
before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *observability.Logger, migrate bool) error {
	shutdown := observability.NewShutdownManager(logger)

	otel, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}
	shutdown.Register("otel", otel.Shutdown)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	shutdown.Register("store", func(context.Context) error { return a.Close() })

	if migrate {
		if err := a.db.Migrate(ctx); err != nil {
			shutdown.Shutdown(context.Background())
			return err
		}
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		shutdown.Shutdown(context.Background())
		return err
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(a.metrics),
	}
	if limiter := a.rateLimiter(ctx); limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	server := api.NewServer(a.invitations, a.registry, a.engine, a.recorder, verifier, opts...)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(a.db, a.redis, Version))
	if a.metrics != nil {
		healthMux.Handle("/metrics", a.metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var sweep *sweeper.Sweeper
	if cfg.Invitations.SweepEnabled {
		sweep = sweeper.New(a.invitations,
			sweeper.WithLocker(a.locker()),
			sweeper.WithLogger(logger),
			sweeper.WithMetrics(a.metrics),
		)
		if err := sweep.Start(cfg.Invitations.SweepSchedule); err != nil {
			shutdown.Shutdown(context.Background())
			return err
		}
		shutdown.Register("sweeper", sweep.Stop)
	}

	var invalidations *events.Listener
	if a.redis != nil && cfg.Authz.CacheTTL > 0 {
		invalidations, err = events.Listen(ctx, a.redis, "", a.engine, logger)
		if err != nil {
			shutdown.Shutdown(context.Background())
			return err
		}
		shutdown.Register("invalidation listener", func(context.Context) error { return invalidations.Close() })
	}

	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting sitepass API")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return listen(healthServer)
	})
	if invalidations != nil {
		g.Go(func() error { return invalidations.Run(gctx) })
	}
	if a.metrics != nil {
		g.Go(func() error {
			a.reportDBStats(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return shutdown.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Sitepass stopped")
	return nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

// newVerifier prefers OIDC when an issuer is configured
func newVerifier(ctx context.Context, cfg config.AuthConfig) (middleware.TokenVerifier, error) {
	if cfg.OIDCIssuer != "" {
		return middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
	}
	return middleware.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer), nil
}

// rateLimiter returns nil when rate limiting is disabled
func (a *app) rateLimiter(ctx context.Context) middleware.Limiter {
	rl := a.cfg.RateLimit
	if rl.RequestsPerSecond <= 0 {
		return nil
	}
	if rl.Distributed && a.redis != nil {
		limit := int(math.Ceil(rl.RequestsPerSecond))
		if rl.Burst > limit {
			limit = rl.Burst
		}
		return middleware.NewDistributedRateLimiter(a.redis, limit, time.Second, "")
	}
	limiter := middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst)
	limiter.StartCleanup(ctx)
	return limiter
}

func (a *app) reportDBStats(ctx context.Context) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		a.metrics.UpdateDBStats(a.db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
