package cli

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/config"
	"github.com/platinummonkey/sitepass/pkg/events"
	"github.com/platinummonkey/sitepass/pkg/invitations"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/storage/redisstore"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
	"github.com/platinummonkey/sitepass/pkg/team"
)

const lockPrefix = "sitepass:lock:"

// app holds the wired core shared by every command
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	prom    *prometheus.Registry

	db    *sqldb.DB
	redis *redis.Client

	recorder    *audit.DBRecorder
	registry    *team.Registry
	engine      *authz.Engine
	invitations *invitations.Service
}

// newApp opens the store, and Redis when configured, and wires the services
// on top of them
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if cfg.Observability.MetricsEnabled {
		a.prom = prometheus.NewRegistry()
		a.metrics = observability.NewMetrics(a.prom)
	}

	db, err := sqldb.Open(ctx, cfg.Database.SQL())
	if err != nil {
		return nil, err
	}
	a.db = db
	logger.WithField("driver", string(db.Dialect())).Info("Connected to database")

	if cfg.Redis.URL != "" {
		client, err := redisstore.NewClient(ctx, cfg.Redis.Store())
		if err != nil {
			db.Close()
			return nil, err
		}
		a.redis = client
		logger.Info("Connected to redis")
	}

	a.recorder = audit.NewDBRecorder(db)
	a.registry = team.NewRegistry(db, a.recorder,
		team.WithLogger(logger),
		team.WithMetrics(a.metrics),
	)

	engineOpts := []authz.Option{
		authz.WithAuditor(a.recorder),
		authz.WithLogger(logger),
		authz.WithMetrics(a.metrics),
	}
	if cfg.Authz.CacheTTL > 0 {
		engineOpts = append(engineOpts, authz.WithCache(cfg.Authz.CacheSize, cfg.Authz.CacheTTL))
	}
	a.engine = authz.NewEngine(a.registry, engineOpts...)
	a.registry.AddInvalidator(a.engine)
	if a.redis != nil {
		a.registry.AddInvalidator(events.NewBroadcaster(a.redis, "", logger))
	}

	a.invitations = invitations.NewService(db, a.registry, a.recorder,
		invitations.WithTTL(cfg.Invitations.TTL),
		invitations.WithPublisher(a.publisher()),
		invitations.WithLogger(logger),
		invitations.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) publisher() events.Publisher {
	if a.redis != nil {
		return events.NewRedisPublisher(a.redis, a.cfg.Redis.Channel)
	}
	return events.NewLogPublisher(a.logger)
}

func (a *app) locker() *redisstore.Locker {
	if a.redis == nil {
		return nil
	}
	return redisstore.NewLocker(a.redis, lockPrefix)
}

func (a *app) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close redis: %w", err)
		}
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close database: %w", err)
	}
	return firstErr
}
