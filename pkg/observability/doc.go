// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and ordered shutdown.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("project_id", projectID).Info("invitation approved")
//
// Request-scoped loggers carry request_id, user_id and trace ids:
//
//	observability.FromContext(r.Context()).WithError(err).Error("approve failed")
//
// # Prometheus Metrics
//
// Metrics counts HTTP traffic, invitation transitions, team mutations,
// authorization decisions, sweep runs and pool statistics. The Record* methods
// accept a nil receiver:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordAuthzDecision("edit_submittal", false, "out_of_scope")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
