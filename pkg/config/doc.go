// Package config loads sitepass configuration.
//
// Values come from three layers, later layers winning: built-in defaults, an
// optional YAML file named by SITEPASS_CONFIG, and SITEPASS_* environment
// variables.
//
// # Configuration File
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	database:
//	  driver: postgres          # postgres or sqlite3
//	  url: postgres://localhost/sitepass?sslmode=disable
//	  lock_timeout: 3s
//	redis:
//	  url: redis://localhost:6379/0
//	invitations:
//	  ttl: 168h
//	  sweep_schedule: "*/5 * * * *"
//	authz:
//	  cache_size: 4096
//	  cache_ttl: 30s
//	auth:
//	  oidc_issuer: https://id.example.com
//	  oidc_audience: sitepass
//
// # Environment
//
//	SITEPASS_PORT="8080"
//	SITEPASS_HEALTH_PORT="9090"
//	SITEPASS_DB_DRIVER="postgres"
//	SITEPASS_DB_URL="postgres://localhost/sitepass"
//	SITEPASS_DB_LOCK_TIMEOUT="3s"
//	SITEPASS_REDIS_URL="redis://localhost:6379"
//	SITEPASS_INVITATION_TTL="168h"
//	SITEPASS_SWEEP_SCHEDULE="*/5 * * * *"
//	SITEPASS_AUTHZ_CACHE_TTL="30s"
//	SITEPASS_JWT_SECRET="..."
//	SITEPASS_OIDC_ISSUER="https://id.example.com"
//	SITEPASS_RATE_LIMIT_RPS="20"
//	SITEPASS_LOG_LEVEL="info"  # debug, info, warn, error
//	SITEPASS_OTEL_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	db, err := sqldb.Open(ctx, cfg.Database.SQL())
package config
