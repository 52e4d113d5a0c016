// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware resolves a bearer token to a Principal through a TokenVerifier:
//
//	verifier := middleware.NewJWTVerifier(secret, "sitepass")
//	// or: middleware.NewOIDCVerifier(ctx, issuer, audience)
//	router.Use(middleware.NewAuthMiddleware(verifier, logger).Handler)
//
// Handlers read the caller with PrincipalFromContext. The principal's UserID
// is the key team memberships are stored under.
//
// # Rate Limiting
//
// RateLimitMiddleware throttles per authenticated user, or per client address
// when no principal is present. The budget is kept in process by RateLimiter
// (golang.org/x/time/rate) or shared across replicas by DistributedRateLimiter
// (Redis fixed window). Limiter errors fail open.
//
// # Related Packages
//
//   - pkg/httputil: Error responses written by these middleware
//   - pkg/api: Route wiring
package middleware
