// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Error Contract
//
// Every error body has the same shape:
//
//	{"error": {"code": "last_admin", "message": "project must keep at least one admin"}}
//
// Errors from the access taxonomy are mapped with WriteAccessError:
//
//	invalid_argument                                   400
//	forbidden, not_a_member, out_of_scope,
//	insufficient_access_level                          403
//	not_found                                          404
//	invalid_transition, duplicate_invitation,
//	last_admin, already_member                         409
//	busy                                               503 + Retry-After
//	unavailable                                        503
//
// # Request Parsing
//
//	var req createInvitationRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
//	requested, err := httputil.ParseQueryOptionalBool(r, "accessRequested")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.TimeoutMiddleware(30*time.Second),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting
//   - pkg/api: HTTP routes built on these helpers
package httputil
