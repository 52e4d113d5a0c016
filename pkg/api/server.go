package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/authz"
	"github.com/platinummonkey/sitepass/pkg/httputil"
	"github.com/platinummonkey/sitepass/pkg/invitations"
	"github.com/platinummonkey/sitepass/pkg/middleware"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/team"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxRequestBytes       = 1 << 20
)

// Server wires the access-control services to HTTP routes
type Server struct {
	router      *mux.Router
	invitations *invitations.Service
	team        *team.Registry
	authz       *authz.Engine
	auditLog    audit.Source

	auth           *middleware.AuthMiddleware
	limiter        middleware.Limiter
	logger         *observability.Logger
	metrics        *observability.Metrics
	corsOrigins    []string
	requestTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics enables Prometheus HTTP metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithRateLimiter throttles authenticated routes
func WithRateLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithCORS allows browser requests from origins
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRequestTimeout bounds each request's context
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// NewServer creates the API server. Every route except the catalog requires a
// bearer token accepted by verifier.
func NewServer(
	inv *invitations.Service,
	registry *team.Registry,
	engine *authz.Engine,
	auditLog audit.Source,
	verifier middleware.TokenVerifier,
	opts ...Option,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		invitations:    inv,
		team:           registry,
		authz:          engine,
		auditLog:       auditLog,
		logger:         observability.Discard(),
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auth = middleware.NewAuthMiddleware(verifier, s.logger)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusMethodNotAllowed, httputil.CodeMethodNotAllowed, "method not allowed")
	})

	s.router.HandleFunc("/catalog", s.getCatalog).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.auth.Handler)
	if s.limiter != nil {
		api.Use(middleware.NewRateLimitMiddleware(s.limiter, s.logger).Handler)
	}

	// Invitation ledger and approval workflow
	api.HandleFunc("/projects/{projectID}/invitations", s.createInvitation).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/invitations", s.listInvitations).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectID}/access-requests", s.listAccessRequests).Methods(http.MethodGet)
	api.HandleFunc("/invitations/{invitationID}", s.getInvitation).Methods(http.MethodGet)
	api.HandleFunc("/invitations/{invitationID}/accept", s.acceptInvitation).Methods(http.MethodPost)
	api.HandleFunc("/invitations/{invitationID}/request-access", s.requestAccess).Methods(http.MethodPost)
	api.HandleFunc("/invitations/{invitationID}/approve", s.decideInvitation).Methods(http.MethodPost)
	api.HandleFunc("/invitations/{invitationID}/revoke", s.revokeInvitation).Methods(http.MethodPost)

	// Team registry
	api.HandleFunc("/projects/{projectID}/team", s.listTeam).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectID}/team", s.addMember).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/team", s.updateMember).Methods(http.MethodPut)
	api.HandleFunc("/projects/{projectID}/team", s.removeMember).Methods(http.MethodDelete)

	// Authorization and audit
	api.HandleFunc("/projects/{projectID}/authorize", s.authorize).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/audit", s.exportAudit).Methods(http.MethodGet)
}

// Router returns the bare route table
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the routes wrapped in the request middleware stack
func (s *Server) Handler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	}
	if len(s.corsOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.corsOrigins))
	}
	chain = append(chain,
		httputil.TimeoutMiddleware(s.requestTimeout),
		httputil.MaxBytesMiddleware(maxRequestBytes),
		httputil.ContentTypeMiddleware,
	)
	return observability.InstrumentHandler(httputil.Chain(chain...)(s.router), "sitepass-api")
}
