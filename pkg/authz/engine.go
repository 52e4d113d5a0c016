package authz

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// MemberLookup resolves a user's active membership. Implementations return a
// KindNotAMember error when there is none.
type MemberLookup interface {
	GetActive(ctx context.Context, projectID, userID string) (*team.Member, error)
}

// Engine authorizes actions against live membership data
type Engine struct {
	members MemberLookup
	cache   *lru.LRU[string, *team.Member]

	// mu orders cache fills against invalidations. gen is bumped by every
	// Invalidate; a lookup that started under an older gen is not cached.
	mu  sync.Mutex
	gen uint64

	audit   audit.Recorder
	metrics *observability.Metrics
	logger  *observability.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCache caches active memberships for ttl. A zero ttl or size disables
// the cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		if size > 0 && ttl > 0 {
			e.cache = lru.NewLRU[string, *team.Member](size, nil, ttl)
		}
	}
}

// WithMetrics counts decisions and cache lookups
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithAuditor records denied admin-tier decisions
func WithAuditor(recorder audit.Recorder) Option {
	return func(e *Engine) { e.audit = recorder }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine reading memberships from members
func NewEngine(members MemberLookup, opts ...Option) *Engine {
	e := &Engine{
		members: members,
		audit:   audit.NopRecorder{},
		logger:  observability.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func cacheKey(projectID, userID string) string {
	return projectID + "\x00" + userID
}

// Authorize decides whether userID may perform action in projectID on a
// resource tagged with target. Lookup failures other than a missing
// membership are returned as errors, never as denials.
func (e *Engine) Authorize(ctx context.Context, projectID, userID string, action Action, target catalog.Division) (Decision, error) {
	const op = "authz.authorize"

	if !action.Valid() {
		return Decision{}, access.Errorf(access.KindInvalidArgument, op, "unknown action %q", action)
	}
	target, err := catalog.ParseDivision(string(target))
	if err != nil {
		return Decision{}, access.Wrap(access.KindInvalidArgument, op, err)
	}

	member, err := e.lookup(ctx, projectID, userID)
	if err != nil {
		return Decision{}, err
	}

	decision := Decide(member, action, target)
	e.metrics.RecordAuthzDecision(string(action), decision.Allowed, string(decision.Reason))

	if !decision.Allowed && action.AdminOnly() {
		entry := &audit.Entry{
			ProjectID:   projectID,
			ActorUserID: userID,
			Action:      audit.ActionAuthorize,
			TargetType:  audit.TargetAuthorization,
			TargetID:    string(action),
			Outcome:     audit.OutcomeDenied,
			Message:     string(decision.Reason),
		}
		if err := e.audit.Record(ctx, entry); err != nil {
			e.logger.WithError(err).WithField("action", string(action)).Error("Failed to record authorization denial")
		}
	}
	return decision, nil
}

func (e *Engine) lookup(ctx context.Context, projectID, userID string) (*team.Member, error) {
	key := cacheKey(projectID, userID)
	var gen uint64
	if e.cache != nil {
		if m, ok := e.cache.Get(key); ok {
			e.metrics.RecordAuthzCache(true)
			return m, nil
		}
		e.metrics.RecordAuthzCache(false)
		e.mu.Lock()
		gen = e.gen
		e.mu.Unlock()
	}

	m, err := e.members.GetActive(ctx, projectID, userID)
	if access.KindOf(err) == access.KindNotAMember {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.mu.Lock()
		if e.gen == gen {
			e.cache.Add(key, m)
		}
		e.mu.Unlock()
	}
	return m, nil
}

// Invalidate drops any cached membership of userID in projectID. Lookups
// already in flight when it is called do not populate the cache.
func (e *Engine) Invalidate(projectID, userID string) {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	e.gen++
	e.cache.Remove(cacheKey(projectID, userID))
	e.mu.Unlock()
}
