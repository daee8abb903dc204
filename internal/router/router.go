package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/internal/registry"
	"SolGate/internal/usage"
	"SolGate/pkg/logger"
)

var (
	// ErrNoProviders means no enabled provider passed the health and quota
	// filters for this request.
	ErrNoProviders = errors.New("no eligible rpc providers")
)

const healthySuccessRate = 0.5

type candidate struct {
	provider  *models.Provider
	remaining int64
	latencyMs float64
}

type healthState struct {
	consecutiveFails int
	cooldownUntil    time.Time
}

// Router picks a provider per request, executes the call, and feeds the
// outcome back into the usage tracker. On failure it retries exactly once
// against the next-ranked provider.
type Router struct {
	registry *registry.Registry
	tracker  *usage.Tracker
	client   *RPCClient
	metrics  repository.Metrics
	log      *logger.Logger

	policy           models.RoutingPolicy
	failureThreshold int
	cooldown         time.Duration

	rrCursor atomic.Int64

	mu     sync.Mutex
	health map[string]*healthState

	now func() time.Time
}

type Options struct {
	Policy           models.RoutingPolicy
	FailureThreshold int
	Cooldown         time.Duration
}

func New(reg *registry.Registry, tracker *usage.Tracker, client *RPCClient, metrics repository.Metrics, log *logger.Logger, opts Options) *Router {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	return &Router{
		registry:         reg,
		tracker:          tracker,
		client:           client,
		metrics:          metrics,
		log:              log,
		policy:           opts.Policy,
		failureThreshold: opts.FailureThreshold,
		cooldown:         opts.Cooldown,
		health:           make(map[string]*healthState),
		now:              time.Now,
	}
}

func (r *Router) state(name string) *healthState {
	s, ok := r.health[name]
	if !ok {
		s = &healthState{}
		r.health[name] = s
	}
	return s
}

// Health classifies a provider for routing and the ops endpoints.
func (r *Router) Health(name string) models.HealthStatus {
	r.mu.Lock()
	s := r.state(name)
	cooling := r.now().Before(s.cooldownUntil)
	fails := s.consecutiveFails
	r.mu.Unlock()

	if cooling {
		return models.HealthRateLimited
	}
	if fails >= r.failureThreshold {
		return models.HealthUnavailable
	}
	if r.tracker.SuccessRate(name) <= healthySuccessRate {
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

// CooldownUntil returns the provider's cooldown deadline, if one is active.
func (r *Router) CooldownUntil(name string) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(name)
	if r.now().Before(s.cooldownUntil) {
		t := s.cooldownUntil
		return &t
	}
	return nil
}

func (r *Router) recordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(name)
	s.consecutiveFails++
	if s.consecutiveFails >= r.failureThreshold && s.cooldownUntil.Before(r.now()) {
		s.cooldownUntil = r.now().Add(r.cooldown)
		r.log.Warn("provider placed in cooldown",
			logger.String("provider", name),
			logger.Int("consecutive_fails", s.consecutiveFails),
			logger.Duration("cooldown", r.cooldown))
	}
}

func (r *Router) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(name)
	s.consecutiveFails = 0
	s.cooldownUntil = time.Time{}
}

// candidates filters enabled providers down to those routable right now.
func (r *Router) candidates(needsEnhanced bool) []*candidate {
	var out []*candidate
	for _, p := range r.registry.Enabled() {
		if needsEnhanced && !p.HasCapability(models.CapEnhancedMetadata) {
			continue
		}
		if !r.tracker.HasQuota(p.Name) {
			continue
		}
		switch r.Health(p.Name) {
		case models.HealthRateLimited, models.HealthUnavailable:
			continue
		}
		out = append(out, &candidate{
			provider:  p,
			remaining: r.tracker.RemainingQuota(p.Name),
			latencyMs: r.tracker.AvgLatencyMs(p.Name),
		})
	}
	return out
}

// Route executes the request against the best-ranked provider. A JSON-RPC
// error object counts as a provider failure for health accounting but is
// returned to the caller as-is when no failover candidate remains.
func (r *Router) Route(ctx context.Context, req *models.RPCRequest) (*models.RPCResponse, string, error) {
	return r.route(ctx, req, false)
}

// RouteEnhanced restricts routing to providers with enhanced metadata APIs.
func (r *Router) RouteEnhanced(ctx context.Context, req *models.RPCRequest) (*models.RPCResponse, string, error) {
	return r.route(ctx, req, true)
}

func (r *Router) route(ctx context.Context, req *models.RPCRequest, needsEnhanced bool) (*models.RPCResponse, string, error) {
	cands := r.candidates(needsEnhanced)
	if len(cands) == 0 {
		r.metrics.RecordError("no_providers")
		return nil, "", ErrNoProviders
	}
	r.rank(r.policy, cands)

	// Primary attempt plus at most one failover.
	attempts := cands
	if len(attempts) > 2 {
		attempts = attempts[:2]
	}

	var lastErr error
	for i, c := range attempts {
		p := c.provider
		if i > 0 {
			r.metrics.RecordFailover(attempts[0].provider.Name, p.Name)
			r.log.Info("failing over",
				logger.String("from", attempts[0].provider.Name),
				logger.String("to", p.Name),
				logger.String("method", req.Method))
		}

		start := r.now()
		resp, err := r.client.Call(ctx, p, req)
		elapsed := r.now().Sub(start)

		success := err == nil && (resp == nil || resp.Error == nil)
		r.tracker.RecordCall(p.Name, elapsed, success)
		r.metrics.RecordRPCLatency(p.Name, elapsed.Seconds())

		if success {
			r.recordSuccess(p.Name)
			r.metrics.RecordRPCCall(p.Name, req.Method, "ok")
			return resp, p.Name, nil
		}

		r.recordFailure(p.Name)
		r.metrics.RecordRPCCall(p.Name, req.Method, "error")

		if err != nil {
			lastErr = err
			continue
		}
		// JSON-RPC error: no point retrying a request the chain rejected,
		// unless the next provider might behave differently. Surface it on
		// the final attempt.
		lastErr = resp.Error
		if i == len(attempts)-1 {
			return resp, p.Name, nil
		}
	}

	return nil, "", lastErr
}

// ProbeAll runs a getHealth check against every enabled provider, clearing
// or extending failure state based on the result.
func (r *Router) ProbeAll(ctx context.Context) {
	for _, p := range r.registry.Enabled() {
		if err := r.client.CheckHealth(ctx, p); err != nil {
			r.recordFailure(p.Name)
			r.log.Warn("health probe failed",
				logger.String("provider", p.Name),
				logger.Error(err))
			continue
		}
		r.recordSuccess(p.Name)
	}
}

// StatsAll builds the ops view for every registered provider.
func (r *Router) StatsAll() []models.ProviderStats {
	all := r.registry.All()
	out := make([]models.ProviderStats, 0, len(all))
	for _, p := range all {
		st := r.tracker.Stats(p)
		st.Health = r.Health(p.Name)
		st.CooldownUntil = r.CooldownUntil(p.Name)
		if !p.Enabled {
			st.Health = models.HealthUnavailable
		}
		out = append(out, st)
	}
	return out
}
