package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	pkgcache "SolGate/pkg/cache"
	"SolGate/pkg/logger"
)

const keyPrefix = "rpc"

// methodTiers classifies RPC methods by how fast their results go stale.
// Methods not listed here are never cached.
var methodTiers = map[string]models.CacheTier{
	"getLatestBlockhash":          models.TierHot,
	"getSlot":                     models.TierHot,
	"getBlockHeight":              models.TierHot,
	"getRecentPrioritizationFees": models.TierHot,

	"getBalance":              models.TierWarm,
	"getAccountInfo":          models.TierWarm,
	"getMultipleAccounts":     models.TierWarm,
	"getTokenAccountBalance":  models.TierWarm,
	"getTokenAccountsByOwner": models.TierWarm,

	"getTokenSupply":          models.TierCold,
	"getSignaturesForAddress": models.TierCold,
	"getEpochInfo":            models.TierCold,

	"getAsset":         models.TierFrozen,
	"getTokenMetadata": models.TierFrozen,
	"getGenesisHash":   models.TierFrozen,
}

// TTLs holds the per-tier expirations.
type TTLs struct {
	Hot    time.Duration
	Warm   time.Duration
	Cold   time.Duration
	Frozen time.Duration
}

func (t TTLs) For(tier models.CacheTier) time.Duration {
	switch tier {
	case models.TierHot:
		return t.Hot
	case models.TierCold:
		return t.Cold
	case models.TierFrozen:
		return t.Frozen
	default:
		return t.Warm
	}
}

// envelope wraps a cached result with its own expiry. The backing store can
// resurrect entries with a longer lifetime (the layered backend re-stores
// into memory without the original TTL), so expiry is re-checked on read.
type envelope struct {
	Tier      models.CacheTier `json:"tier"`
	StoredAt  time.Time        `json:"stored_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Result    json.RawMessage  `json:"result"`
}

// Store is the tiered response cache for RPC results.
type Store struct {
	backend pkgcache.Service
	metrics repository.Metrics
	log     *logger.Logger
	ttls    TTLs
	now     func() time.Time
}

func NewStore(backend pkgcache.Service, metrics repository.Metrics, log *logger.Logger, ttls TTLs) *Store {
	return &Store{
		backend: backend,
		metrics: metrics,
		log:     log,
		ttls:    ttls,
		now:     time.Now,
	}
}

// Cacheable reports whether results of the method may be cached.
func Cacheable(method string) bool {
	_, ok := methodTiers[method]
	return ok
}

// TierFor returns the method's cache tier; ok is false for uncacheable
// methods.
func TierFor(method string) (models.CacheTier, bool) {
	t, ok := methodTiers[method]
	return t, ok
}

// Key derives a deterministic cache key from the method and its params.
func Key(method string, params interface{}) string {
	b, err := json.Marshal(params)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", params))
	}
	return pkgcache.GenerateKey(keyPrefix, method+":"+pkgcache.HashKey(string(b)))
}

// Get returns the cached result for method+params, or a miss. Expired
// entries count as misses and are evicted.
func (s *Store) Get(ctx context.Context, method string, params interface{}) (json.RawMessage, bool) {
	tier, ok := methodTiers[method]
	if !ok {
		return nil, false
	}

	key := Key(method, params)
	var env envelope
	if err := s.backend.Get(ctx, key, &env); err != nil {
		if err != pkgcache.ErrCacheMiss {
			s.log.Debug("cache read failed", logger.String("key", key), logger.Error(err))
		}
		s.metrics.RecordCacheMiss(string(tier))
		return nil, false
	}

	if s.now().After(env.ExpiresAt) {
		_ = s.backend.Delete(ctx, key)
		s.metrics.RecordCacheMiss(string(tier))
		return nil, false
	}

	s.metrics.RecordCacheHit(string(tier))
	return env.Result, true
}

// Set stores a successful result under the method's tier TTL. Uncacheable
// methods are a no-op.
func (s *Store) Set(ctx context.Context, method string, params interface{}, result json.RawMessage) {
	tier, ok := methodTiers[method]
	if !ok {
		return
	}

	ttl := s.ttls.For(tier)
	now := s.now()
	env := envelope{
		Tier:      tier,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Result:    result,
	}

	if err := s.backend.Set(ctx, Key(method, params), env, ttl); err != nil {
		s.log.Debug("cache write failed", logger.String("method", method), logger.Error(err))
	}
}

// Invalidate drops every cached entry. Used when switching networks.
func (s *Store) Invalidate(ctx context.Context) error {
	return s.backend.DeleteByPattern(ctx, pkgcache.BuildPattern(keyPrefix))
}
