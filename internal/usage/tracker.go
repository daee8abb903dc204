package usage

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/pkg/logger"
	"SolGate/pkg/util"
)

const emaAlpha = 0.1

// monthBucket holds one calendar month's counts. Buckets are immutable
// apart from their atomic fields: a month rollover swaps in a fresh bucket
// rather than zeroing the old one, so an increment can never land on a
// counter that a concurrent rollover is about to wipe.
type monthBucket struct {
	month     string
	calls     atomic.Int64
	errors    atomic.Int64
	lastAlert atomic.Int64 // unix nanos of last threshold alert, 0 = never
}

// counters holds one provider's usage state. Counts are lock-free; the EMA
// fields share a small mutex because they update together.
type counters struct {
	bucket atomic.Pointer[monthBucket]

	mu          sync.Mutex
	successRate float64 // EMA, starts at 1.0
	avgLatency  float64 // EMA milliseconds, 0 = no samples yet
}

// Tracker maintains per-provider monthly usage counters and health EMAs.
// Counters roll over automatically when the calendar month changes.
type Tracker struct {
	registry  providerSource
	notifier  repository.AlertNotifier
	log       *logger.Logger
	threshold float64
	damping   time.Duration

	mu    sync.RWMutex
	stats map[string]*counters

	now func() time.Time
}

type providerSource interface {
	Get(name string) (*models.Provider, bool)
	All() []*models.Provider
}

func NewTracker(reg providerSource, notifier repository.AlertNotifier, log *logger.Logger, threshold float64, damping time.Duration) *Tracker {
	t := &Tracker{
		registry:  reg,
		notifier:  notifier,
		log:       log,
		threshold: threshold,
		damping:   damping,
		stats:     make(map[string]*counters),
		now:       time.Now,
	}
	for _, p := range reg.All() {
		t.stats[p.Name] = newCounters(t.monthStamp())
	}
	return t
}

func newCounters(month string) *counters {
	c := &counters{successRate: 1.0}
	c.bucket.Store(&monthBucket{month: month})
	return c
}

func (t *Tracker) monthStamp() string {
	return util.MonthStamp(t.now())
}

func (t *Tracker) get(provider string) *counters {
	t.mu.RLock()
	c, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.stats[provider]; ok {
		return c
	}
	c = newCounters(t.monthStamp())
	t.stats[provider] = c
	return c
}

// current returns the bucket for stamp, swapping in a fresh one when the
// month has advanced. CompareAndSwap makes the swap idempotent under
// concurrent callers, and the loser retries against the winner's bucket.
// YYYY-MM stamps order lexically, so a caller holding a stale clock reading
// records into the newer bucket rather than swapping the month backwards.
func (c *counters) current(stamp string) *monthBucket {
	for {
		b := c.bucket.Load()
		if b.month >= stamp {
			return b
		}
		fresh := &monthBucket{month: stamp}
		if c.bucket.CompareAndSwap(b, fresh) {
			return fresh
		}
	}
}

// RecordCall counts one completed request against the provider's monthly
// quota and folds the outcome into the success-rate and latency EMAs.
func (t *Tracker) RecordCall(provider string, latency time.Duration, success bool) {
	c := t.get(provider)
	b := c.current(t.monthStamp())

	calls := b.calls.Add(1)
	if !success {
		b.errors.Add(1)
	}

	sample := 0.0
	if success {
		sample = 1.0
	}
	latMs := float64(latency.Milliseconds())

	c.mu.Lock()
	c.successRate = c.successRate*(1-emaAlpha) + sample*emaAlpha
	if success {
		if c.avgLatency == 0 {
			c.avgLatency = latMs
		} else {
			c.avgLatency = c.avgLatency*(1-emaAlpha) + latMs*emaAlpha
		}
	}
	c.mu.Unlock()

	t.maybeAlert(provider, b, calls)
}

func (t *Tracker) maybeAlert(provider string, b *monthBucket, calls int64) {
	p, ok := t.registry.Get(provider)
	if !ok || p.MonthlyQuota <= 0 {
		return
	}
	pct := float64(calls) / float64(p.MonthlyQuota)
	if pct < t.threshold {
		return
	}

	now := t.now().UnixNano()
	last := b.lastAlert.Load()
	if last != 0 && now-last < int64(t.damping) {
		return
	}
	if !b.lastAlert.CompareAndSwap(last, now) {
		return
	}

	alert := models.UsageAlert{
		Provider:     provider,
		Calls:        calls,
		MonthlyQuota: p.MonthlyQuota,
		UsagePercent: pct * 100,
		Threshold:    t.threshold,
		At:           t.now().UTC(),
	}

	t.log.Warn("provider usage over alert threshold",
		logger.String("provider", provider),
		logger.Int64("calls", calls),
		logger.Int64("quota", p.MonthlyQuota))

	if t.notifier != nil {
		// Alert delivery must not block the request path.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := t.notifier.Notify(ctx, alert); err != nil {
				t.log.Error("usage alert delivery failed", logger.Error(err))
			}
		}()
	}
}

// Calls returns the provider's call count for the current month.
func (t *Tracker) Calls(provider string) int64 {
	return t.get(provider).current(t.monthStamp()).calls.Load()
}

// RemainingQuota returns how many calls the provider has left this month.
// Never negative.
func (t *Tracker) RemainingQuota(provider string) int64 {
	p, ok := t.registry.Get(provider)
	if !ok {
		return 0
	}
	left := p.MonthlyQuota - t.Calls(provider)
	if left < 0 {
		return 0
	}
	return left
}

// HasQuota reports whether the provider can absorb one more call.
func (t *Tracker) HasQuota(provider string) bool {
	return t.RemainingQuota(provider) > 0
}

// SuccessRate returns the provider's EMA success rate in [0,1].
func (t *Tracker) SuccessRate(provider string) float64 {
	c := t.get(provider)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successRate
}

// AvgLatencyMs returns the provider's EMA latency over successful calls.
func (t *Tracker) AvgLatencyMs(provider string) float64 {
	c := t.get(provider)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avgLatency
}

// Stats builds the ops view for one provider.
func (t *Tracker) Stats(p *models.Provider) models.ProviderStats {
	c := t.get(p.Name)
	b := c.current(t.monthStamp())

	calls := b.calls.Load()
	errs := b.errors.Load()

	c.mu.Lock()
	sr := c.successRate
	lat := c.avgLatency
	c.mu.Unlock()

	pct := 0.0
	if p.MonthlyQuota > 0 {
		pct = math.Min(float64(calls)/float64(p.MonthlyQuota)*100, 100)
	}

	return models.ProviderStats{
		Name:            p.Name,
		CallsThisMonth:  calls,
		ErrorsThisMonth: errs,
		MonthlyQuota:    p.MonthlyQuota,
		UsagePercent:    pct,
		SuccessRate:     sr,
		AvgLatencyMs:    lat,
		CostThisMonth:   float64(calls) * p.CostPerRequest,
	}
}

// Snapshot captures current-month counters for all providers, for
// persistence across restarts.
func (t *Tracker) Snapshot() []models.UsageSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now().UTC()
	out := make([]models.UsageSnapshot, 0, len(t.stats))
	for name, c := range t.stats {
		b := c.bucket.Load()
		out = append(out, models.UsageSnapshot{
			Provider: name,
			Month:    b.month,
			Calls:    b.calls.Load(),
			Errors:   b.errors.Load(),
			TakenAt:  now,
		})
	}
	return out
}

// Restore seeds counters from persisted snapshots. Snapshots from a month
// other than the current one are ignored.
func (t *Tracker) Restore(snaps []models.UsageSnapshot) {
	stamp := t.monthStamp()
	for _, s := range snaps {
		if s.Month != stamp {
			continue
		}
		b := t.get(s.Provider).current(stamp)
		b.calls.Store(s.Calls)
		b.errors.Store(s.Errors)
	}
}
