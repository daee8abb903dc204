package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/pkg/logger"
)

type fakeRegistry struct {
	providers map[string]*models.Provider
}

func (f *fakeRegistry) Get(name string) (*models.Provider, bool) {
	p, ok := f.providers[name]
	return p, ok
}

func (f *fakeRegistry) All() []*models.Provider {
	out := make([]*models.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		out = append(out, p)
	}
	return out
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []models.UsageAlert
}

func (n *captureNotifier) Notify(_ context.Context, alert models.UsageAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestTracker(t *testing.T, quota int64) (*Tracker, *fakeRegistry) {
	reg := &fakeRegistry{providers: map[string]*models.Provider{
		"helius": {Name: "helius", MonthlyQuota: quota, Enabled: true},
	}}
	return NewTracker(reg, nil, testLogger(t), 0.8, time.Hour), reg
}

func TestRecordCallCounts(t *testing.T) {
	tr, _ := newTestTracker(t, 1000)

	tr.RecordCall("helius", 50*time.Millisecond, true)
	tr.RecordCall("helius", 50*time.Millisecond, false)

	if got := tr.Calls("helius"); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	if got := tr.RemainingQuota("helius"); got != 998 {
		t.Fatalf("remaining = %d, want 998", got)
	}
}

func TestRemainingQuotaNeverNegative(t *testing.T) {
	tr, _ := newTestTracker(t, 2)

	for i := 0; i < 5; i++ {
		tr.RecordCall("helius", time.Millisecond, true)
	}
	if got := tr.RemainingQuota("helius"); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
	if tr.HasQuota("helius") {
		t.Fatal("expected quota exhausted")
	}
}

func TestMonthRollover(t *testing.T) {
	tr, _ := newTestTracker(t, 1000)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	tr.RecordCall("helius", time.Millisecond, true)
	tr.RecordCall("helius", time.Millisecond, true)
	if got := tr.Calls("helius"); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}

	tr.now = func() time.Time { return base.AddDate(0, 1, 0) }
	if got := tr.Calls("helius"); got != 0 {
		t.Fatalf("calls after rollover = %d, want 0", got)
	}

	tr.RecordCall("helius", time.Millisecond, true)
	if got := tr.Calls("helius"); got != 1 {
		t.Fatalf("calls in new month = %d, want 1", got)
	}
}

func TestRolloverSwapDoesNotWipeCounts(t *testing.T) {
	c := newCounters("2026-08")
	old := c.current("2026-08")
	old.calls.Add(5)

	// One goroutine rolls the month over while another still holds the old
	// bucket. The swap installs a fresh bucket instead of zeroing in place,
	// so neither side's increments are lost.
	fresh := c.current("2026-09")
	old.calls.Add(1)

	if got := old.calls.Load(); got != 6 {
		t.Fatalf("old bucket calls = %d, want 6", got)
	}
	if got := fresh.calls.Add(1); got != 1 {
		t.Fatalf("fresh bucket calls = %d, want 1", got)
	}
	if got := c.current("2026-09").calls.Load(); got != 1 {
		t.Fatalf("current month calls = %d, want 1", got)
	}
}

func TestRecordCallAcrossMonthBoundary(t *testing.T) {
	tr, _ := newTestTracker(t, 1_000_000)

	base := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	var flipped sync.Once
	var mu sync.Mutex
	now := base
	tr.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	const goroutines = 8
	const each = 2000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if i == each/2 {
					flipped.Do(func() {
						mu.Lock()
						now = base.Add(time.Second)
						mu.Unlock()
					})
				}
				tr.RecordCall("helius", time.Millisecond, true)
			}
		}()
	}
	wg.Wait()

	// Every call recorded after the flip stamps into the new month; none may
	// be wiped by the concurrent rollover. The flipping goroutine's own
	// second half is guaranteed to land there.
	got := tr.Calls("helius")
	if got < each/2 || got > goroutines*each {
		t.Fatalf("calls after boundary = %d, want between %d and %d", got, each/2, goroutines*each)
	}

	before := got
	tr.RecordCall("helius", time.Millisecond, true)
	if tr.Calls("helius") != before+1 {
		t.Fatalf("post-boundary increment lost: %d -> %d", before, tr.Calls("helius"))
	}
}

func TestConcurrentRecordCall(t *testing.T) {
	tr, _ := newTestTracker(t, 1_000_000)

	const goroutines = 16
	const each = 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				tr.RecordCall("helius", time.Millisecond, true)
			}
		}()
	}
	wg.Wait()

	if got := tr.Calls("helius"); got != goroutines*each {
		t.Fatalf("calls = %d, want %d", got, goroutines*each)
	}
}

func TestSuccessRateEMA(t *testing.T) {
	tr, _ := newTestTracker(t, 1000)

	// Start at 1.0; a failure pulls it down by alpha.
	tr.RecordCall("helius", time.Millisecond, false)
	got := tr.SuccessRate("helius")
	want := 1.0*(1-emaAlpha) + 0*emaAlpha
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("success rate = %v, want %v", got, want)
	}
}

func TestAlertFiresOnceWithinDamping(t *testing.T) {
	reg := &fakeRegistry{providers: map[string]*models.Provider{
		"helius": {Name: "helius", MonthlyQuota: 10, Enabled: true},
	}}
	notifier := &captureNotifier{}
	tr := NewTracker(reg, notifier, testLogger(t), 0.8, time.Hour)

	for i := 0; i < 10; i++ {
		tr.RecordCall("helius", time.Millisecond, true)
	}

	// Notification is asynchronous.
	deadline := time.Now().Add(time.Second)
	for notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := notifier.count(); got != 1 {
		t.Fatalf("alerts = %d, want 1", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	tr, _ := newTestTracker(t, 1000)
	tr.RecordCall("helius", time.Millisecond, true)
	tr.RecordCall("helius", time.Millisecond, false)

	snaps := tr.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}

	tr2, _ := newTestTracker(t, 1000)
	tr2.Restore(snaps)
	if got := tr2.Calls("helius"); got != 2 {
		t.Fatalf("restored calls = %d, want 2", got)
	}
}

func TestRestoreIgnoresStaleMonth(t *testing.T) {
	tr, _ := newTestTracker(t, 1000)
	tr.Restore([]models.UsageSnapshot{
		{Provider: "helius", Month: "1999-01", Calls: 500, Errors: 10},
	})
	if got := tr.Calls("helius"); got != 0 {
		t.Fatalf("calls = %d, want 0 after stale restore", got)
	}
}
