package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SolGate/internal/domain/models"
	pkgcache "SolGate/pkg/cache"
	"SolGate/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordRPCCall(string, string, string) {}
func (nopMetrics) RecordRPCLatency(string, float64)     {}
func (nopMetrics) RecordFailover(string, string)        {}
func (nopMetrics) RecordCacheHit(string)                {}
func (nopMetrics) RecordCacheMiss(string)               {}
func (nopMetrics) RecordBatchDispatch(string, int)      {}
func (nopMetrics) RecordWebhook(string, string)         {}
func (nopMetrics) RecordSignal(string)                  {}
func (nopMetrics) RecordPublish(string, string)         {}
func (nopMetrics) RecordError(string)                   {}

func testStore(t *testing.T) *Store {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	ttls := TTLs{Hot: 5 * time.Second, Warm: 30 * time.Second, Cold: 5 * time.Minute, Frozen: 24 * time.Hour}
	return NewStore(pkgcache.NewMemoryCache(), nopMetrics{}, lgr, ttls)
}

func TestTierClassification(t *testing.T) {
	cases := []struct {
		method string
		tier   models.CacheTier
	}{
		{"getLatestBlockhash", models.TierHot},
		{"getBalance", models.TierWarm},
		{"getEpochInfo", models.TierCold},
		{"getGenesisHash", models.TierFrozen},
	}
	for _, tc := range cases {
		tier, ok := TierFor(tc.method)
		if !ok {
			t.Fatalf("%s should be cacheable", tc.method)
		}
		if tier != tc.tier {
			t.Fatalf("%s tier = %v, want %v", tc.method, tier, tc.tier)
		}
	}

	if Cacheable("sendTransaction") {
		t.Fatal("sendTransaction must not be cacheable")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := json.RawMessage(`{"value":12345}`)
	params := []interface{}{"SomePubkey111"}

	s.Set(ctx, "getBalance", params, result)

	got, ok := s.Get(ctx, "getBalance", params)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(result) {
		t.Fatalf("cached result = %s, want %s", got, result)
	}
}

func TestGetMissOnDifferentParams(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Set(ctx, "getBalance", []interface{}{"AAA"}, json.RawMessage(`1`))

	if _, ok := s.Get(ctx, "getBalance", []interface{}{"BBB"}); ok {
		t.Fatal("different params must not hit")
	}
}

func TestUncacheableSetIsNoop(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Set(ctx, "sendTransaction", nil, json.RawMessage(`"sig"`))
	if _, ok := s.Get(ctx, "sendTransaction", nil); ok {
		t.Fatal("uncacheable method must never hit")
	}
}

func TestExpiryHonoredOnRead(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }
	s.Set(ctx, "getSlot", nil, json.RawMessage(`100`))

	// Inside the hot TTL: hit.
	s.now = func() time.Time { return base.Add(4 * time.Second) }
	if _, ok := s.Get(ctx, "getSlot", nil); !ok {
		t.Fatal("expected hit before TTL")
	}

	// Past the hot TTL: the envelope expiry rejects the entry even if the
	// backend still has it.
	s.now = func() time.Time { return base.Add(6 * time.Second) }
	if _, ok := s.Get(ctx, "getSlot", nil); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestInvalidateDropsEntries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Set(ctx, "getBalance", []interface{}{"AAA"}, json.RawMessage(`1`))
	s.Set(ctx, "getSlot", nil, json.RawMessage(`2`))

	if err := s.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := s.Get(ctx, "getBalance", []interface{}{"AAA"}); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("getBalance", []interface{}{"AAA"})
	b := Key("getBalance", []interface{}{"AAA"})
	c := Key("getBalance", []interface{}{"BBB"})
	if a != b {
		t.Fatal("same inputs must produce same key")
	}
	if a == c {
		t.Fatal("different params must produce different keys")
	}
}
