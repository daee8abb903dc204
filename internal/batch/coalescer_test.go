package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

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

type fakeDispatcher struct {
	mu           sync.Mutex
	batchCalls   int32
	singleCalls  int32
	batchKeys    [][]string
	batchErr     error
	omitKeys     map[string]bool
	singleResult json.RawMessage
}

func (f *fakeDispatcher) DispatchBatch(_ context.Context, _ string, keys []string, _ interface{}) (map[string]json.RawMessage, error) {
	atomic.AddInt32(&f.batchCalls, 1)
	f.mu.Lock()
	f.batchKeys = append(f.batchKeys, keys)
	f.mu.Unlock()

	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if f.omitKeys[k] {
			continue
		}
		out[k] = json.RawMessage(fmt.Sprintf(`{"key":%q}`, k))
	}
	return out, nil
}

func (f *fakeDispatcher) DispatchSingle(_ context.Context, _ string, key string, _ interface{}) (json.RawMessage, error) {
	atomic.AddInt32(&f.singleCalls, 1)
	if f.singleResult != nil {
		return f.singleResult, nil
	}
	return json.RawMessage(fmt.Sprintf(`{"single":%q}`, key)), nil
}

func newTestCoalescer(t *testing.T, d Dispatcher, maxSize int, maxWait time.Duration) *Coalescer {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewCoalescer(d, nopMetrics{}, lgr, maxSize, maxWait)
}

func TestNonBatchableGoesStraightThrough(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCoalescer(t, d, 10, time.Second)

	raw, err := c.Submit(context.Background(), "getBalance", "Key1", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if string(raw) != `{"single":"Key1"}` {
		t.Fatalf("result = %s", raw)
	}
	if atomic.LoadInt32(&d.batchCalls) != 0 {
		t.Fatal("non-batchable method must not be batched")
	}
}

func TestSizeTriggerDispatchesOnce(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCoalescer(t, d, 3, time.Minute)

	var wg sync.WaitGroup
	results := make([]json.RawMessage, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Submit(context.Background(), "getAccountInfo", fmt.Sprintf("Key%d", i), nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		want := fmt.Sprintf(`{"key":"Key%d"}`, i)
		if string(results[i]) != want {
			t.Fatalf("waiter %d result = %s, want %s", i, results[i], want)
		}
	}
	if got := atomic.LoadInt32(&d.batchCalls); got != 1 {
		t.Fatalf("batch calls = %d, want 1", got)
	}
}

func TestTimerFlushesPartialWindow(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCoalescer(t, d, 100, 50*time.Millisecond)

	start := time.Now()
	raw, err := c.Submit(context.Background(), "getAccountInfo", "Solo", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if string(raw) != `{"key":"Solo"}` {
		t.Fatalf("result = %s", raw)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("dispatched after %v, expected to wait for the window", elapsed)
	}
	if got := atomic.LoadInt32(&d.batchCalls); got != 1 {
		t.Fatalf("batch calls = %d, want 1", got)
	}
}

func TestDuplicateKeysCoalesced(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCoalescer(t, d, 4, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.Submit(context.Background(), "getAccountInfo", "SameKey", nil)
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			if string(raw) != `{"key":"SameKey"}` {
				t.Errorf("result = %s", raw)
			}
		}()
	}
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.batchKeys) != 1 {
		t.Fatalf("batches = %d, want 1", len(d.batchKeys))
	}
	if len(d.batchKeys[0]) != 1 {
		t.Fatalf("upstream keys = %v, want single deduplicated key", d.batchKeys[0])
	}
}

func TestBatchFailureFansOutToEveryWaiter(t *testing.T) {
	dispatchErr := errors.New("upstream down")
	d := &fakeDispatcher{batchErr: dispatchErr}
	c := newTestCoalescer(t, d, 3, time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Submit(context.Background(), "getAccountInfo", fmt.Sprintf("Key%d", i), nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, dispatchErr) {
			t.Fatalf("waiter %d err = %v, want the batch dispatch error", i, err)
		}
	}
	// No hidden per-key retries: those would burn quota the caller never
	// asked for.
	if got := atomic.LoadInt32(&d.singleCalls); got != 0 {
		t.Fatalf("single calls = %d, want 0", got)
	}
	if got := atomic.LoadInt32(&d.batchCalls); got != 1 {
		t.Fatalf("batch calls = %d, want 1", got)
	}
}

func TestMissingKeyReturnsError(t *testing.T) {
	d := &fakeDispatcher{omitKeys: map[string]bool{"Ghost": true}}
	c := newTestCoalescer(t, d, 1, time.Minute)

	_, err := c.Submit(context.Background(), "getAccountInfo", "Ghost", nil)
	if !errors.Is(err, ErrKeyNotInBatch) {
		t.Fatalf("err = %v, want ErrKeyNotInBatch", err)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestCoalescer(t, d, 100, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, "getAccountInfo", "Waiting", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
