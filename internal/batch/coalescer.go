package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SolGate/internal/domain/repository"
	"SolGate/pkg/logger"
)

// ErrKeyNotInBatch means the upstream batch response did not contain an
// entry for the requested key.
var ErrKeyNotInBatch = errors.New("key missing from batch response")

// batchableMethods maps single-key RPC methods to the multi-key method used
// upstream.
var batchableMethods = map[string]string{
	"getAccountInfo": "getMultipleAccounts",
}

// Dispatcher executes one coalesced upstream call for a set of keys and
// returns per-key results.
type Dispatcher interface {
	DispatchBatch(ctx context.Context, method string, keys []string, params interface{}) (map[string]json.RawMessage, error)
	DispatchSingle(ctx context.Context, method string, key string, params interface{}) (json.RawMessage, error)
}

type pending struct {
	key    string
	params interface{}
	done   chan result
}

type result struct {
	raw json.RawMessage
	err error
}

// window collects requests for one method until it fills or times out.
// closed guards against double dispatch: the size trigger and the timer race
// for it, and exactly one wins.
type window struct {
	mu      sync.Mutex
	closed  bool
	items   []*pending
	timer   *time.Timer
	started time.Time
}

// Coalescer merges concurrent single-key calls for batchable methods into
// one upstream multi-key call.
type Coalescer struct {
	dispatcher Dispatcher
	metrics    repository.Metrics
	log        *logger.Logger

	maxSize int
	maxWait time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

func NewCoalescer(d Dispatcher, metrics repository.Metrics, log *logger.Logger, maxSize int, maxWait time.Duration) *Coalescer {
	if maxSize <= 0 {
		maxSize = 100
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	return &Coalescer{
		dispatcher: d,
		metrics:    metrics,
		log:        log,
		maxSize:    maxSize,
		maxWait:    maxWait,
		windows:    make(map[string]*window),
	}
}

// Batchable reports whether the method can be coalesced.
func Batchable(method string) bool {
	_, ok := batchableMethods[method]
	return ok
}

// Submit enqueues one key for the method and blocks until the containing
// batch is dispatched or ctx expires. Non-batchable methods go upstream
// individually right away.
func (c *Coalescer) Submit(ctx context.Context, method, key string, params interface{}) (json.RawMessage, error) {
	if !Batchable(method) {
		return c.dispatcher.DispatchSingle(ctx, method, key, params)
	}

	p := &pending{key: key, params: params, done: make(chan result, 1)}
	c.enqueue(method, p)

	select {
	case res := <-p.done:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coalescer) enqueue(method string, p *pending) {
	c.mu.Lock()
	w, ok := c.windows[method]
	if !ok || c.isClosed(w) {
		w = &window{started: time.Now()}
		w.timer = time.AfterFunc(c.maxWait, func() { c.flush(method, w) })
		c.windows[method] = w
	}
	c.mu.Unlock()

	w.mu.Lock()
	if w.closed {
		// Lost the race with a flush; start over on a fresh window.
		w.mu.Unlock()
		c.enqueue(method, p)
		return
	}
	w.items = append(w.items, p)
	full := len(w.items) >= c.maxSize
	w.mu.Unlock()

	if full {
		c.flush(method, w)
	}
}

func (c *Coalescer) isClosed(w *window) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// flush dispatches the window exactly once. Callers racing here (size
// trigger vs timer) both call flush; the closed flag picks a single winner.
func (c *Coalescer) flush(method string, w *window) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	items := w.items
	w.timer.Stop()
	w.mu.Unlock()

	c.mu.Lock()
	if c.windows[method] == w {
		delete(c.windows, method)
	}
	c.mu.Unlock()

	if len(items) == 0 {
		return
	}

	go c.dispatch(method, items)
}

func (c *Coalescer) dispatch(method string, items []*pending) {
	upstream := batchableMethods[method]

	// Deduplicate keys; several waiters can ask for the same account.
	keys := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, p := range items {
		if !seen[p.key] {
			seen[p.key] = true
			keys = append(keys, p.key)
		}
	}

	c.metrics.RecordBatchDispatch(upstream, len(keys))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := c.dispatcher.DispatchBatch(ctx, upstream, keys, items[0].params)
	if err != nil {
		c.log.Warn("batch dispatch failed",
			logger.String("method", upstream),
			logger.Int("keys", len(keys)),
			logger.Error(err))
		// Every waiter gets the same error. Retrying here would fabricate
		// hidden upstream calls against quota; callers retry individually
		// if they want to.
		for _, p := range items {
			p.done <- result{err: err}
		}
		return
	}

	for _, p := range items {
		raw, ok := results[p.key]
		if !ok {
			p.done <- result{err: fmt.Errorf("%w: %s", ErrKeyNotInBatch, p.key)}
			continue
		}
		p.done <- result{raw: raw}
	}
}
