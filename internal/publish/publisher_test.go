package publish

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
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

type recordingSink struct {
	name string
	fail bool

	mu        sync.Mutex
	delivered [][]*models.TradingSignal
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, signals []*models.TradingSignal) error {
	s.mu.Lock()
	s.delivered = append(s.delivered, signals)
	s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func testSignals() []*models.TradingSignal {
	return []*models.TradingSignal{
		{Type: models.SignalNewToken, Mint: "MintA", Strength: 0.5, Confidence: 0.6},
	}
}

func newTestPublisher(t *testing.T, sinks ...*recordingSink) *Publisher {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)

	out := make([]repository.SignalSink, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, s)
	}
	return New(nopMetrics{}, lgr, out...)
}

func TestPublishReachesAllSinks(t *testing.T) {
	a := &recordingSink{name: "decision"}
	b := &recordingSink{name: "kafka"}
	p := newTestPublisher(t, a, b)

	p.Publish(context.Background(), testSignals())

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSink{name: "decision", fail: true}
	good := &recordingSink{name: "kafka"}
	p := newTestPublisher(t, bad, good)

	p.Publish(context.Background(), testSignals())

	assert.Equal(t, 1, bad.count(), "failing sink still attempted")
	assert.Equal(t, 1, good.count(), "healthy sink unaffected")
}

func TestPublishSkipsEmptyBatch(t *testing.T) {
	a := &recordingSink{name: "decision"}
	p := newTestPublisher(t, a)

	p.Publish(context.Background(), nil)

	assert.Equal(t, 0, a.count())
}
