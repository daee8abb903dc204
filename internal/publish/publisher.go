package publish

import (
	"context"
	"sync"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/pkg/logger"
)

// Publisher fans signals out to every configured sink. Sinks fail
// independently: one sink's error is logged and counted, never propagated
// to the others or to the webhook response.
type Publisher struct {
	sinks   []repository.SignalSink
	metrics repository.Metrics
	log     *logger.Logger
}

func New(metrics repository.Metrics, log *logger.Logger, sinks ...repository.SignalSink) *Publisher {
	return &Publisher{sinks: sinks, metrics: metrics, log: log}
}

// Publish delivers the signals to all sinks concurrently and waits for
// completion.
func (p *Publisher) Publish(ctx context.Context, signals []*models.TradingSignal) {
	if len(signals) == 0 || len(p.sinks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sink := range p.sinks {
		wg.Add(1)
		go func(s repository.SignalSink) {
			defer wg.Done()
			if err := s.Deliver(ctx, signals); err != nil {
				p.metrics.RecordPublish(s.Name(), "error")
				p.log.Error("signal delivery failed",
					logger.String("sink", s.Name()),
					logger.Int("signals", len(signals)),
					logger.Error(err))
				return
			}
			p.metrics.RecordPublish(s.Name(), "ok")
		}(sink)
	}
	wg.Wait()
}

// PublishAsync delivers without blocking the caller.
func (p *Publisher) PublishAsync(signals []*models.TradingSignal) {
	go p.Publish(context.Background(), signals)
}
