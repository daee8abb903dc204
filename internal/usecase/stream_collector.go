package usecase

import (
	"context"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/internal/ingest"
	mid "SolGate/internal/middleware"
	"SolGate/internal/publish"
	"SolGate/pkg/logger"
)

// StreamCollector consumes the provider event stream and runs each
// transaction through signal extraction and publishing. It reconnects on
// stream errors until the context is cancelled.
type StreamCollector struct {
	stream    repository.EventStream
	extractor *ingest.Extractor
	publisher *publish.Publisher
	metrics   repository.Metrics
	log       *logger.Logger
	source    string
	pipeline  *mid.EventPipeline
}

func NewStreamCollector(
	stream repository.EventStream,
	extractor *ingest.Extractor,
	publisher *publish.Publisher,
	metrics repository.Metrics,
	log *logger.Logger,
	source string,
) *StreamCollector {
	return &StreamCollector{
		stream:    stream,
		extractor: extractor,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		source:    source,
	}
}

// UsePipeline routes events through a buffering, throttling pipeline
// instead of handling them inline.
func (sc *StreamCollector) UsePipeline(p *mid.EventPipeline) {
	sc.pipeline = p
}

// Run blocks until ctx is cancelled, reconnecting the stream as needed.
func (sc *StreamCollector) Run(ctx context.Context) error {
	if sc.pipeline != nil {
		sc.pipeline.Start(ctx)
		defer sc.pipeline.Stop()
	}
	if err := sc.stream.Connect(ctx); err != nil {
		return err
	}
	if err := sc.stream.Subscribe(ctx); err != nil {
		return err
	}

	for {
		events, errs := sc.stream.Read(ctx)

	consume:
		for {
			select {
			case <-ctx.Done():
				return sc.stream.Close()
			case ev, ok := <-events:
				if !ok {
					break consume
				}
				if sc.pipeline != nil {
					_ = sc.pipeline.Process(ctx, ev)
				} else {
					sc.handle(ctx, ev)
				}
			case err, ok := <-errs:
				if !ok {
					break consume
				}
				sc.metrics.RecordError("stream_read")
				sc.log.Warn("stream error, reconnecting", logger.Error(err))
				break consume
			}
		}

		select {
		case <-ctx.Done():
			return sc.stream.Close()
		default:
		}

		if err := sc.stream.Reconnect(ctx); err != nil {
			sc.metrics.RecordError("stream_reconnect")
			sc.log.Error("stream reconnect failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (sc *StreamCollector) handle(ctx context.Context, ev *models.WebhookEvent) {
	if !sc.extractor.Relevant(ev) {
		return
	}
	signals, _ := sc.extractor.Extract(ev, sc.source, nil)
	if len(signals) == 0 {
		return
	}
	for _, s := range signals {
		sc.metrics.RecordSignal(s.Type)
	}
	sc.publisher.Publish(ctx, signals)
}

// Process lets the collector sit behind the event pipeline for buffered,
// throttled delivery.
func (sc *StreamCollector) Process(ctx context.Context, ev *models.WebhookEvent) error {
	sc.handle(ctx, ev)
	return nil
}
