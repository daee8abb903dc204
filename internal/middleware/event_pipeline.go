package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SolGate/internal/domain/models"
	domrepo "SolGate/internal/domain/repository"
)

// EventProc is the minimal processor interface the pipeline needs.
type EventProc interface {
	Process(ctx context.Context, ev *models.WebhookEvent) error
}

// EventPipeline sits between the provider event stream and the signal
// extraction path. It validates, throttles per transaction signature prefix,
// and buffers when downstream is unavailable.
type EventPipeline struct {
	proc     EventProc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.WebhookEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-fee-payer last accepted time
}

type PipelineOption func(*EventPipeline)

// WithMaxRPS sets the max events per second per fee payer.
func WithMaxRPS(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewEventPipeline creates a new pipeline.
func NewEventPipeline(proc EventProc, metrics domrepo.Metrics, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per fee payer
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.WebhookEvent, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.WebhookEvent, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered events.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if ev == nil {
					continue
				}
				if err := p.proc.Process(ctx, ev); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the event downstream,
// buffering on errors.
func (p *EventPipeline) Process(ctx context.Context, ev *models.WebhookEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(ev.Transaction.FeePayer, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateEvent(ev *models.WebhookEvent) error {
	if ev == nil {
		return fmt.Errorf("event nil")
	}
	if ev.Transaction.Signature == "" {
		return fmt.Errorf("signature empty")
	}
	return nil
}

func (p *EventPipeline) allow(feePayer string, now time.Time) bool {
	if p.maxRPS <= 0 || feePayer == "" {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[feePayer]
	if last.IsZero() {
		p.lastSeen[feePayer] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[feePayer] = now
	return true
}
