package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/internal/service/ratelimit"
	"SolGate/pkg/logger"
)

var (
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrRateLimited  = errors.New("delivery rate limit exceeded")
	ErrMalformed    = errors.New("malformed webhook payload")
)

// Stats are the lifetime ingestion counters exposed on the metrics endpoint.
type Stats struct {
	Received        uint64  `json:"webhooks_received"`
	Succeeded       uint64  `json:"webhooks_succeeded"`
	Failed          uint64  `json:"webhooks_failed"`
	SignalsEmitted  uint64  `json:"signals_emitted"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
	SuccessRate     float64 `json:"success_rate"`
}

// Ingestor runs the delivery pipeline: authenticate, rate-check, parse,
// extract. Counters update on every delivery regardless of outcome.
type Ingestor struct {
	authToken  string
	ratePerMin float64
	limiter    *ratelimit.Limiter
	extractor  *Extractor
	metrics    repository.Metrics
	log        *logger.Logger

	received       atomic.Uint64
	succeeded      atomic.Uint64
	failed         atomic.Uint64
	signalsEmitted atomic.Uint64
	processingUs   atomic.Uint64 // cumulative, over succeeded deliveries
}

func NewIngestor(authToken string, ratePerMin float64, extractor *Extractor, metrics repository.Metrics, log *logger.Logger) *Ingestor {
	return &Ingestor{
		authToken:  authToken,
		ratePerMin: ratePerMin,
		limiter:    ratelimit.New(),
		extractor:  extractor,
		metrics:    metrics,
		log:        log,
	}
}

// Authenticate validates the Authorization header value.
func (g *Ingestor) Authenticate(header string) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) || strings.TrimPrefix(header, prefix) != g.authToken {
		return ErrUnauthorized
	}
	return nil
}

// Admit applies the per-source rate limit.
func (g *Ingestor) Admit(source string) error {
	if !g.limiter.Allow("webhook:"+source, g.ratePerMin, g.ratePerMin/60) {
		return ErrRateLimited
	}
	return nil
}

// Process runs one delivery through the full pipeline. authHeader is the raw
// Authorization header; source identifies the sending provider. The returned
// error is one of the sentinel errors above, or nil.
func (g *Ingestor) Process(authHeader, source string, body []byte) (*models.IngestReport, error) {
	g.received.Add(1)
	start := time.Now()

	if err := g.Authenticate(authHeader); err != nil {
		g.fail(source, "unauthorized")
		return nil, err
	}
	if err := g.Admit(source); err != nil {
		g.fail(source, "rate_limited")
		return nil, err
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		g.fail(source, "malformed")
		g.log.Warn("malformed webhook payload",
			logger.String("source", source),
			logger.Error(err))
		return nil, ErrMalformed
	}

	report := &models.IngestReport{EventsSeen: len(payload.Events)}
	for i := range payload.Events {
		ev := &payload.Events[i]
		if !g.extractor.Relevant(ev) {
			continue
		}
		report.EventsRelevant++

		signals, risks := g.extractor.Extract(ev, source, payload.TransactionTypes)
		report.Signals = append(report.Signals, signals...)
		report.Risks = append(report.Risks, risks...)
	}

	g.succeeded.Add(1)
	g.signalsEmitted.Add(uint64(len(report.Signals)))
	g.processingUs.Add(uint64(time.Since(start).Microseconds()))
	g.metrics.RecordWebhook(source, "ok")
	for _, s := range report.Signals {
		g.metrics.RecordSignal(s.Type)
	}

	return report, nil
}

func (g *Ingestor) fail(source, outcome string) {
	g.failed.Add(1)
	g.metrics.RecordWebhook(source, outcome)
}

// Stats returns a consistent-enough snapshot of the counters.
func (g *Ingestor) Stats() Stats {
	received := g.received.Load()
	succeeded := g.succeeded.Load()
	failed := g.failed.Load()

	var avgMs, rate float64
	if succeeded > 0 {
		avgMs = float64(g.processingUs.Load()) / float64(succeeded) / 1000
	}
	if received > 0 {
		rate = float64(succeeded) / float64(received)
	}

	return Stats{
		Received:        received,
		Succeeded:       succeeded,
		Failed:          failed,
		SignalsEmitted:  g.signalsEmitted.Load(),
		AvgProcessingMs: avgMs,
		SuccessRate:     rate,
	}
}
