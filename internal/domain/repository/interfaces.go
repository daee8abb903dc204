package repository

import (
	"context"

	"SolGate/internal/domain/models"
)

// EventStream is a provider-pushed event feed (WebSocket subscription).
type EventStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.WebhookEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalSink delivers signals to one downstream target. Sinks fail
// independently of each other.
type SignalSink interface {
	Name() string
	Deliver(ctx context.Context, signals []*models.TradingSignal) error
}

// SignalArchive persists emitted signals for later analysis.
type SignalArchive interface {
	Init(ctx context.Context) error
	Archive(ctx context.Context, signals []*models.TradingSignal) error
	Health(ctx context.Context) error
	Close() error
}

// UsageStore persists and restores per-provider usage counters so a
// restart inside a month does not lose quota accounting.
type UsageStore interface {
	Save(ctx context.Context, snapshots []models.UsageSnapshot) error
	Load(ctx context.Context, month string) ([]models.UsageSnapshot, error)
}

// AlertNotifier carries quota alerts out of band. Implementations must not
// block the recording path.
type AlertNotifier interface {
	Notify(ctx context.Context, alert models.UsageAlert) error
}

// Metrics records gateway observability counters.
type Metrics interface {
	RecordRPCCall(provider, method, outcome string)
	RecordRPCLatency(provider string, seconds float64)
	RecordFailover(from, to string)
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
	RecordBatchDispatch(method string, size int)
	RecordWebhook(source, outcome string)
	RecordSignal(signalType string)
	RecordPublish(sink, outcome string)
	RecordError(kind string)
}
