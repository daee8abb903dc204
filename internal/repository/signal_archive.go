package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/pkg/clickhouse"
)

const signalsTable = "trading_signals"

var signalSchema = []string{
	`CREATE TABLE IF NOT EXISTS trading_signals (
		ts          DateTime64(3),
		signal_type LowCardinality(String),
		strength    Float64,
		confidence  Float64,
		mint        String,
		signature   String,
		source      LowCardinality(String),
		metadata    String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (signal_type, ts)
	TTL toDateTime(ts) + INTERVAL 90 DAY`,
}

// ClickHouseArchive persists emitted signals for offline analysis.
type ClickHouseArchive struct {
	client *clickhouse.Client
}

func NewClickHouseArchive(client *clickhouse.Client) repository.SignalArchive {
	return &ClickHouseArchive{client: client}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	return a.client.InitSchema(ctx, signalSchema)
}

func (a *ClickHouseArchive) Archive(ctx context.Context, signals []*models.TradingSignal) error {
	if len(signals) == 0 {
		return nil
	}

	values := make([]string, 0, len(signals))
	args := make([]interface{}, 0, len(signals)*8)
	for _, s := range signals {
		meta := ""
		if s.Metadata != nil {
			if b, err := json.Marshal(s.Metadata); err == nil {
				meta = string(b)
			}
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, s.Timestamp, s.Type, s.Strength, s.Confidence, s.Mint, s.Signature, s.Source, meta)
	}

	q := fmt.Sprintf("INSERT INTO %s (ts, signal_type, strength, confidence, mint, signature, source, metadata) VALUES %s",
		signalsTable, strings.Join(values, ","))
	if _, err := a.client.DB().ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive signals: %w", err)
	}
	return nil
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool owned by pkg client
}

// ArchiveSink adapts the archive to the signal sink interface so the
// publisher can fan out to it like any other target.
type ArchiveSink struct {
	archive repository.SignalArchive
}

func NewArchiveSink(archive repository.SignalArchive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Deliver(ctx context.Context, signals []*models.TradingSignal) error {
	return s.archive.Archive(ctx, signals)
}
