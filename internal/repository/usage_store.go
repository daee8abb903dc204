package repository

import (
	"context"
	"fmt"
	"strings"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/pkg/clickhouse"
)

const usageTable = "provider_usage"

var usageSchema = []string{
	`CREATE TABLE IF NOT EXISTS provider_usage (
		taken_at DateTime64(3),
		provider LowCardinality(String),
		month    String,
		calls    Int64,
		errors   Int64
	) ENGINE = ReplacingMergeTree(taken_at)
	ORDER BY (provider, month)`,
}

// ClickHouseUsageStore persists periodic usage snapshots so counters survive
// restarts within a month. The ReplacingMergeTree keeps only the latest
// snapshot per provider-month; Load reads the max regardless of merge state.
type ClickHouseUsageStore struct {
	client *clickhouse.Client
}

func NewClickHouseUsageStore(client *clickhouse.Client) *ClickHouseUsageStore {
	return &ClickHouseUsageStore{client: client}
}

var _ repository.UsageStore = (*ClickHouseUsageStore)(nil)

func (s *ClickHouseUsageStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, usageSchema)
}

func (s *ClickHouseUsageStore) Save(ctx context.Context, snapshots []models.UsageSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	values := make([]string, 0, len(snapshots))
	args := make([]interface{}, 0, len(snapshots)*5)
	for _, snap := range snapshots {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, snap.TakenAt, snap.Provider, snap.Month, snap.Calls, snap.Errors)
	}

	q := fmt.Sprintf("INSERT INTO %s (taken_at, provider, month, calls, errors) VALUES %s",
		usageTable, strings.Join(values, ","))
	if _, err := s.client.DB().ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save usage snapshots: %w", err)
	}
	return nil
}

func (s *ClickHouseUsageStore) Load(ctx context.Context, month string) ([]models.UsageSnapshot, error) {
	q := fmt.Sprintf(`SELECT provider, month, max(calls), max(errors), max(taken_at)
		FROM %s WHERE month = ? GROUP BY provider, month`, usageTable)

	rows, err := s.client.DB().QueryContext(ctx, q, month)
	if err != nil {
		return nil, fmt.Errorf("load usage snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.UsageSnapshot
	for rows.Next() {
		var snap models.UsageSnapshot
		if err := rows.Scan(&snap.Provider, &snap.Month, &snap.Calls, &snap.Errors, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("scan usage snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
