package alert

import (
	"context"
	"fmt"

	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/pkg/logger"
	"SolGate/pkg/queue"
)

// MsgTypeQuotaAlert is the queue message type for quota threshold alerts.
const MsgTypeQuotaAlert = "quota_alert"

// QueueNotifier pushes quota alerts onto the Redis work queue for the alert
// worker to pick up.
type QueueNotifier struct {
	queue queue.QueueService
}

func NewQueueNotifier(q queue.QueueService) repository.AlertNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) Notify(ctx context.Context, alert models.UsageAlert) error {
	if err := n.queue.PublishMessage(ctx, MsgTypeQuotaAlert, alert); err != nil {
		return fmt.Errorf("enqueue quota alert: %w", err)
	}
	return nil
}

// LogNotifier is the fallback when no queue is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) repository.AlertNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, alert models.UsageAlert) error {
	n.log.Warn("quota alert",
		logger.String("provider", alert.Provider),
		logger.Int64("calls", alert.Calls),
		logger.Int64("quota", alert.MonthlyQuota),
		logger.Any("usage_percent", alert.UsagePercent))
	return nil
}

// QuotaAlertJob consumes quota alerts from the queue and logs them at high
// visibility. Extending delivery (pager, chat) means adding here.
type QuotaAlertJob struct {
	log *logger.Logger
}

func NewQuotaAlertJob(log *logger.Logger) *QuotaAlertJob {
	return &QuotaAlertJob{log: log}
}

func (j *QuotaAlertJob) Name() string { return "quota-alert" }
func (j *QuotaAlertJob) Type() string { return MsgTypeQuotaAlert }

func (j *QuotaAlertJob) Handle(_ context.Context, payload interface{}) error {
	alert, err := queue.ParsePayload[models.UsageAlert](payload)
	if err != nil {
		return fmt.Errorf("parse quota alert: %w", err)
	}
	j.log.Warn("provider approaching monthly quota",
		logger.String("provider", alert.Provider),
		logger.Int64("calls", alert.Calls),
		logger.Int64("quota", alert.MonthlyQuota),
		logger.Any("usage_percent", alert.UsagePercent))
	return nil
}
