package models

import "time"

// Trading signal types derived from webhook events.
const (
	SignalLargeVolumeTransfer = "large_volume_transfer"
	SignalNewToken            = "new_token"
)

// Risk indicator types.
const (
	RiskSelfTransfer = "self_transfer"
	RiskHighFee      = "high_transaction_fee"
)

// TradingSignal is a normalized, typed event handed to the downstream
// decision layer. Immutable once created.
type TradingSignal struct {
	Type       string                 `json:"signal_type"`
	Strength   float64                `json:"strength"`   // [0,1]
	Confidence float64                `json:"confidence"` // [0,1]
	Mint       string                 `json:"mint,omitempty"`
	Signature  string                 `json:"transaction_signature"`
	Source     string                 `json:"source"` // provider that delivered the event
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RiskIndicator flags a suspicious pattern seen alongside signals.
type RiskIndicator struct {
	Type        string  `json:"risk_type"`
	Severity    float64 `json:"severity"`
	Description string  `json:"description"`
}

// IngestReport summarizes one processed webhook delivery.
type IngestReport struct {
	Signals        []*TradingSignal `json:"signals"`
	Risks          []RiskIndicator  `json:"risks,omitempty"`
	EventsSeen     int              `json:"events_seen"`
	EventsRelevant int              `json:"events_relevant"`
}
