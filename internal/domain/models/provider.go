package models

import "time"

// Network identifies a Solana cluster.
type Network string

const (
	NetworkMainnet Network = "mainnet-beta"
	NetworkDevnet  Network = "devnet"
	NetworkTestnet Network = "testnet"
)

// ParseNetwork maps a config string to a Network, defaulting to mainnet.
func ParseNetwork(s string) Network {
	switch s {
	case "devnet":
		return NetworkDevnet
	case "testnet":
		return NetworkTestnet
	default:
		return NetworkMainnet
	}
}

// Provider capability names as declared in configuration.
const (
	CapEnhancedMetadata = "enhanced_metadata"
	CapWebhooks         = "webhooks"
	CapUnlimitedBasic   = "unlimited_basic"
)

// AuthStyle controls where the API key is placed on outbound requests.
type AuthStyle string

const (
	AuthURLPath AuthStyle = "url"    // key appended to the URL path
	AuthHeader  AuthStyle = "header" // Authorization: Bearer <key>
	AuthNone    AuthStyle = "none"
)

// Provider describes one upstream RPC provider. Immutable after load.
type Provider struct {
	Name           string
	MainnetURL     string
	DevnetURL      string
	APIKey         string
	Auth           AuthStyle
	MonthlyQuota   int64
	CostPerRequest float64
	Priority       int // 1-10, higher = preferred
	Capabilities   []string
	Enabled        bool
}

// URLForNetwork returns the endpoint for the given cluster.
// Testnet traffic goes through the devnet endpoint.
func (p *Provider) URLForNetwork(n Network) string {
	if n == NetworkDevnet || n == NetworkTestnet {
		if p.DevnetURL != "" {
			return p.DevnetURL
		}
	}
	return p.MainnetURL
}

// HasCapability reports whether the provider declares the capability.
func (p *Provider) HasCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// HealthStatus is the routing-relevant health of a provider.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthRateLimited HealthStatus = "rate_limited"
	HealthUnavailable HealthStatus = "unavailable"
)

// ProviderStats is a point-in-time view of a provider's usage and health,
// exposed through the ops endpoints.
type ProviderStats struct {
	Name            string       `json:"name"`
	Health          HealthStatus `json:"health"`
	CallsThisMonth  int64        `json:"calls_this_month"`
	ErrorsThisMonth int64        `json:"errors_this_month"`
	MonthlyQuota    int64        `json:"monthly_quota"`
	UsagePercent    float64      `json:"usage_percent"`
	SuccessRate     float64      `json:"success_rate"`
	AvgLatencyMs    float64      `json:"avg_latency_ms"`
	CostThisMonth   float64      `json:"cost_this_month"`
	CooldownUntil   *time.Time   `json:"cooldown_until,omitempty"`
}

// UsageSnapshot is a persisted usage counter state for one provider-month.
type UsageSnapshot struct {
	Provider string    `json:"provider"`
	Month    string    `json:"month"` // YYYY-MM
	Calls    int64     `json:"calls"`
	Errors   int64     `json:"errors"`
	TakenAt  time.Time `json:"taken_at"`
}

// UsageAlert is emitted when a provider crosses its quota alert threshold.
type UsageAlert struct {
	Provider     string    `json:"provider"`
	Calls        int64     `json:"calls"`
	MonthlyQuota int64     `json:"monthly_quota"`
	UsagePercent float64   `json:"usage_percent"`
	Threshold    float64   `json:"threshold"`
	At           time.Time `json:"at"`
}
