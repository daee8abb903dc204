package models

import "encoding/json"

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewRPCRequest builds a request with the fixed protocol fields set.
func NewRPCRequest(method string, params interface{}) *RPCRequest {
	return &RPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// RoutingPolicy selects the provider ranking strategy. Closed set; chosen
// once at startup from configuration.
type RoutingPolicy string

const (
	PolicyCostOptimized     RoutingPolicy = "cost_optimized"
	PolicyPerformanceFirst  RoutingPolicy = "performance_first"
	PolicyRoundRobin        RoutingPolicy = "round_robin"
	PolicyEnhancedDataFirst RoutingPolicy = "enhanced_data_first"
)

// ValidPolicy reports whether s names a known routing policy.
func ValidPolicy(s string) bool {
	switch RoutingPolicy(s) {
	case PolicyCostOptimized, PolicyPerformanceFirst, PolicyRoundRobin, PolicyEnhancedDataFirst:
		return true
	}
	return false
}

// CacheTier classifies how fast the cached data can go stale.
type CacheTier string

const (
	TierHot    CacheTier = "hot"    // e.g. recent blockhash
	TierWarm   CacheTier = "warm"   // e.g. account balances
	TierCold   CacheTier = "cold"   // e.g. token supply
	TierFrozen CacheTier = "frozen" // e.g. token metadata
)

// ParseTier maps a string to a CacheTier, defaulting to Warm.
func ParseTier(s string) CacheTier {
	switch CacheTier(s) {
	case TierHot, TierWarm, TierCold, TierFrozen:
		return CacheTier(s)
	}
	return TierWarm
}
