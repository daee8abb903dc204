package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SolGate/internal/batch"
	"SolGate/internal/domain/models"
	"SolGate/internal/domain/repository"
	"SolGate/internal/router"
	svccache "SolGate/internal/service/cache"
	"SolGate/pkg/logger"
)

// Gateway orchestrates an outbound RPC call: cache lookup, batch
// coalescing for batchable reads, routed upstream call, cache fill.
type Gateway struct {
	cache     *svccache.Store
	coalescer *batch.Coalescer
	router    *router.Router
	metrics   repository.Metrics
	log       *logger.Logger
}

func NewGateway(cache *svccache.Store, r *router.Router, metrics repository.Metrics, log *logger.Logger, maxBatch int, maxWait time.Duration) *Gateway {
	g := &Gateway{
		cache:   cache,
		router:  r,
		metrics: metrics,
		log:     log,
	}
	g.coalescer = batch.NewCoalescer(g, metrics, log, maxBatch, maxWait)
	return g
}

// Call serves one RPC method. Cached results return without touching any
// provider; batchable single-key reads go through the coalescer.
func (g *Gateway) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if raw, ok := g.cache.Get(ctx, method, params); ok {
		return raw, nil
	}

	if key, ok := batchKey(method, params); ok {
		raw, err := g.coalescer.Submit(ctx, method, key, params)
		if err != nil {
			return nil, err
		}
		g.cache.Set(ctx, method, params, raw)
		return raw, nil
	}

	raw, err := g.routeOnce(ctx, method, params)
	if err != nil {
		return nil, err
	}
	g.cache.Set(ctx, method, params, raw)
	return raw, nil
}

func (g *Gateway) routeOnce(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	resp, provider, err := g.router.Route(ctx, models.NewRPCRequest(method, params))
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		g.log.Debug("upstream rpc error",
			logger.String("provider", provider),
			logger.String("method", method),
			logger.Int("code", resp.Error.Code))
		return nil, resp.Error
	}
	return resp.Result, nil
}

// batchKey extracts the coalescing key for batchable methods. Solana read
// methods put the address first in the params array.
func batchKey(method string, params interface{}) (string, bool) {
	if !batch.Batchable(method) {
		return "", false
	}
	arr, ok := params.([]interface{})
	if !ok || len(arr) == 0 {
		return "", false
	}
	key, ok := arr[0].(string)
	return key, ok
}

// multiValueResult is the envelope shape of getMultipleAccounts.
type multiValueResult struct {
	Context json.RawMessage   `json:"context"`
	Value   []json.RawMessage `json:"value"`
}

// DispatchBatch satisfies the coalescer's upstream. It issues one multi-key
// call and re-wraps each element as a single-key result so waiters see the
// same shape as an individual call.
func (g *Gateway) DispatchBatch(ctx context.Context, method string, keys []string, params interface{}) (map[string]json.RawMessage, error) {
	upstreamParams := []interface{}{keys}
	if arr, ok := params.([]interface{}); ok && len(arr) > 1 {
		upstreamParams = append(upstreamParams, arr[1])
	}

	raw, err := g.routeOnce(ctx, method, upstreamParams)
	if err != nil {
		return nil, err
	}

	var multi multiValueResult
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	if len(multi.Value) != len(keys) {
		return nil, fmt.Errorf("%s returned %d values for %d keys", method, len(multi.Value), len(keys))
	}

	out := make(map[string]json.RawMessage, len(keys))
	for i, key := range keys {
		single, err := json.Marshal(struct {
			Context json.RawMessage `json:"context"`
			Value   json.RawMessage `json:"value"`
		}{Context: multi.Context, Value: multi.Value[i]})
		if err != nil {
			return nil, fmt.Errorf("encode result for %s: %w", key, err)
		}
		out[key] = single
	}
	return out, nil
}

// DispatchSingle is the fallback path after a failed batch.
func (g *Gateway) DispatchSingle(ctx context.Context, method string, _ string, params interface{}) (json.RawMessage, error) {
	return g.routeOnce(ctx, method, params)
}

// ProviderReport is the ops view over all providers plus routing totals.
type ProviderReport struct {
	Providers []models.ProviderStats `json:"providers"`
	Policy    string                 `json:"policy"`
	Network   string                 `json:"network"`
}

func (g *Gateway) Report(policy models.RoutingPolicy, network models.Network) ProviderReport {
	return ProviderReport{
		Providers: g.router.StatsAll(),
		Policy:    string(policy),
		Network:   string(network),
	}
}
