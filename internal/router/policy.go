package router

import (
	"sort"

	"SolGate/internal/domain/models"
)

// rank orders candidates in place according to the routing policy. Candidates
// are already filtered to healthy providers with remaining quota.
func (r *Router) rank(policy models.RoutingPolicy, cands []*candidate) {
	switch policy {
	case models.PolicyPerformanceFirst:
		sort.SliceStable(cands, func(i, j int) bool {
			// Providers with no latency sample yet sort last.
			li, lj := cands[i].latencyMs, cands[j].latencyMs
			if li == 0 {
				li = 1 << 30
			}
			if lj == 0 {
				lj = 1 << 30
			}
			return li < lj
		})

	case models.PolicyRoundRobin:
		if len(cands) > 1 {
			n := int(r.rrCursor.Add(1)-1) % len(cands)
			rotated := make([]*candidate, 0, len(cands))
			rotated = append(rotated, cands[n:]...)
			rotated = append(rotated, cands[:n]...)
			copy(cands, rotated)
		}

	case models.PolicyEnhancedDataFirst:
		sort.SliceStable(cands, func(i, j int) bool {
			ei := cands[i].provider.HasCapability(models.CapEnhancedMetadata)
			ej := cands[j].provider.HasCapability(models.CapEnhancedMetadata)
			if ei != ej {
				return ei
			}
			return costOptimizedLess(cands[i], cands[j])
		})

	default: // cost_optimized
		sort.SliceStable(cands, func(i, j int) bool {
			return costOptimizedLess(cands[i], cands[j])
		})
	}
}

// costOptimizedLess prefers the provider with the largest free-quota
// fraction, breaking ties by declared cost, then static priority.
func costOptimizedLess(a, b *candidate) bool {
	fa, fb := quotaFraction(a), quotaFraction(b)
	if fa != fb {
		return fa > fb
	}
	if a.provider.CostPerRequest != b.provider.CostPerRequest {
		return a.provider.CostPerRequest < b.provider.CostPerRequest
	}
	return a.provider.Priority > b.provider.Priority
}

func quotaFraction(c *candidate) float64 {
	if c.provider.MonthlyQuota <= 0 {
		return 0
	}
	return float64(c.remaining) / float64(c.provider.MonthlyQuota)
}
