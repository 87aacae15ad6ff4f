// Package strategy implements the routing strategies that rank a
// route's eligible backends.
//
// Every strategy returns a best-first ordering so the decision engine
// can fall through to the next candidate when a breaker refuses
// admission. Ties break on backend ID to keep decisions deterministic.
package strategy

import (
	"fmt"
	"sort"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/registry"
)

// Strategy ranks a route's eligible backends best-first.
type Strategy interface {
	// Name returns the strategy name.
	Name() string

	// Rank orders backends best-first. The input slice is not modified.
	Rank(route *registry.Route, backends []*registry.Backend) []*registry.Backend
}

// strategies is the set of registered strategies.
var strategies = map[string]Strategy{
	config.StrategyLatencyOptimized: latencyOptimized{},
	config.StrategyCostOptimized:    costOptimized{},
	config.StrategyLoadBalanced:     loadBalanced{},
	config.StrategyFailover:         failover{},
}

// ByName returns the strategy registered under name.
func ByName(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

// latencyOptimized prefers the lowest observed p95 latency. Backends
// without window data rank after measured ones so unknown latency never
// beats a measurement.
type latencyOptimized struct{}

func (latencyOptimized) Name() string { return config.StrategyLatencyOptimized }

func (latencyOptimized) Rank(_ *registry.Route, backends []*registry.Backend) []*registry.Backend {
	type entry struct {
		backend *registry.Backend
		hasData bool
		p95     int64
	}

	entries := make([]entry, 0, len(backends))
	for _, b := range backends {
		snap := b.Snapshot()
		entries = append(entries, entry{
			backend: b,
			hasData: snap.HasData,
			p95:     int64(snap.P95),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.hasData != b.hasData {
			return a.hasData
		}
		if a.hasData && a.p95 != b.p95 {
			return a.p95 < b.p95
		}
		return a.backend.ID() < b.backend.ID()
	})

	ranked := make([]*registry.Backend, len(entries))
	for i, e := range entries {
		ranked[i] = e.backend
	}
	return ranked
}

// costOptimized prefers the lowest configured per-request cost.
type costOptimized struct{}

func (costOptimized) Name() string { return config.StrategyCostOptimized }

func (costOptimized) Rank(_ *registry.Route, backends []*registry.Backend) []*registry.Backend {
	ranked := append([]*registry.Backend(nil), backends...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Spec().Cost != b.Spec().Cost {
			return a.Spec().Cost < b.Spec().Cost
		}
		return a.ID() < b.ID()
	})
	return ranked
}

// failover uses strict configured priority order; lower is preferred.
type failover struct{}

func (failover) Name() string { return config.StrategyFailover }

func (failover) Rank(_ *registry.Route, backends []*registry.Backend) []*registry.Backend {
	ranked := append([]*registry.Backend(nil), backends...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Spec().Priority != b.Spec().Priority {
			return a.Spec().Priority < b.Spec().Priority
		}
		return a.ID() < b.ID()
	})
	return ranked
}

// loadBalanced spreads decisions by weighted round-robin using the
// route's cursor. Zero-weight backends rank last and receive no
// rotated share; when every weight is zero the rotation degrades to
// plain round-robin.
type loadBalanced struct{}

func (loadBalanced) Name() string { return config.StrategyLoadBalanced }

func (loadBalanced) Rank(route *registry.Route, backends []*registry.Backend) []*registry.Backend {
	if len(backends) == 0 {
		return nil
	}

	// Stable base order before rotation.
	base := append([]*registry.Backend(nil), backends...)
	sort.SliceStable(base, func(i, j int) bool { return base[i].ID() < base[j].ID() })

	weighted := make([]*registry.Backend, 0, len(base))
	var zeroWeight []*registry.Backend
	for _, b := range base {
		if b.Spec().Weight > 0 {
			weighted = append(weighted, b)
		} else {
			zeroWeight = append(zeroWeight, b)
		}
	}

	cursor := route.NextCursor()

	if len(weighted) == 0 {
		return rotate(base, int(cursor%uint64(len(base))))
	}

	totalWeight := 0
	for _, b := range weighted {
		totalWeight += b.Spec().Weight
	}

	// Smooth weighted round-robin: each step raises every backend's
	// current weight by its configured weight and picks the highest, so
	// shares interleave instead of running in weight-sized blocks and
	// equal weights cycle through every backend before repeating one.
	// The schedule repeats every totalWeight steps and is replayed from
	// the route cursor, keeping Rank itself stateless.
	current := make([]int, len(weighted))
	step := func() int {
		best := 0
		for i, b := range weighted {
			current[i] += b.Spec().Weight
			if current[i] > current[best] {
				best = i
			}
		}
		current[best] -= totalWeight
		return best
	}

	for i := 0; i < int(cursor%uint64(totalWeight)); i++ {
		step()
	}

	ranked := make([]*registry.Backend, 0, len(weighted))
	picked := make([]bool, len(weighted))
	for len(ranked) < len(weighted) {
		i := step()
		if picked[i] {
			continue
		}
		picked[i] = true
		ranked = append(ranked, weighted[i])
	}
	return append(ranked, zeroWeight...)
}

// rotate returns s reordered to start at index i.
func rotate(s []*registry.Backend, i int) []*registry.Backend {
	out := make([]*registry.Backend, 0, len(s))
	out = append(out, s[i:]...)
	out = append(out, s[:i]...)
	return out
}
