package provider

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Strategy string

const (
	StrategyWeighted Strategy = "weighted"
	StrategyPriority Strategy = "priority"
)

// RouteRequest describes the payment the router must find a rail for.
type RouteRequest struct {
	Currency string
	Country  string
	Method   Method
	Amount   decimal.Decimal
}

// Router picks one adapter among those whose capabilities match.
type Router struct {
	registry    *Registry
	strategy    Strategy
	environment string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRouter builds a router restricted to adapters configured for environment.
// An empty environment disables that filter.
func NewRouter(reg *Registry, strategy Strategy, environment string) *Router {
	if strategy != StrategyPriority {
		strategy = StrategyWeighted
	}
	return &Router{
		registry:    reg,
		strategy:    strategy,
		environment: environment,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand swaps the random source, tests use a fixed seed.
func (rt *Router) WithRand(r *rand.Rand) *Router {
	rt.mu.Lock()
	rt.rnd = r
	rt.mu.Unlock()
	return rt
}

// Candidates lists eligible adapters, best first for the priority strategy.
func (rt *Router) Candidates(req RouteRequest) []Provider {
	var eligible []entry
	for _, e := range rt.registry.snapshot() {
		if !e.cfg.Enabled {
			continue
		}
		if rt.environment != "" && e.cfg.Environment != "" && e.cfg.Environment != rt.environment {
			continue
		}
		caps := e.provider.Capabilities()
		if !caps.Covers(req.Currency, req.Country, req.Method) {
			continue
		}
		if !req.Amount.IsZero() && !caps.AcceptsAmount(req.Amount) {
			continue
		}
		eligible = append(eligible, e)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].cfg.Priority != eligible[j].cfg.Priority {
			return eligible[i].cfg.Priority > eligible[j].cfg.Priority
		}
		return eligible[i].cfg.Weight > eligible[j].cfg.Weight
	})

	out := make([]Provider, len(eligible))
	for i, e := range eligible {
		out[i] = e.provider
	}
	return out
}

// Route selects one adapter or fails with a non-retryable NO_PROVIDER_AVAILABLE.
func (rt *Router) Route(ctx context.Context, req RouteRequest) (Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, FromContext("", err)
	}

	var eligible []entry
	for _, p := range rt.Candidates(req) {
		cfg, _ := rt.registry.Config(p.Type())
		eligible = append(eligible, entry{provider: p, cfg: cfg})
	}
	if len(eligible) == 0 {
		return nil, &ProviderError{
			Code:    ErrNoProviderAvailable,
			Message: "no enabled provider supports " + req.Currency + "/" + req.Country + "/" + string(req.Method),
		}
	}

	if rt.strategy == StrategyPriority {
		return eligible[0].provider, nil
	}

	total := 0
	for _, e := range eligible {
		total += e.cfg.Weight
	}
	if total == 0 {
		return eligible[0].provider, nil
	}

	rt.mu.Lock()
	n := rt.rnd.Intn(total)
	rt.mu.Unlock()

	for _, e := range eligible {
		if n < e.cfg.Weight {
			return e.provider, nil
		}
		n -= e.cfg.Weight
	}
	return eligible[len(eligible)-1].provider, nil
}
