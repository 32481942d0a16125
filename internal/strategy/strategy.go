// Package strategy defines the closed set of trading strategy variants and
// the registry that owns them.
package strategy

import (
	"adaptive-agent-go/internal/market"
	"adaptive-agent-go/internal/models"
	"context"
	"fmt"
	"sync/atomic"
)

// Strategy is the capability every variant implements.
type Strategy interface {
	Name() string
	// GenerateSignal returns nil or a hold signal when there is nothing to do.
	GenerateSignal(ctx context.Context) (*models.Signal, error)
	// UpdateParameters merges params into the current set and publishes a new version.
	UpdateParameters(params models.Params)
	// Parameters returns a copy of the current parameter set.
	Parameters() models.Params
	Version() uint64
}

// Deps are the collaborators shared by all variants.
type Deps struct {
	Feed           market.PriceFeed
	PortfolioValue float64
}

type paramSnapshot struct {
	params  models.Params
	version uint64
}

// paramStore publishes immutable parameter snapshots. Readers always see a whole map.
type paramStore struct {
	current atomic.Pointer[paramSnapshot]
}

func newParamStore(defaults, overrides models.Params) *paramStore {
	merged := defaults.Clone()
	for k, v := range overrides.Normalize() {
		merged[k] = v
	}
	s := &paramStore{}
	s.current.Store(&paramSnapshot{params: merged, version: 1})
	return s
}

func (s *paramStore) load() *paramSnapshot {
	return s.current.Load()
}

func (s *paramStore) update(params models.Params) {
	for {
		old := s.current.Load()
		next := old.params.Clone()
		for k, v := range params.Normalize() {
			next[k] = v
		}
		if s.current.CompareAndSwap(old, &paramSnapshot{params: next, version: old.version + 1}) {
			return
		}
	}
}

// base carries what every variant shares.
type base struct {
	name   string
	kind   string
	deps   Deps
	params *paramStore
}

func (b *base) Name() string { return b.name }

func (b *base) Kind() string { return b.kind }

func (b *base) UpdateParameters(params models.Params) { b.params.update(params) }

func (b *base) Parameters() models.Params { return b.params.load().params.Clone() }

func (b *base) Version() uint64 { return b.params.load().version }

// snapshot returns the live parameter map. Callers must not modify it.
func (b *base) snapshot() models.Params { return b.params.load().params }

// actSignal sizes a signal as a fraction of the portfolio at the given price.
func (b *base) actSignal(asset string, size, slippage, price float64) *models.Signal {
	amount := 0.0
	if price > 0 {
		amount = size * b.deps.PortfolioValue / price
	}
	return &models.Signal{
		Type:     models.SignalAct,
		Asset:    asset,
		Size:     size,
		Amount:   amount,
		Slippage: slippage,
		Price:    price,
	}
}

func holdSignal() *models.Signal {
	return &models.Signal{Type: models.SignalHold}
}

// Kinds lists the supported variants.
var Kinds = []string{KindYieldHarvester, KindSignalSeeker, KindLiquiditySniffer, KindZKFarmer}

const (
	KindYieldHarvester   = "yield-harvester"
	KindSignalSeeker     = "signal-seeker"
	KindLiquiditySniffer = "liquidity-sniffer"
	KindZKFarmer         = "zk-farmer"
)

// Build constructs the variant named by cfg.Kind (or cfg.Name when Kind is empty).
func Build(cfg models.StrategyConfig, deps Deps) (Strategy, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = cfg.Name
	}
	if deps.Feed == nil {
		return nil, fmt.Errorf("strategy %s: price feed is required", cfg.Name)
	}
	if deps.PortfolioValue <= 0 {
		deps.PortfolioValue = 10000
	}

	newBase := func(defaults models.Params) base {
		return base{name: cfg.Name, kind: kind, deps: deps, params: newParamStore(defaults, cfg.Params)}
	}

	switch kind {
	case KindYieldHarvester:
		return &YieldHarvester{base: newBase(yieldHarvesterDefaults())}, nil
	case KindSignalSeeker:
		return &SignalSeeker{base: newBase(signalSeekerDefaults())}, nil
	case KindLiquiditySniffer:
		return &LiquiditySniffer{base: newBase(liquiditySnifferDefaults())}, nil
	case KindZKFarmer:
		return &ZKFarmer{base: newBase(zkFarmerDefaults())}, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
}
