package strategy

import (
	"adaptive-agent-go/internal/models"
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// YieldHarvester compounds a yield position every harvest_interval cycles.
type YieldHarvester struct {
	base
	calls atomic.Int64
}

func yieldHarvesterDefaults() models.Params {
	return models.Params{
		"asset":            "ETH",
		"position_size":    0.05,
		"slippage":         0.005,
		"harvest_interval": 2.0,
	}
}

func (s *YieldHarvester) GenerateSignal(ctx context.Context) (*models.Signal, error) {
	p := s.snapshot()
	n := s.calls.Add(1)
	interval := int64(math.Max(1, math.Round(p.Float("harvest_interval", 2))))
	if n%interval != 0 {
		return holdSignal(), nil
	}

	asset := p.String("asset", "ETH")
	price, err := s.deps.Feed.Price(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("yield-harvester price: %w", err)
	}
	return s.actSignal(asset, p.Float("position_size", 0.05), p.Float("slippage", 0.005), price), nil
}

// SignalSeeker follows momentum over the last lookback closes.
type SignalSeeker struct {
	base
}

func signalSeekerDefaults() models.Params {
	return models.Params{
		"asset":         "BTC",
		"position_size": 0.04,
		"slippage":      0.004,
		"lookback":      10.0,
		"threshold":     0.01,
	}
}

func (s *SignalSeeker) GenerateSignal(ctx context.Context) (*models.Signal, error) {
	p := s.snapshot()
	asset := p.String("asset", "BTC")
	price, err := s.deps.Feed.Price(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("signal-seeker price: %w", err)
	}
	lookback := int(math.Max(2, math.Round(p.Float("lookback", 10))))
	closes, err := s.deps.Feed.Closes(ctx, asset, lookback)
	if err != nil {
		return nil, fmt.Errorf("signal-seeker closes: %w", err)
	}
	if len(closes) < 2 || closes[0] <= 0 {
		return holdSignal(), nil
	}

	momentum := closes[len(closes)-1]/closes[0] - 1
	threshold := math.Max(p.Float("threshold", 0.01), 1e-9)
	if math.Abs(momentum) < threshold {
		return holdSignal(), nil
	}
	// stronger moves take larger positions, up to twice the base size
	size := p.Float("position_size", 0.04) * math.Min(2, math.Abs(momentum)/threshold)
	return s.actSignal(asset, size, p.Float("slippage", 0.004), price), nil
}

// LiquiditySniffer enters when realized volatility signals thin liquidity.
// Its slippage estimate grows with volatility.
type LiquiditySniffer struct {
	base
}

func liquiditySnifferDefaults() models.Params {
	return models.Params{
		"asset":          "SOL",
		"position_size":  0.03,
		"slippage":       0.006,
		"lookback":       20.0,
		"min_volatility": 0.005,
		"impact":         0.5,
	}
}

func (s *LiquiditySniffer) GenerateSignal(ctx context.Context) (*models.Signal, error) {
	p := s.snapshot()
	asset := p.String("asset", "SOL")
	price, err := s.deps.Feed.Price(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("liquidity-sniffer price: %w", err)
	}
	lookback := int(math.Max(3, math.Round(p.Float("lookback", 20))))
	closes, err := s.deps.Feed.Closes(ctx, asset, lookback)
	if err != nil {
		return nil, fmt.Errorf("liquidity-sniffer closes: %w", err)
	}

	vol := realizedVolatility(closes)
	if vol < p.Float("min_volatility", 0.005) {
		return holdSignal(), nil
	}
	slippage := p.Float("slippage", 0.006) + vol*p.Float("impact", 0.5)
	return s.actSignal(asset, p.Float("position_size", 0.03), slippage, price), nil
}

// ZKFarmer makes small periodic interactions with each configured protocol in turn.
type ZKFarmer struct {
	base
	calls atomic.Int64
}

func zkFarmerDefaults() models.Params {
	return models.Params{
		"gas_asset":            "ETH",
		"protocols":            "zksync,starknet,scroll",
		"position_size":        0.01,
		"slippage":             0.003,
		"interaction_interval": 3.0,
	}
}

func (s *ZKFarmer) GenerateSignal(ctx context.Context) (*models.Signal, error) {
	p := s.snapshot()
	n := s.calls.Add(1)
	interval := int64(math.Max(1, math.Round(p.Float("interaction_interval", 3))))
	if n%interval != 0 {
		return holdSignal(), nil
	}

	protocols := splitList(p.String("protocols", ""))
	if len(protocols) == 0 {
		return holdSignal(), nil
	}
	protocol := protocols[int((n/interval-1)%int64(len(protocols)))]

	gasAsset := p.String("gas_asset", "ETH")
	price, err := s.deps.Feed.Price(ctx, gasAsset)
	if err != nil {
		return nil, fmt.Errorf("zk-farmer price: %w", err)
	}
	return s.actSignal(protocol+":"+gasAsset, p.Float("position_size", 0.01), p.Float("slippage", 0.003), price), nil
}

func realizedVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(returns)-1))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
