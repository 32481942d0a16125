// Package market provides the price data strategies read when generating signals.
package market

import (
	"adaptive-agent-go/internal/models"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
)

// ErrUnknownAsset is returned when a feed has no price for the requested asset.
var ErrUnknownAsset = errors.New("unknown asset")

// PriceFeed is a source of spot prices and recent closing prices.
type PriceFeed interface {
	Price(ctx context.Context, asset string) (float64, error)
	// Closes returns up to limit recent closing prices, oldest first.
	Closes(ctx context.Context, asset string, limit int) ([]float64, error)
}

// New builds the feed selected by the market configuration.
func New(cfg models.MarketConfig) (PriceFeed, error) {
	switch cfg.Provider {
	case "binance":
		return NewBinanceFeed(cfg.QuoteAsset), nil
	case "static":
		return NewStaticFeed(cfg.StaticPrices), nil
	case "simulated", "":
		return NewRandomWalkFeed(cfg.StaticPrices, cfg.Volatility, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Provider)
	}
}

// StaticFeed returns fixed prices. Used in tests and dry runs.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticFeed(prices map[string]float64) *StaticFeed {
	f := &StaticFeed{prices: make(map[string]float64, len(prices))}
	for k, v := range prices {
		f.prices[strings.ToUpper(k)] = v
	}
	return f
}

// Set changes the price of an asset.
func (f *StaticFeed) Set(asset string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[strings.ToUpper(asset)] = price
}

func (f *StaticFeed) Price(ctx context.Context, asset string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[strings.ToUpper(asset)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return p, nil
}

func (f *StaticFeed) Closes(ctx context.Context, asset string, limit int) ([]float64, error) {
	p, err := f.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, limit)
	for i := range closes {
		closes[i] = p
	}
	return closes, nil
}

const maxWalkHistory = 500

// RandomWalkFeed simulates prices with a geometric random walk that advances
// one step on every Price call. Assets without a configured start price begin at 1.
type RandomWalkFeed struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	history    map[string][]float64
}

func NewRandomWalkFeed(start map[string]float64, volatility float64, seed int64) *RandomWalkFeed {
	if seed == 0 {
		seed = 1
	}
	f := &RandomWalkFeed{
		rng:        rand.New(rand.NewSource(seed)),
		volatility: volatility,
		history:    make(map[string][]float64, len(start)),
	}
	for k, v := range start {
		f.history[strings.ToUpper(k)] = []float64{v}
	}
	return f
}

func (f *RandomWalkFeed) Price(ctx context.Context, asset string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := strings.ToUpper(asset)

	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.history[key]
	last := 1.0
	if len(h) > 0 {
		last = h[len(h)-1]
	}
	next := last * math.Exp(f.rng.NormFloat64()*f.volatility)
	h = append(h, next)
	if len(h) > maxWalkHistory {
		h = h[len(h)-maxWalkHistory:]
	}
	f.history[key] = h
	return next, nil
}

func (f *RandomWalkFeed) Closes(ctx context.Context, asset string, limit int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.history[strings.ToUpper(asset)]
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]float64, len(h))
	copy(out, h)
	return out, nil
}
