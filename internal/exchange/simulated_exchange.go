package exchange

import (
	"adaptive-agent-go/internal/models"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// CompletedTrade 记录一笔模拟成交的明细
type CompletedTrade struct {
	OrderID    int64
	Asset      string
	Amount     float64
	EntryPrice float64
	ExitPrice  float64
	Profit     float64
	Fee        float64
	Slippage   float64
	Time       time.Time
}

// SimulatedExchange 实现了 Exchange 接口，用于模拟成交。
// 每个信号被视为一次完整的开平仓：按参考价加滑点买入，
// 持有期收益从正态分布 N(EdgeMean, EdgeStdDev) 中抽取，两边都收手续费。
type SimulatedExchange struct {
	InitialBalance float64
	Cash           float64
	TotalFees      float64
	TradeLog       []CompletedTrade
	EquityCurve    []float64
	NextOrderID    int64

	FeeRate    float64 // 单边手续费率
	EdgeMean   float64 // 持有期平均收益率
	EdgeStdDev float64 // 持有期收益率标准差

	rng *rand.Rand
	now func() time.Time
	mu  sync.Mutex
}

// NewSimulatedExchange 创建一个新的模拟交易所实例
func NewSimulatedExchange(cfg models.SimulationConfig) *SimulatedExchange {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedExchange{
		InitialBalance: cfg.PortfolioValue,
		Cash:           cfg.PortfolioValue,
		TradeLog:       make([]CompletedTrade, 0),
		EquityCurve:    []float64{cfg.PortfolioValue},
		NextOrderID:    1,
		FeeRate:        cfg.FeeRate,
		EdgeMean:       cfg.EdgeMean,
		EdgeStdDev:     cfg.EdgeStdDev,
		rng:            rand.New(rand.NewSource(seed)),
		now:            time.Now,
	}
}

// Submit 模拟一笔市价成交
func (e *SimulatedExchange) Submit(ctx context.Context, signal models.Signal) (*Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signal.Price <= 0 || signal.Amount <= 0 {
		return nil, fmt.Errorf("%w: %s price=%.8f amount=%.8f", ErrRejected, signal.Asset, signal.Price, signal.Amount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// --- 1. 计算包含滑点的成交价 ---
	entryPrice := signal.Price * (1 + signal.Slippage)
	notional := entryPrice * signal.Amount
	if notional > e.Cash {
		return nil, fmt.Errorf("%w: insufficient cash %.2f for notional %.2f", ErrRejected, e.Cash, notional)
	}

	// --- 2. 持有期收益，平仓同样承担滑点 ---
	edge := e.EdgeMean + e.rng.NormFloat64()*e.EdgeStdDev
	exitPrice := signal.Price * (1 + edge) * (1 - signal.Slippage)

	// --- 3. 计算手续费 ---
	fee := (entryPrice + exitPrice) * signal.Amount * e.FeeRate
	profit := (exitPrice-entryPrice)*signal.Amount - fee

	e.TotalFees += fee
	e.Cash += profit

	fill := &Fill{
		OrderID:    e.NextOrderID,
		Asset:      signal.Asset,
		Side:       "BUY",
		Amount:     signal.Amount,
		Price:      entryPrice,
		Fee:        fee,
		ProfitLoss: profit,
		Time:       e.now(),
	}
	e.NextOrderID++

	e.TradeLog = append(e.TradeLog, CompletedTrade{
		OrderID:    fill.OrderID,
		Asset:      signal.Asset,
		Amount:     signal.Amount,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Profit:     profit,
		Fee:        fee,
		Slippage:   (entryPrice - signal.Price) * signal.Amount,
		Time:       fill.Time,
	})
	e.EquityCurve = append(e.EquityCurve, e.Cash)
	return fill, nil
}

// Stats 返回账户状态的快照
func (e *SimulatedExchange) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		InitialBalance: e.InitialBalance,
		Cash:           e.Cash,
		TotalFees:      e.TotalFees,
		TotalTrades:    len(e.TradeLog),
		MaxDrawdown:    maxDrawdown(e.EquityCurve),
	}
	for _, t := range e.TradeLog {
		if t.Profit > 0 {
			s.WinningTrades++
		}
	}
	return s
}

// Trades 返回成交明细的副本
func (e *SimulatedExchange) Trades() []CompletedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CompletedTrade, len(e.TradeLog))
	copy(out, e.TradeLog)
	return out
}

// Stats 是模拟账户的汇总指标
type Stats struct {
	InitialBalance float64
	Cash           float64
	TotalFees      float64
	TotalTrades    int
	WinningTrades  int
	MaxDrawdown    float64 // 比例，0.1 表示 10%
}

func maxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0.0
	}
	peak := equityCurve[0]
	maxDD := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
