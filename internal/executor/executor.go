// Package executor runs one strategy through confidence gating, risk checks and trade submission.
package executor

import (
	"adaptive-agent-go/internal/exchange"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/risk"
	"adaptive-agent-go/internal/strategy"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Executor turns a strategy's signal into a trade. Every outcome, including
// failures and panics, is returned as an ExecutionResult.
type Executor struct {
	minConfidence float64
	gate          *risk.Gate
	exchange      exchange.Exchange
	logger        *zap.Logger
	now           func() time.Time
}

// New creates an Executor.
func New(minConfidence float64, gate *risk.Gate, ex exchange.Exchange, logger *zap.Logger) *Executor {
	return &Executor{
		minConfidence: minConfidence,
		gate:          gate,
		exchange:      ex,
		logger:        logger,
		now:           time.Now,
	}
}

// Execute runs the strategy once. It never panics and never returns an error.
func (e *Executor) Execute(ctx context.Context, s strategy.Strategy, belief float64) (result models.ExecutionResult) {
	start := e.now()
	result = models.ExecutionResult{Strategy: s.Name(), BeliefScore: belief}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("strategy panicked", zap.String("strategy", s.Name()), zap.Any("panic", r))
			result = models.ExecutionResult{
				Strategy:    s.Name(),
				Reason:      models.ReasonPanic,
				Error:       fmt.Sprint(r),
				BeliefScore: belief,
			}
		}
		result.Timestamp = start
		result.Duration = e.now().Sub(start)
	}()

	if belief < e.minConfidence {
		e.logger.Info("skipping strategy",
			zap.String("strategy", s.Name()),
			zap.Float64("belief", belief),
			zap.Float64("min_confidence", e.minConfidence))
		result.Reason = models.ReasonInsufficientConfidence
		return result
	}

	signal, err := s.GenerateSignal(ctx)
	if err != nil {
		return e.failure(ctx, result, err)
	}

	if signal == nil || signal.Type != models.SignalAct {
		result.Success = true
		result.Action = models.ActionHold
		result.Reason = models.ReasonNoSignal
		return result
	}

	if v := e.gate.Check(*signal); v != nil {
		e.logger.Info("risk check rejected signal", zap.String("strategy", s.Name()), zap.Error(v))
		result.Reason = v.Kind
		result.Asset = signal.Asset
		return result
	}

	e.logger.Info("executing trade",
		zap.String("strategy", s.Name()),
		zap.String("asset", signal.Asset),
		zap.Float64("amount", signal.Amount),
		zap.Float64("size", signal.Size))

	fill, err := e.exchange.Submit(ctx, *signal)
	if err != nil {
		result.Asset = signal.Asset
		return e.failure(ctx, result, err)
	}

	result.Success = true
	result.Action = models.ActionExecute
	result.Reason = models.ReasonFilled
	result.Asset = fill.Asset
	result.Amount = fill.Amount
	result.Price = fill.Price
	result.ProfitLoss = fill.ProfitLoss
	return result
}

func (e *Executor) failure(ctx context.Context, result models.ExecutionResult, err error) models.ExecutionResult {
	result.Success = false
	result.Error = err.Error()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Reason = models.ReasonTimeout
	} else {
		result.Reason = models.ReasonError
	}
	e.logger.Warn("strategy execution failed",
		zap.String("strategy", result.Strategy),
		zap.String("reason", string(result.Reason)),
		zap.Error(err))
	return result
}
