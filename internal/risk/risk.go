// Package risk holds the pre-trade bounds every act signal must satisfy.
package risk

import (
	"adaptive-agent-go/internal/models"
	"fmt"
)

const (
	DefaultMaxPositionSize = 0.10
	DefaultMaxSlippage     = 0.02
)

// Violation describes which bound a signal broke.
type Violation struct {
	Kind   models.Reason
	Limit  float64
	Actual float64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %.4f > %.4f", v.Kind, v.Actual, v.Limit)
}

// Gate checks signals against fixed limits. It holds no state beyond its
// configuration and is safe for concurrent use.
type Gate struct {
	maxPositionSize float64
	maxSlippage     float64
}

// NewGate creates a Gate from the risk configuration. Zero limits fall back to the defaults.
func NewGate(cfg models.RiskConfig) *Gate {
	g := &Gate{maxPositionSize: cfg.MaxPositionSize, maxSlippage: cfg.MaxSlippage}
	if g.maxPositionSize == 0 {
		g.maxPositionSize = DefaultMaxPositionSize
	}
	if g.maxSlippage == 0 {
		g.maxSlippage = DefaultMaxSlippage
	}
	return g
}

// Check returns nil when the signal is within bounds. Size is checked before slippage.
func (g *Gate) Check(signal models.Signal) *Violation {
	if signal.Size > g.maxPositionSize {
		return &Violation{Kind: models.ReasonMaxPositionSizeExceeded, Limit: g.maxPositionSize, Actual: signal.Size}
	}
	if signal.Slippage > g.maxSlippage {
		return &Violation{Kind: models.ReasonMaxSlippageExceeded, Limit: g.maxSlippage, Actual: signal.Slippage}
	}
	return nil
}
