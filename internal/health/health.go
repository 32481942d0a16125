// Package health answers one question before every cycle: may strategies run now?
package health

import (
	"adaptive-agent-go/internal/market"
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a health check.
type Status struct {
	OK        bool              `json:"ok"`
	Detail    string            `json:"detail,omitempty"`
	LatencyMs int               `json:"latency_ms"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"` // failing component -> error
}

// Probe is anything that can report health.
type Probe interface {
	Check(ctx context.Context) Status
}

// Func adapts a plain error-returning function into a Probe.
type Func func(ctx context.Context) error

// Check runs the function; a nil error means healthy.
func (f Func) Check(ctx context.Context) Status {
	start := time.Now()
	err := f(ctx)
	st := Status{
		OK:        err == nil,
		LatencyMs: int(time.Since(start).Milliseconds()),
		Timestamp: time.Now(),
	}
	if err != nil {
		st.Detail = err.Error()
	}
	return st
}

// Checker runs named probes in order. It is healthy only if every probe is.
type Checker struct {
	names  []string
	probes []Probe
}

// NewChecker creates an empty Checker. An empty Checker is always healthy.
func NewChecker() *Checker {
	return &Checker{}
}

// Add registers a probe under a name and returns the Checker for chaining.
func (c *Checker) Add(name string, p Probe) *Checker {
	c.names = append(c.names, name)
	c.probes = append(c.probes, p)
	return c
}

// Check runs every probe. A probe that panics counts as failed.
func (c *Checker) Check(ctx context.Context) Status {
	start := time.Now()
	st := Status{OK: true}
	var failed []string
	for i, p := range c.probes {
		if err := ctx.Err(); err != nil {
			st.OK = false
			failed = append(failed, fmt.Sprintf("%s: %v", c.names[i], err))
			break
		}
		res := safeCheck(ctx, p)
		if !res.OK {
			st.OK = false
			if st.Checks == nil {
				st.Checks = make(map[string]string)
			}
			st.Checks[c.names[i]] = res.Detail
			failed = append(failed, fmt.Sprintf("%s: %s", c.names[i], res.Detail))
		}
	}
	st.Detail = strings.Join(failed, "; ")
	st.LatencyMs = int(time.Since(start).Milliseconds())
	st.Timestamp = time.Now()
	return st
}

func safeCheck(ctx context.Context, p Probe) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			st = Status{OK: false, Detail: fmt.Sprintf("probe panic: %v", r), Timestamp: time.Now()}
		}
	}()
	return p.Check(ctx)
}

// FeedProbe is healthy when the feed quotes a positive price for asset.
func FeedProbe(feed market.PriceFeed, asset string) Probe {
	return Func(func(ctx context.Context) error {
		price, err := feed.Price(ctx, asset)
		if err != nil {
			return fmt.Errorf("price %s: %w", asset, err)
		}
		if price <= 0 {
			return fmt.Errorf("price %s: non-positive quote %v", asset, price)
		}
		return nil
	})
}

// Static always reports the same result. Useful for tests and dry runs.
func Static(ok bool, detail string) Probe {
	return Func(func(context.Context) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%s", detail)
	})
}
