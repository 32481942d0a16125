// Package confidence keeps a belief score per strategy and decides execution eligibility.
package confidence

import (
	"adaptive-agent-go/internal/models"
	"sync"
)

const (
	DefaultMinConfidence = 0.6
	DefaultBelief        = 0.5
)

// Gate holds the belief scores. Scores are read by the executor concurrently and
// replaced in one step by Commit once the cycle's state has been persisted.
type Gate struct {
	mu            sync.RWMutex
	scores        map[string]float64
	initial       map[string]float64
	defaultBelief float64
	minConfidence float64
	policy        Policy
}

// NewGate builds a gate from the confidence configuration. A nil policy selects
// BoundedStepPolicy configured from cfg.
func NewGate(cfg models.ConfidenceConfig, policy Policy) *Gate {
	g := &Gate{
		scores:        make(map[string]float64),
		initial:       make(map[string]float64),
		defaultBelief: cfg.DefaultBelief,
		minConfidence: cfg.MinConfidence,
		policy:        policy,
	}
	if g.defaultBelief == 0 {
		g.defaultBelief = DefaultBelief
	}
	if g.minConfidence == 0 {
		g.minConfidence = DefaultMinConfidence
	}
	if g.policy == nil {
		p := DefaultPolicy()
		if cfg.Step > 0 {
			p.Step = cfg.Step
		}
		p.OwnHistoryWeight = cfg.OwnHistoryWeight
		if cfg.HoldIsNeutral != nil {
			p.HoldIsNeutral = *cfg.HoldIsNeutral
		}
		g.policy = p
	}
	return g
}

// SetInitial overrides the score a strategy starts with on first reference.
func (g *Gate) SetInitial(name string, score float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initial[name] = clamp(score)
}

// LoadScores seeds scores recovered from durable state.
func (g *Gate) LoadScores(scores map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, s := range scores {
		g.scores[name] = clamp(s)
	}
}

// Score returns the strategy's belief, creating it with the default on first reference.
func (g *Gate) Score(name string) float64 {
	g.mu.RLock()
	s, ok := g.scores[name]
	g.mu.RUnlock()
	if ok {
		return s
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scoreLocked(name)
}

func (g *Gate) scoreLocked(name string) float64 {
	if s, ok := g.scores[name]; ok {
		return s
	}
	s := g.defaultBelief
	if init, ok := g.initial[name]; ok {
		s = init
	}
	g.scores[name] = s
	return s
}

// IsEligible reports whether the strategy's score reaches the minimum confidence.
func (g *Gate) IsEligible(name string) bool {
	return g.Score(name) >= g.minConfidence
}

func (g *Gate) MinConfidence() float64 { return g.minConfidence }

// Propose computes new scores for every strategy in results from one snapshot.
// Nothing is installed until Commit.
func (g *Gate) Propose(results []models.ExecutionResult) map[string]float64 {
	return g.ProposeWithHistory(results, nil)
}

// ProposeWithHistory is Propose with each strategy's recent-window profit available to the policy.
func (g *Gate) ProposeWithHistory(results []models.ExecutionResult, history map[string]float64) map[string]float64 {
	g.mu.Lock()
	current := make(map[string]float64, len(results))
	for _, r := range results {
		current[r.Strategy] = g.scoreLocked(r.Strategy)
	}
	g.mu.Unlock()

	proposed := g.policy.Propose(current, results, history)
	for name, s := range proposed {
		proposed[name] = clamp(s)
	}
	return proposed
}

// Commit installs proposed scores atomically.
func (g *Gate) Commit(scores map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, s := range scores {
		g.scores[name] = clamp(s)
	}
}

// Update applies the policy to one strategy's outcomes and installs the result.
func (g *Gate) Update(name string, outcomes []models.ExecutionResult) float64 {
	results := make([]models.ExecutionResult, 0, len(outcomes)+1)
	results = append(results, outcomes...)
	present := false
	for _, r := range outcomes {
		if r.Strategy == name {
			present = true
			break
		}
	}
	if !present {
		// the strategy still follows the ensemble even without a result of its own
		results = append(results, models.ExecutionResult{Strategy: name, Success: true, Action: models.ActionHold, Reason: models.ReasonNoSignal})
	}

	proposed := g.Propose(results)
	score := proposed[name]
	g.Commit(map[string]float64{name: score})
	return score
}

// Snapshot returns a copy of all known scores.
func (g *Gate) Snapshot() map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]float64, len(g.scores))
	for k, v := range g.scores {
		out[k] = v
	}
	return out
}
