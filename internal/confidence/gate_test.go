package confidence

import (
	"adaptive-agent-go/internal/models"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(name string, success bool, pnl float64) models.ExecutionResult {
	r := models.ExecutionResult{Strategy: name, Success: success, ProfitLoss: pnl}
	if success {
		r.Reason = models.ReasonFilled
		r.Action = models.ActionExecute
	} else {
		r.Reason = models.ReasonError
	}
	return r
}

func TestGate_DefaultScoreOnFirstReference(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	assert.Equal(t, 0.5, g.Score("zk-farmer"))
	assert.False(t, g.IsEligible("zk-farmer"))

	g.SetInitial("yield-harvester", 0.7)
	assert.Equal(t, 0.7, g.Score("yield-harvester"))
	assert.True(t, g.IsEligible("yield-harvester"))
}

func TestGate_ThresholdIsInclusive(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{MinConfidence: 0.6}, nil)
	g.LoadScores(map[string]float64{"a": 0.6, "b": 0.5999})
	assert.True(t, g.IsEligible("a"))
	assert.False(t, g.IsEligible("b"))
}

func TestGate_ProposeDoesNotInstall(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	g.LoadScores(map[string]float64{"a": 0.6, "b": 0.6})

	proposed := g.Propose([]models.ExecutionResult{result("a", true, 0.02), result("b", false, 0)})
	assert.InDelta(t, 0.65, proposed["a"], 1e-9)
	assert.InDelta(t, 0.65, proposed["b"], 1e-9, "ensemble feedback raises every strategy")
	assert.Equal(t, 0.6, g.Score("a"))

	g.Commit(proposed)
	assert.InDelta(t, 0.65, g.Score("a"), 1e-9)
	assert.InDelta(t, 0.65, g.Score("b"), 1e-9)
}

func TestGate_NegativeAggregateLowersAll(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	g.LoadScores(map[string]float64{"a": 0.7, "b": 0.7})
	proposed := g.Propose([]models.ExecutionResult{result("a", true, 0.05), result("b", true, -0.08)})
	assert.InDelta(t, 0.65, proposed["a"], 1e-9)
	assert.InDelta(t, 0.65, proposed["b"], 1e-9)
}

func TestGate_ZeroAggregate(t *testing.T) {
	hold := models.ExecutionResult{Strategy: "a", Success: true, Action: models.ActionHold, Reason: models.ReasonNoSignal}
	gated := models.ExecutionResult{Strategy: "b", Success: false, Reason: models.ReasonInsufficientConfidence}

	t.Run("holds are neutral", func(t *testing.T) {
		g := NewGate(models.ConfidenceConfig{}, nil)
		g.LoadScores(map[string]float64{"a": 0.7, "b": 0.4})
		proposed := g.Propose([]models.ExecutionResult{hold, gated})
		assert.InDelta(t, 0.7, proposed["a"], 1e-9)
		assert.InDelta(t, 0.4, proposed["b"], 1e-9)
	})

	t.Run("failures lower", func(t *testing.T) {
		g := NewGate(models.ConfidenceConfig{}, nil)
		g.LoadScores(map[string]float64{"a": 0.7, "c": 0.7})
		proposed := g.Propose([]models.ExecutionResult{hold, result("c", false, 0)})
		assert.InDelta(t, 0.65, proposed["a"], 1e-9)
		assert.InDelta(t, 0.65, proposed["c"], 1e-9)
	})

	t.Run("non-neutral holds lower", func(t *testing.T) {
		neutral := false
		g := NewGate(models.ConfidenceConfig{HoldIsNeutral: &neutral}, nil)
		g.LoadScores(map[string]float64{"a": 0.7})
		proposed := g.Propose([]models.ExecutionResult{hold})
		assert.InDelta(t, 0.65, proposed["a"], 1e-9)
	})
}

func TestGate_OwnHistoryWeight(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{OwnHistoryWeight: 0.8}, nil)
	g.LoadScores(map[string]float64{"winner": 0.6, "loser": 0.6})

	// aggregate is positive, but the loser's own losses dominate its direction
	results := []models.ExecutionResult{result("winner", true, 0.10), result("loser", true, -0.02)}
	proposed := g.ProposeWithHistory(results, map[string]float64{"loser": -0.5})
	assert.InDelta(t, 0.65, proposed["winner"], 1e-9)
	assert.InDelta(t, 0.55, proposed["loser"], 1e-9)

	// w = 0 is the pure ensemble policy
	pure := NewGate(models.ConfidenceConfig{}, nil)
	pure.LoadScores(map[string]float64{"winner": 0.6, "loser": 0.6})
	proposed = pure.ProposeWithHistory(results, map[string]float64{"loser": -0.5})
	assert.InDelta(t, 0.65, proposed["loser"], 1e-9)
}

func TestGate_ScoresStayInUnitInterval(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{Step: 0.3}, nil)
	rng := rand.New(rand.NewSource(7))
	names := []string{"a", "b", "c"}
	for i := 0; i < 500; i++ {
		var outcomes []models.ExecutionResult
		for _, n := range names {
			outcomes = append(outcomes, result(n, rng.Intn(2) == 0, rng.NormFloat64()))
		}
		score := g.Update(names[rng.Intn(len(names))], outcomes)
		require.GreaterOrEqual(t, score, 0.0)
		require.LessOrEqual(t, score, 1.0)
	}
	for _, s := range g.Snapshot() {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestGate_UpdateOnlyChangesNamedStrategy(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	g.LoadScores(map[string]float64{"a": 0.5, "b": 0.5})
	score := g.Update("a", []models.ExecutionResult{result("a", true, 1), result("b", true, 1)})
	assert.InDelta(t, 0.55, score, 1e-9)
	assert.Equal(t, 0.5, g.Score("b"))

	// a strategy without its own result follows the ensemble
	score = g.Update("c", []models.ExecutionResult{result("a", true, 1)})
	assert.InDelta(t, 0.55, score, 1e-9)
}

func TestGate_LoadScoresClamps(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	g.LoadScores(map[string]float64{"hi": 1.7, "lo": -3})
	assert.Equal(t, 1.0, g.Score("hi"))
	assert.Equal(t, 0.0, g.Score("lo"))
	assert.Equal(t, map[string]float64{"hi": 1, "lo": 0}, g.Snapshot())
}

type fixedPolicy struct{ value float64 }

func (p fixedPolicy) Propose(current map[string]float64, _ []models.ExecutionResult, _ map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(current))
	for name := range current {
		out[name] = p.value
	}
	return out
}

func TestGate_PluggablePolicyIsClamped(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, fixedPolicy{value: 4})
	proposed := g.Propose([]models.ExecutionResult{result("a", true, 0)})
	assert.Equal(t, 1.0, proposed["a"])
}

func TestGate_ConcurrentReaders(t *testing.T) {
	g := NewGate(models.ConfidenceConfig{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = g.IsEligible("a")
				g.Commit(g.Propose([]models.ExecutionResult{result("a", true, 0.01)}))
			}
		}()
	}
	wg.Wait()
	s := g.Score("a")
	assert.Greater(t, s, 0.5)
	assert.LessOrEqual(t, s, 1.0)
}
