package persistence

import (
	"adaptive-agent-go/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) StateRepository {
	t.Helper()
	repo, err := NewBadgerRepository("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleState(version uint64) *models.CycleState {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.CycleState{
		Version:        version,
		ExecutionCount: 7,
		LastExecution:  &now,
		LastCycleID:    "c-7",
		LastSummary:    models.Summary{Total: 3, Successful: 2, Failed: 1, TotalPnL: 0.03, WinRate: 66.7},
		BeliefScores:   map[string]float64{"zk-farmer": 0.65, "signal-seeker": 0.4},
		UpdatedAt:      now,
	}
}

func TestLoadState_Empty(t *testing.T) {
	state, err := newRepo(t).LoadState()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	state := sampleState(1)
	require.NoError(t, repo.SaveState(state))

	loaded, err := repo.LoadState()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.ExecutionCount, loaded.ExecutionCount)
	assert.Equal(t, state.LastSummary, loaded.LastSummary)
	assert.Equal(t, state.BeliefScores, loaded.BeliefScores)
	assert.True(t, state.LastExecution.Equal(*loaded.LastExecution))
	assert.Nil(t, loaded.LastEvolution)
	assert.Equal(t, state.Version, loaded.Version)
}

func TestSaveState_Persistent(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewBadgerRepository(dir, false)
	require.NoError(t, err)
	require.NoError(t, repo.SaveState(sampleState(1)))
	require.NoError(t, repo.Close())

	reopened, err := NewBadgerRepository(dir, false)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.LoadState()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 7, loaded.ExecutionCount)
}

func TestSaveState_VersionCheck(t *testing.T) {
	repo := newRepo(t)
	assert.ErrorIs(t, repo.SaveState(sampleState(2)), ErrVersionConflict, "first write must be version 1")

	require.NoError(t, repo.SaveState(sampleState(1)))
	assert.ErrorIs(t, repo.SaveState(sampleState(1)), ErrVersionConflict, "stale write")
	require.NoError(t, repo.SaveState(sampleState(2)))

	loaded, err := repo.LoadState()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Version)
}

func TestStrategyParams(t *testing.T) {
	repo := newRepo(t)

	params, err := repo.GetStrategyParams("zk-farmer")
	require.NoError(t, err)
	assert.Nil(t, params)

	require.NoError(t, repo.SaveStrategyParams("zk-farmer", models.Params{"position_size": 0.01, "protocols": "zksync"}))
	require.NoError(t, repo.SaveStrategyParams("signal-seeker", models.Params{"threshold": 0.02}))

	params, err = repo.GetStrategyParams("zk-farmer")
	require.NoError(t, err)
	assert.Equal(t, models.Params{"position_size": 0.01, "protocols": "zksync"}, params)

	all, err := repo.LoadAllStrategyParams()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 0.02, all["signal-seeker"]["threshold"])
}

func TestCommit_AllOrNothing(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.SaveState(sampleState(1)))

	// stale state: neither the state nor the params are written
	err := repo.Commit(sampleState(1), map[string]models.Params{"zk-farmer": {"position_size": 0.09}})
	require.ErrorIs(t, err, ErrVersionConflict)
	params, err := repo.GetStrategyParams("zk-farmer")
	require.NoError(t, err)
	assert.Nil(t, params)

	next := sampleState(2)
	next.ExecutionCount = 8
	require.NoError(t, repo.Commit(next, map[string]models.Params{"zk-farmer": {"position_size": 0.09}}))
	loaded, err := repo.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.ExecutionCount)
	params, err = repo.GetStrategyParams("zk-farmer")
	require.NoError(t, err)
	assert.Equal(t, 0.09, params["position_size"])
}
