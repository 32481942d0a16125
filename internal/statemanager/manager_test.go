package statemanager

import (
	"adaptive-agent-go/internal/models"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockStateRepository is a mock implementation of the StateRepository interface for testing.
type mockStateRepository struct {
	sync.Mutex
	savedState   *models.CycleState
	savedParams  map[string]models.Params
	commitCalls  int
	loadState    *models.CycleState
	loadError    error
	commitError  error
	commitDelay  time.Duration
	commitDoneCh chan bool // Channel to signal when Commit is done
	entered      chan bool
}

func newMockStateRepository() *mockStateRepository {
	return &mockStateRepository{
		savedParams:  make(map[string]models.Params),
		commitDoneCh: make(chan bool, 64),
		entered:      make(chan bool, 64),
	}
}

func (m *mockStateRepository) Commit(state *models.CycleState, params map[string]models.Params) error {
	m.entered <- true
	if m.commitDelay > 0 {
		time.Sleep(m.commitDelay)
	}
	m.Lock()
	defer m.Unlock()
	m.commitCalls++
	defer func() { m.commitDoneCh <- true }()

	if m.commitError != nil {
		return m.commitError
	}
	if state != nil {
		m.savedState = state.Clone()
	}
	for name, p := range params {
		m.savedParams[name] = p.Clone()
	}
	return nil
}

func (m *mockStateRepository) SaveState(state *models.CycleState) error {
	return m.Commit(state, nil)
}

func (m *mockStateRepository) LoadState() (*models.CycleState, error) {
	m.Lock()
	defer m.Unlock()
	return m.loadState, m.loadError
}

func (m *mockStateRepository) GetStrategyParams(name string) (models.Params, error) {
	m.Lock()
	defer m.Unlock()
	return m.savedParams[name], nil
}

func (m *mockStateRepository) SaveStrategyParams(name string, params models.Params) error {
	return m.Commit(nil, map[string]models.Params{name: params})
}

func (m *mockStateRepository) LoadAllStrategyParams() (map[string]models.Params, error) {
	m.Lock()
	defer m.Unlock()
	out := make(map[string]models.Params, len(m.savedParams))
	for k, v := range m.savedParams {
		out[k] = v.Clone()
	}
	return out, nil
}

func (m *mockStateRepository) Close() error {
	return nil
}

func (m *mockStateRepository) getSavedState() *models.CycleState {
	m.Lock()
	defer m.Unlock()
	return m.savedState
}

func (m *mockStateRepository) calls() int {
	m.Lock()
	defer m.Unlock()
	return m.commitCalls
}

func cycleEvent(id string, beliefs map[string]float64) NormalizedEvent {
	return NormalizedEvent{
		Type:      CycleCompletedEvent,
		Timestamp: time.Now(),
		Data: CycleCompletedData{
			CycleID: id,
			Summary: models.Summary{Total: 3, Successful: 2, Failed: 1, TotalPnL: 0.03, WinRate: 66.7},
			Beliefs: beliefs,
		},
	}
}

// TestNewStateManager verifies that the StateManager is initialized correctly.
func TestNewStateManager(t *testing.T) {
	initial := models.NewCycleState()
	initial.ExecutionCount = 4
	sm := NewStateManager(initial, newMockStateRepository(), zap.NewNop())
	require.NotNil(t, sm, "StateManager should not be nil")

	snapshot := sm.GetStateSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, 4, snapshot.ExecutionCount)

	initial.ExecutionCount = 99
	assert.Equal(t, 4, sm.GetStateSnapshot().ExecutionCount, "manager owns its own copy")

	assert.NotNil(t, NewStateManager(nil, nil, zap.NewNop()).GetStateSnapshot())
}

func TestCycleCompletedEvent(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	state, err := sm.Commit(context.Background(), cycleEvent("c-1", map[string]float64{"zk-farmer": 0.55}))
	require.NoError(t, err)
	assert.Equal(t, 1, state.ExecutionCount)
	assert.Equal(t, uint64(1), state.Version)
	assert.Equal(t, "c-1", state.LastCycleID)
	assert.Equal(t, 0.55, state.BeliefScores["zk-farmer"])
	require.NotNil(t, state.LastExecution)
	assert.Nil(t, state.LastEvolution)

	saved := repo.getSavedState()
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.ExecutionCount)
	assert.Equal(t, 66.7, saved.LastSummary.WinRate)

	state, err = sm.Commit(context.Background(), cycleEvent("c-2", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, state.ExecutionCount)
	assert.Equal(t, 0.55, state.BeliefScores["zk-farmer"], "missing beliefs keep their value")
}

func TestCycleCompletedEvent_WithEvolution(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	ev := cycleEvent("c-1", nil)
	data := ev.Data.(CycleCompletedData)
	data.Evolved = true
	data.Params = map[string]models.Params{"signal-seeker": {"threshold": 0.02}}
	ev.Data = data

	state, err := sm.Commit(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, state.LastEvolution)
	assert.Equal(t, *state.LastExecution, *state.LastEvolution)

	params, err := repo.GetStrategyParams("signal-seeker")
	require.NoError(t, err)
	assert.Equal(t, 0.02, params["threshold"])
}

func TestEvolutionCompletedEvent(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	state, err := sm.Commit(context.Background(), NormalizedEvent{
		Type: EvolutionCompletedEvent,
		Data: EvolutionCompletedData{Params: map[string]models.Params{"zk-farmer": {"position_size": 0.02}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, state.ExecutionCount, "evolution does not count as a cycle")
	assert.NotNil(t, state.LastEvolution)
	params, _ := repo.GetStrategyParams("zk-farmer")
	assert.Equal(t, 0.02, params["position_size"])
}

// TestStateResetEvent tests the handling of a StateResetEvent.
func TestStateResetEvent(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	_, err := sm.Commit(context.Background(), cycleEvent("c-1", nil))
	require.NoError(t, err)

	reset := models.NewCycleState()
	reset.ExecutionCount = 42
	state, err := sm.Commit(context.Background(), NormalizedEvent{Type: StateResetEvent, Data: reset})
	require.NoError(t, err)
	assert.Equal(t, 42, state.ExecutionCount)
	assert.Equal(t, uint64(2), state.Version, "version keeps moving forward")
	assert.Equal(t, 42, repo.getSavedState().ExecutionCount)
}

func TestCommitFailure_LeavesStateUntouched(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	_, err := sm.Commit(context.Background(), cycleEvent("c-1", map[string]float64{"a": 0.6}))
	require.NoError(t, err)

	boom := errors.New("disk full")
	repo.Lock()
	repo.commitError = boom
	repo.Unlock()

	_, err = sm.Commit(context.Background(), cycleEvent("c-2", map[string]float64{"a": 0.1}))
	require.ErrorIs(t, err, boom)

	snapshot := sm.GetStateSnapshot()
	assert.Equal(t, 1, snapshot.ExecutionCount)
	assert.Equal(t, "c-1", snapshot.LastCycleID)
	assert.Equal(t, 0.6, snapshot.BeliefScores["a"])
	assert.Equal(t, uint64(1), snapshot.Version)
}

func TestCommit_BadEventData(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	_, err := sm.Commit(context.Background(), NormalizedEvent{Type: CycleCompletedEvent, Data: "nope"})
	assert.Error(t, err)
	_, err = sm.Commit(context.Background(), NormalizedEvent{Type: EventType(77)})
	assert.Error(t, err)
	assert.Equal(t, 0, repo.calls())
}

func TestCommit_SerializesConcurrentWriters(t *testing.T) {
	repo := newMockStateRepository()
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sm.Commit(context.Background(), cycleEvent("c", nil))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snapshot := sm.GetStateSnapshot()
	assert.Equal(t, writers, snapshot.ExecutionCount)
	assert.Equal(t, uint64(writers), snapshot.Version)
}

func TestCommit_AfterStop(t *testing.T) {
	sm := NewStateManager(nil, newMockStateRepository(), zap.NewNop())
	sm.Start()
	sm.Stop()
	sm.Stop() // idempotent

	_, err := sm.Commit(context.Background(), cycleEvent("c-1", nil))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestCommit_CanceledBeforeAccept(t *testing.T) {
	// never started: nobody takes the request
	sm := NewStateManager(nil, newMockStateRepository(), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sm.Commit(ctx, cycleEvent("c-1", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	sm.Stop()
}

func TestCommit_InFlightWriteCompletes(t *testing.T) {
	repo := newMockStateRepository()
	repo.commitDelay = 50 * time.Millisecond
	sm := NewStateManager(nil, repo, zap.NewNop())
	sm.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sm.Commit(ctx, cycleEvent("c-1", nil))
		done <- err
	}()

	// wait until the repository has been entered, then cancel and stop
	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("commit never reached the repository")
	}
	cancel()
	sm.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for in-flight commit")
	}
	assert.Equal(t, 1, repo.calls())
	assert.Equal(t, 1, sm.GetStateSnapshot().ExecutionCount)
}
