package statemanager

import (
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/persistence"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Commit after Stop.
var ErrStopped = errors.New("state manager stopped")

// EventType defines the type of a normalized event
type EventType int

const (
	CycleCompletedEvent EventType = iota
	EvolutionCompletedEvent
	StateResetEvent
)

func (t EventType) String() string {
	switch t {
	case CycleCompletedEvent:
		return "cycle_completed"
	case EvolutionCompletedEvent:
		return "evolution_completed"
	case StateResetEvent:
		return "state_reset"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// NormalizedEvent is a standardized internal representation of an event
type NormalizedEvent struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CycleCompletedData closes one non-aborted cycle: the counter moves by one and
// the beliefs, summary and any adopted parameters are written together.
type CycleCompletedData struct {
	CycleID string
	Summary models.Summary
	Beliefs map[string]float64
	Params  map[string]models.Params
	Evolved bool
}

// EvolutionCompletedData is the commit point of an out-of-band evolution run.
type EvolutionCompletedData struct {
	Params map[string]models.Params
}

type commitRequest struct {
	event NormalizedEvent
	reply chan commitReply
}

type commitReply struct {
	state *models.CycleState
	err   error
}

// StateManager is responsible for all state mutations and persistence.
// It ensures that all state changes are processed serially.
type StateManager struct {
	mu    sync.RWMutex
	state *models.CycleState

	repo         persistence.StateRepository
	eventChannel chan commitRequest
	stopChan     chan struct{}
	doneChan     chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
	started      atomic.Bool
	logger       *zap.Logger
}

// NewStateManager creates a new StateManager. A nil initialState starts from zero.
func NewStateManager(initialState *models.CycleState, repo persistence.StateRepository, logger *zap.Logger) *StateManager {
	if initialState == nil {
		initialState = models.NewCycleState()
	}
	return &StateManager{
		state: initialState.Clone(),
		repo:  repo,
		// Unbuffered: a request is either taken by the loop, which then always
		// replies, or never enqueued at all.
		eventChannel: make(chan commitRequest),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		logger:       logger,
	}
}

// Start begins the state manager's event processing loop.
func (sm *StateManager) Start() {
	sm.startOnce.Do(func() {
		sm.started.Store(true)
		go sm.eventLoop()
		sm.logger.Sugar().Info("StateManager started.")
	})
}

// Stop gracefully shuts down the StateManager. A commit already taken by the
// loop finishes before Stop returns.
func (sm *StateManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
		if sm.started.Load() {
			<-sm.doneChan
		}
		sm.logger.Sugar().Info("StateManager stopped.")
	})
}

// Commit hands an event to the writer loop and waits for the durable result.
// ctx bounds only the wait for the loop to accept the event; once accepted the
// write runs to completion regardless of ctx.
func (sm *StateManager) Commit(ctx context.Context, event NormalizedEvent) (*models.CycleState, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	req := commitRequest{event: event, reply: make(chan commitReply, 1)}

	select {
	case <-sm.stopChan:
		return nil, ErrStopped
	default:
	}

	select {
	case sm.eventChannel <- req:
	case <-sm.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rep := <-req.reply
	return rep.state, rep.err
}

// GetStateSnapshot returns a deep copy of the current state for safe, concurrent reading.
func (sm *StateManager) GetStateSnapshot() *models.CycleState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state.Clone()
}

// eventLoop is the core processing loop that handles all incoming events serially.
func (sm *StateManager) eventLoop() {
	defer close(sm.doneChan)
	for {
		select {
		case req := <-sm.eventChannel:
			state, err := sm.processEvent(req.event)
			req.reply <- commitReply{state: state, err: err}
		case <-sm.stopChan:
			return
		}
	}
}

// processEvent builds the next state from a copy, persists it and only then
// swaps it in. A failed write leaves the in-memory state untouched.
func (sm *StateManager) processEvent(event NormalizedEvent) (*models.CycleState, error) {
	sm.mu.RLock()
	next := sm.state.Clone()
	sm.mu.RUnlock()

	var params map[string]models.Params

	switch event.Type {
	case CycleCompletedEvent:
		data, ok := event.Data.(CycleCompletedData)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected data type %T", event.Type, event.Data)
		}
		ts := event.Timestamp
		next.ExecutionCount++
		next.LastExecution = &ts
		next.LastCycleID = data.CycleID
		next.LastSummary = data.Summary
		for name, score := range data.Beliefs {
			next.BeliefScores[name] = score
		}
		if data.Evolved {
			next.LastEvolution = &ts
		}
		params = data.Params
	case EvolutionCompletedEvent:
		data, ok := event.Data.(EvolutionCompletedData)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected data type %T", event.Type, event.Data)
		}
		ts := event.Timestamp
		next.LastEvolution = &ts
		params = data.Params
	case StateResetEvent:
		newState, ok := event.Data.(*models.CycleState)
		if !ok || newState == nil {
			return nil, fmt.Errorf("%s: unexpected data type %T", event.Type, event.Data)
		}
		version := next.Version
		next = newState.Clone()
		next.Version = version
		sm.logger.Sugar().Info("State has been reset.")
	default:
		return nil, fmt.Errorf("unknown event type %s", event.Type)
	}

	next.Version++
	next.UpdatedAt = event.Timestamp

	if sm.repo != nil {
		if err := sm.repo.Commit(next, params); err != nil {
			sm.logger.Sugar().Errorf("CRITICAL: Failed to save state: %v", err)
			return nil, fmt.Errorf("persist %s: %w", event.Type, err)
		}
	}

	sm.mu.Lock()
	sm.state = next
	sm.mu.Unlock()
	return next.Clone(), nil
}
