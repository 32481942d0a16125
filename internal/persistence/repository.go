package persistence

import (
	"adaptive-agent-go/internal/models"
	"errors"
)

// ErrVersionConflict is returned when a write is based on a stale version of the state.
var ErrVersionConflict = errors.New("state version conflict")

// StateRepository defines the interface for state persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
//
// Writes of the cycle state are version checked: a state with Version n is
// accepted only when the stored state has Version n-1 (or is absent and n is 1).
type StateRepository interface {
	// LoadState loads the cycle state from storage.
	// If no state is found, it should return (nil, nil).
	LoadState() (*models.CycleState, error)

	// SaveState atomically saves the entire cycle state.
	SaveState(state *models.CycleState) error

	// GetStrategyParams returns the persisted parameters of one strategy, or (nil, nil).
	GetStrategyParams(name string) (models.Params, error)

	// SaveStrategyParams persists the parameters of one strategy.
	SaveStrategyParams(name string, params models.Params) error

	// LoadAllStrategyParams returns every persisted parameter set keyed by strategy name.
	LoadAllStrategyParams() (map[string]models.Params, error)

	// Commit writes the state and the given parameter sets in one transaction.
	// state may be nil to write parameters only.
	Commit(state *models.CycleState, params map[string]models.Params) error

	// Close gracefully closes the connection to the database.
	Close() error
}
