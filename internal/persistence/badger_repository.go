package persistence

import (
	"adaptive-agent-go/internal/models"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

const (
	stateKey          = "cycle_state"
	strategyKeyPrefix = "strategy_params/"
)

// badgerRepository is the BadgerDB implementation of the StateRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
// With inMemory set, dbPath is ignored and nothing touches the disk.
func NewBadgerRepository(dbPath string, inMemory bool) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Disable Badger's own logging to keep our app's logs clean.
	// Errors will still be returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dbPath, err)
	}
	return &badgerRepository{db: db}, nil
}

// LoadState loads the cycle state from storage.
// If the state key is not found, it returns (nil, nil) to indicate no state is present.
func (r *badgerRepository) LoadState() (*models.CycleState, error) {
	var state *models.CycleState
	err := r.db.View(func(txn *badger.Txn) error {
		s, err := readState(txn)
		state = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SaveState atomically saves the entire cycle state after checking its version.
func (r *badgerRepository) SaveState(state *models.CycleState) error {
	return r.Commit(state, nil)
}

// GetStrategyParams returns (nil, nil) when the strategy has no persisted parameters.
func (r *badgerRepository) GetStrategyParams(name string) (models.Params, error) {
	var params models.Params
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(strategyKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &params)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return params, nil
}

// SaveStrategyParams persists one strategy's parameters.
func (r *badgerRepository) SaveStrategyParams(name string, params models.Params) error {
	return r.Commit(nil, map[string]models.Params{name: params})
}

// LoadAllStrategyParams scans every strategy parameter key.
func (r *badgerRepository) LoadAllStrategyParams() (map[string]models.Params, error) {
	out := make(map[string]models.Params)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(strategyKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), strategyKeyPrefix)
			var params models.Params
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &params)
			}); err != nil {
				return fmt.Errorf("decode params of %s: %w", name, err)
			}
			out[name] = params
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit writes the state and the parameter sets in a single transaction.
func (r *badgerRepository) Commit(state *models.CycleState, params map[string]models.Params) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if state != nil {
			stored, err := readState(txn)
			if err != nil {
				return err
			}
			var storedVersion uint64
			if stored != nil {
				storedVersion = stored.Version
			}
			if state.Version != storedVersion+1 {
				return fmt.Errorf("%w: stored %d, writing %d", ErrVersionConflict, storedVersion, state.Version)
			}
			data, err := json.Marshal(state)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(stateKey), data); err != nil {
				return err
			}
		}

		for name, p := range params {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode params of %s: %w", name, err)
			}
			if err := txn.Set([]byte(strategyKeyPrefix+name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrVersionConflict, err)
	}
	return err
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}

func readState(txn *badger.Txn) (*models.CycleState, error) {
	item, err := txn.Get([]byte(stateKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil // This is the expected "no state found" case.
	}
	if err != nil {
		return nil, err
	}

	var state models.CycleState
	err = item.Value(func(val []byte) error {
		if len(val) == 0 {
			return errors.New("state value is empty in database")
		}
		return json.Unmarshal(val, &state)
	})
	if err != nil {
		return nil, err
	}
	if state.BeliefScores == nil {
		state.BeliefScores = make(map[string]float64)
	}
	return &state, nil
}
