package storage

import (
	"adaptive-agent-go/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Import the sqlite driver
)

// ExecutionLog is the durable record of every strategy result and evolution run.
// It is append-only; nothing in the cycle reads it back except the evolution
// performance window and the status/report surfaces.
type ExecutionLog struct {
	db *sql.DB
}

// Performance aggregates a strategy's trades over a window.
// Holds and confidence-gated skips are not trades and are not counted.
type Performance struct {
	Strategy    string
	Executions  int
	Successful  int
	TotalProfit float64
	WinRate     float64 // percentage
}

// StrategyTotals are the lifetime counters kept per strategy.
type StrategyTotals struct {
	Strategy             string
	TotalExecutions      int
	SuccessfulExecutions int
	TotalProfit          float64
	LastExecuted         time.Time
}

// EvolutionRecord is one evolution run for one strategy.
type EvolutionRecord struct {
	Strategy        string
	OriginalID      string
	BestID          string
	Generation      int
	OriginalFitness float64
	BestFitness     float64
	Improvement     float64
	Adopted         bool
	CreatedAt       time.Time
}

// InitDB opens (and creates if needed) the sqlite database and its tables.
// ":memory:" gives a private in-memory database.
func InitDB(dataSourceName string) (*ExecutionLog, error) {
	if dataSourceName == "" {
		return nil, errors.New("database path is empty")
	}
	if dataSourceName != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dataSourceName), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps ":memory:" on one connection
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ExecutionLog{db: db}, nil
}

// createTables creates the necessary database tables if they don't exist.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			success INTEGER NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL,
			error TEXT NOT NULL,
			asset TEXT NOT NULL,
			amount REAL NOT NULL,
			price REAL NOT NULL,
			profit_loss REAL NOT NULL,
			belief_score REAL NOT NULL,
			duration_ms INTEGER NOT NULL,
			executed_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_strategy_time ON executions (strategy, executed_at);`,
		// Lifetime counters, one row per strategy.
		`CREATE TABLE IF NOT EXISTS strategies (
			name TEXT PRIMARY KEY,
			total_executions INTEGER NOT NULL DEFAULT 0,
			successful_executions INTEGER NOT NULL DEFAULT 0,
			total_profit REAL NOT NULL DEFAULT 0,
			last_executed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS evolutions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			original_id TEXT NOT NULL,
			best_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			original_fitness REAL NOT NULL,
			best_fitness REAL NOT NULL,
			improvement REAL NOT NULL,
			adopted INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying DB handle.
func (l *ExecutionLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// LogCycle appends every result of a cycle in one transaction.
func (l *ExecutionLog) LogCycle(ctx context.Context, cycleID string, results []models.ExecutionResult) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range results {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO executions (cycle_id, strategy, success, action, reason, error, asset, amount, price,
				profit_loss, belief_score, duration_ms, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, r.Strategy, boolToInt(r.Success), string(r.Action), string(r.Reason), r.Error, r.Asset,
			r.Amount, r.Price, r.ProfitLoss, r.BeliefScore, r.Duration.Milliseconds(), ts.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert execution of %s: %w", r.Strategy, err)
		}

		if !isTrade(r) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategies (name, total_executions, successful_executions, total_profit, last_executed)
			VALUES (?, 1, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				total_executions = total_executions + 1,
				successful_executions = successful_executions + excluded.successful_executions,
				total_profit = total_profit + excluded.total_profit,
				last_executed = excluded.last_executed`,
			r.Strategy, boolToInt(r.Success), r.ProfitLoss, ts.UnixMilli(),
		); err != nil {
			return fmt.Errorf("update totals of %s: %w", r.Strategy, err)
		}
	}
	return tx.Commit()
}

// GetRecentPerformance aggregates trades of the last windowDays days per strategy.
func (l *ExecutionLog) GetRecentPerformance(ctx context.Context, windowDays int) (map[string]Performance, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().Add(-time.Duration(windowDays) * 24 * time.Hour).UnixMilli()

	rows, err := l.db.QueryContext(ctx, `
		SELECT strategy, COUNT(*), COALESCE(SUM(success), 0), COALESCE(SUM(profit_loss), 0)
		FROM executions
		WHERE executed_at >= ? AND action != ? AND reason != ?
		GROUP BY strategy`,
		since, string(models.ActionHold), string(models.ReasonInsufficientConfidence))
	if err != nil {
		return nil, fmt.Errorf("query recent performance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Performance)
	for rows.Next() {
		var p Performance
		if err := rows.Scan(&p.Strategy, &p.Executions, &p.Successful, &p.TotalProfit); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		if p.Executions > 0 {
			p.WinRate = float64(p.Successful) / float64(p.Executions) * 100
		}
		out[p.Strategy] = p
	}
	return out, rows.Err()
}

// GetStrategyTotals returns the lifetime counters of every strategy that has traded.
func (l *ExecutionLog) GetStrategyTotals(ctx context.Context) ([]StrategyTotals, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT name, total_executions, successful_executions, total_profit, last_executed
		FROM strategies
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query strategy totals: %w", err)
	}
	defer rows.Close()

	var totals []StrategyTotals
	for rows.Next() {
		var t StrategyTotals
		var last int64
		if err := rows.Scan(&t.Strategy, &t.TotalExecutions, &t.SuccessfulExecutions, &t.TotalProfit, &last); err != nil {
			return nil, fmt.Errorf("scan strategy totals: %w", err)
		}
		t.LastExecuted = time.UnixMilli(last)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// RecordEvolution appends one evolution run.
func (l *ExecutionLog) RecordEvolution(ctx context.Context, rec EvolutionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO evolutions (strategy, original_id, best_id, generation, original_fitness, best_fitness,
			improvement, adopted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Strategy, rec.OriginalID, rec.BestID, rec.Generation, rec.OriginalFitness, rec.BestFitness,
		rec.Improvement, boolToInt(rec.Adopted), rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert evolution of %s: %w", rec.Strategy, err)
	}
	return nil
}

// RecentEvolutions returns the newest evolution runs first.
func (l *ExecutionLog) RecentEvolutions(ctx context.Context, limit int) ([]EvolutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT strategy, original_id, best_id, generation, original_fitness, best_fitness, improvement, adopted, created_at
		FROM evolutions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query evolutions: %w", err)
	}
	defer rows.Close()

	var records []EvolutionRecord
	for rows.Next() {
		var rec EvolutionRecord
		var adopted int
		var created int64
		if err := rows.Scan(&rec.Strategy, &rec.OriginalID, &rec.BestID, &rec.Generation, &rec.OriginalFitness,
			&rec.BestFitness, &rec.Improvement, &adopted, &created); err != nil {
			return nil, fmt.Errorf("scan evolution: %w", err)
		}
		rec.Adopted = adopted == 1
		rec.CreatedAt = time.UnixMilli(created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountExecutions returns the number of logged results, including holds and skips.
func (l *ExecutionLog) CountExecutions(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

func isTrade(r models.ExecutionResult) bool {
	return r.Action != models.ActionHold && r.Reason != models.ReasonInsufficientConfidence
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
