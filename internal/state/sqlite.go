package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/themis-legal/themis/pkg/models"
)

// SQLiteRepository persists the State aggregate in an SQLite database.
// Plans and execution records are stored as JSON documents keyed by plan
// ID, one row each.
type SQLiteRepository struct {
	conn *sql.DB
	path string
}

// DefaultDBPath returns the default database location under the XDG data
// directory.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "themis", "themis.db")
}

// OpenSQLite opens (creating if necessary) the database at path. Parent
// directories are created, WAL mode is enabled for concurrent reads, and
// the schema is migrated.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	repo := &SQLiteRepository{conn: conn, path: path}
	if err := repo.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

// Path returns the database file location.
func (r *SQLiteRepository) Path() string {
	return r.path
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		plan_id    TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS executions (
		plan_id    TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	if _, err := r.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// LoadState reads every plan and execution record into a fresh aggregate.
func (r *SQLiteRepository) LoadState() (*State, error) {
	state := NewState()

	rows, err := r.conn.Query("SELECT plan_id, document FROM plans")
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var planID, doc string
		if err := rows.Scan(&planID, &doc); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		var plan models.Plan
		if err := json.Unmarshal([]byte(doc), &plan); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", planID, err)
		}
		state.RememberPlan(planID, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}

	execRows, err := r.conn.Query("SELECT plan_id, document FROM executions")
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	defer execRows.Close()
	for execRows.Next() {
		var planID, doc string
		if err := execRows.Scan(&planID, &doc); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		var record models.ExecutionRecord
		if err := json.Unmarshal([]byte(doc), &record); err != nil {
			return nil, fmt.Errorf("decode execution %s: %w", planID, err)
		}
		state.RememberExecution(planID, &record)
	}
	if err := execRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}

	return state, nil
}

// SaveState replaces the persisted aggregate with the given one inside a
// single transaction.
func (r *SQLiteRepository) SaveState(state *State) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.Exec("DELETE FROM plans"); err != nil {
		return fmt.Errorf("clear plans: %w", err)
	}
	for planID, plan := range state.Plans() {
		doc, err := json.Marshal(plan)
		if err != nil {
			return fmt.Errorf("encode plan %s: %w", planID, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO plans (plan_id, document, updated_at) VALUES (?, ?, ?)",
			planID, string(doc), now,
		); err != nil {
			return fmt.Errorf("insert plan %s: %w", planID, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM executions"); err != nil {
		return fmt.Errorf("clear executions: %w", err)
	}
	for planID, record := range state.Executions() {
		doc, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode execution %s: %w", planID, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO executions (plan_id, document, updated_at) VALUES (?, ?, ?)",
			planID, string(doc), now,
		); err != nil {
			return fmt.Errorf("insert execution %s: %w", planID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Compile-time verification that both backends satisfy the Repository
// interface.
var (
	_ Repository = (*SQLiteRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
