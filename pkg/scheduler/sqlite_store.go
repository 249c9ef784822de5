package scheduler

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	cfg StoreConfig
}

// StoreConfig holds SQLite store configuration. The pool fields fall
// back to defaults when zero.
type StoreConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection is alive.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Put performs the compare-and-swap write: move the pointer row only if
// its latest version still equals task.Version, and append the snapshot
// in the same transaction. It returns the stored snapshot.
func (s *SQLiteStore) Put(ctx context.Context, task *Task) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	next := task.Version + 1
	workflow := workflowValue(task.Workflow)

	if task.Version == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (name, version, latest, schedule, workflow, active, created_at, updated_at)
			VALUES (?, 0, ?, ?, ?, ?, ?, ?)
		`, task.Name, next, task.Schedule, workflow, task.Active, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return nil, fmt.Errorf("task %s already exists: %w", task.Name, ErrVersionConflict)
			}
			return nil, fmt.Errorf("failed to create task %s: %w", task.Name, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET latest = ?, schedule = ?, workflow = ?, active = ?, updated_at = ?
			WHERE name = ? AND version = 0 AND latest = ?
		`, next, task.Schedule, workflow, task.Active, task.UpdatedAt, task.Name, task.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to update task %s: %w", task.Name, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read update result for %s: %w", task.Name, err)
		}
		if rows == 0 {
			return nil, fmt.Errorf("task %s is not at version %d: %w", task.Name, task.Version, ErrVersionConflict)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (name, version, latest, schedule, workflow, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.Name, next, next, task.Schedule, workflow, task.Active, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot task %s: %w", task.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task %s: %w", task.Name, err)
	}

	stored := *task
	stored.Version = next
	return &stored, nil
}

// Latest returns the newest version of the named task.
func (s *SQLiteStore) Latest(ctx context.Context, name string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, latest, schedule, workflow, active, created_at, updated_at
		FROM tasks
		WHERE name = ? AND version = 0
	`, name)
	return scanTask(row, name)
}

// Version returns one historical snapshot of the named task. Version 0
// is the pointer row and resolves to the latest snapshot.
func (s *SQLiteStore) Version(ctx context.Context, name string, version int) (*Task, error) {
	if version == 0 {
		return s.Latest(ctx, name)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT name, version, schedule, workflow, active, created_at, updated_at
		FROM tasks
		WHERE name = ? AND version = ?
	`, name, version)
	return scanTask(row, name)
}

// Delete removes the pointer row and every snapshot of the named task.
func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %s: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result for %s: %w", name, err)
	}
	return rows > 0, nil
}

// Names scans the whole versioned table page by page and reports each
// task name once, sorted.
func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	const pageSize = 100

	seen := make(map[string]bool)
	var names []string
	for offset := 0; ; offset += pageSize {
		rows, err := s.db.QueryContext(ctx, `
			SELECT name FROM tasks ORDER BY name, version LIMIT ? OFFSET ?
		`, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}

		count := 0
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan task name: %w", err)
			}
			count++
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		_ = rows.Close()

		if count < pageSize {
			return names, nil
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, name string) (*Task, error) {
	task := &Task{}
	var workflow sql.NullString
	err := row.Scan(
		&task.Name,
		&task.Version,
		&task.Schedule,
		&workflow,
		&task.Active,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", name, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", name, err)
	}
	if workflow.Valid && workflow.String != "" {
		task.Workflow = json.RawMessage(workflow.String)
	}
	// The invocation identifier is never stored: every materialized
	// task carries a fresh one.
	task.NextInvocationID = NewInvocationID(task.Name)
	return task, nil
}

func workflowValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
