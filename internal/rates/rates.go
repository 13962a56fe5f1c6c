package rates

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps per-employee hourly pay rates in SQLite. An unset rate reads
// back as zero.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the rate database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open rates db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS staff_rates (
		staff_id TEXT PRIMARY KEY,
		hourly_rate REAL NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate rates db: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the hourly rate for staffID, zero when unset.
func (s *Store) Get(ctx context.Context, staffID string) (float64, error) {
	var rate float64
	err := s.db.QueryRowContext(ctx,
		"SELECT hourly_rate FROM staff_rates WHERE staff_id = ?", staffID,
	).Scan(&rate)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate for %s: %w", staffID, err)
	}
	return rate, nil
}

// GetMany returns rates for the given staff ids; unset ids are omitted.
func (s *Store) GetMany(ctx context.Context, staffIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(staffIDs))
	for _, id := range staffIDs {
		rate, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rate != 0 {
			out[id] = rate
		}
	}
	return out, nil
}

// Set upserts the hourly rate for staffID.
func (s *Store) Set(ctx context.Context, staffID string, rate float64) error {
	if staffID == "" {
		return fmt.Errorf("set rate: staff id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_rates (staff_id, hourly_rate, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(staff_id) DO UPDATE SET
			hourly_rate = excluded.hourly_rate,
			updated_at = excluded.updated_at`,
		staffID, rate, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set rate for %s: %w", staffID, err)
	}
	return nil
}

// PingContext reports store availability, used by readiness checks.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
