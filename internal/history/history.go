// Package history records successful layer loads in DuckDB.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeblew999/plat-fra/internal/controller"
	"github.com/joeblew999/plat-fra/internal/feature"
)

const schema = `CREATE TABLE IF NOT EXISTS loads (
	loaded_at  TIMESTAMP NOT NULL,
	filters    VARCHAR NOT NULL,
	total      INTEGER NOT NULL,
	categories VARCHAR NOT NULL
)`

// Entry is one recorded load.
type Entry struct {
	LoadedAt   time.Time                `json:"loaded_at" doc:"When the layers were replaced"`
	Filters    map[string]string        `json:"filters" doc:"Filter snapshot of the load"`
	Total      int                      `json:"total" doc:"Total number of features"`
	Categories map[feature.Category]int `json:"categories" doc:"Feature count per category"`
}

// Store implements controller.Recorder on top of a DuckDB connection.
type Store struct {
	db *sql.DB
}

var _ controller.Recorder = (*Store)(nil)

// New creates the loads table if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating loads table: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores a load summary.
func (s *Store) Record(ctx context.Context, sum controller.Summary) error {
	filters, err := json.Marshal(sum.Filters)
	if err != nil {
		return err
	}
	cats, err := json.Marshal(sum.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO loads (loaded_at, filters, total, categories) VALUES (?, ?, ?, ?)",
		sum.LoadedAt, string(filters), sum.Total, string(cats))
	if err != nil {
		return fmt.Errorf("recording load: %w", err)
	}
	return nil
}

// Count returns the number of recorded loads.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM loads").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting loads: %w", err)
	}
	return n, nil
}

// Recent returns up to limit loads after skipping offset, most recent first.
func (s *Store) Recent(ctx context.Context, offset, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	offset = max(offset, 0)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT loaded_at, filters, total, categories FROM loads ORDER BY loaded_at DESC LIMIT %d OFFSET %d", limit, offset))
	if err != nil {
		return nil, fmt.Errorf("querying loads: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e             Entry
			filters, cats string
		)
		if err := rows.Scan(&e.LoadedAt, &filters, &e.Total, &cats); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(filters), &e.Filters); err != nil {
			return nil, fmt.Errorf("decoding filters: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &e.Categories); err != nil {
			return nil, fmt.Errorf("decoding categories: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
