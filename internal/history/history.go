// Package history keeps a local log of completed predictions
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kartoza/antiox-predictor/internal/predict"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultLimit caps List when no limit is given
const DefaultLimit = 50

// ErrNotFound is returned when an entry does not exist
var ErrNotFound = errors.New("prediction not found")

// Entry is one completed prediction
type Entry struct {
	ID         string
	CreatedAt  time.Time
	Request    predict.Request
	Prediction float64
}

// Display renders the stored prediction with two decimals
func (e Entry) Display() string {
	return predict.FormatPrediction(e.Prediction)
}

// Store manages the sqlite history database
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `CREATE TABLE IF NOT EXISTS predictions (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	r          REAL NOT NULL,
	g          REAL NOT NULL,
	b          REAL NOT NULL,
	brix       REAL NOT NULL,
	hardness   REAL NOT NULL,
	prediction REAL NOT NULL
)`

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Add stores a completed prediction and returns the new entry
func (s *Store) Add(ctx context.Context, req predict.Request, result predict.Result) (Entry, error) {
	entry := Entry{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Request:    req,
		Prediction: result.Value,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, created_at, r, g, b, brix, hardness, prediction)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt.UnixNano(),
		req.R, req.G, req.B, req.Brix, req.Hardness, result.Value,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert prediction: %w", err)
	}
	return entry, nil
}

// Record satisfies form.Recorder
func (s *Store) Record(ctx context.Context, req predict.Request, result predict.Result) error {
	_, err := s.Add(ctx, req, result)
	return err
}

// List returns the most recent entries, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, r, g, b, brix, hardness, prediction
		 FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return entries, nil
}

// Get retrieves an entry by ID
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, r, g, b, brix, hardness, prediction
		 FROM predictions WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, err
}

// Clear deletes every entry and reports how many were removed
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM predictions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear predictions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		createdAt int64
	)
	err := row.Scan(&entry.ID, &createdAt,
		&entry.Request.R, &entry.Request.G, &entry.Request.B,
		&entry.Request.Brix, &entry.Request.Hardness, &entry.Prediction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to scan prediction: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	return entry, nil
}
