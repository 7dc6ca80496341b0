// Package history keeps a local record of upload attempts. Records describe
// outcomes only; an interrupted upload is never resumed from them.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status is the outcome of an upload attempt
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Upload is one recorded attempt
type Upload struct {
	ID          string
	Project     string
	ReportFile  string
	Status      Status
	Message     string
	SuiteID     int
	RunID       int
	ResultCount int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns how long the attempt took
func (u *Upload) Duration() time.Duration {
	if u.FinishedAt.IsZero() || u.StartedAt.IsZero() {
		return 0
	}
	return u.FinishedAt.Sub(u.StartedAt)
}

// Store provides SQLite-backed upload history
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath, creating it and its directory if needed
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores an attempt, assigning it an ID when it has none
func (s *Store) Record(u *Upload) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`
		INSERT INTO uploads (id, project, report_file, status, message, suite_id, run_id, result_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		u.ID,
		u.Project,
		u.ReportFile,
		string(u.Status),
		u.Message,
		u.SuiteID,
		u.RunID,
		u.ResultCount,
		u.StartedAt,
		u.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID
func (s *Store) Get(id string) (*Upload, error) {
	row := s.db.QueryRow(`SELECT `+columns+` FROM uploads WHERE id = ?`, id)
	return scanUpload(row)
}

// ListOptions specifies filters for listing attempts
type ListOptions struct {
	Project string
	Status  Status
	Limit   int // all attempts when zero
}

// List returns attempts matching opts, newest first
func (s *Store) List(opts ListOptions) ([]*Upload, error) {
	query := `SELECT ` + columns + ` FROM uploads WHERE 1=1`
	var args []interface{}

	if opts.Project != "" {
		query += " AND project = ?"
		args = append(args, opts.Project)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY seq DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

const columns = `id, project, report_file, status, message, suite_id, run_id, result_count, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*Upload, error) {
	var u Upload
	var status string
	var message sql.NullString

	err := row.Scan(&u.ID, &u.Project, &u.ReportFile, &status, &message, &u.SuiteID, &u.RunID, &u.ResultCount, &u.StartedAt, &u.FinishedAt)
	if err != nil {
		return nil, err
	}

	u.Status = Status(status)
	if message.Valid {
		u.Message = message.String
	}
	return &u, nil
}
