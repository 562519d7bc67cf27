// Package state persists per-candidate migration outcomes in SQLite so an
// interrupted run can resume without refetching what it already archived.
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Outcome is the terminal state of one candidate.
type Outcome string

const (
	OutcomeArchived Outcome = "archived"
	OutcomeFailed   Outcome = "failed"
)

// Record is one candidate's ledger row, keyed by normalized URL.
type Record struct {
	NormalizedURL string
	SourceURL     string
	Outcome       Outcome
	// FailureKind is set only for failed candidates.
	FailureKind string
	// Filename, Title, and PublishDate are set only for archived
	// candidates; they carry what the index needs so it can be rebuilt
	// across resume runs without reparsing documents.
	Filename    string
	Title       string
	PublishDate time.Time
	RunID       uuid.UUID
	RecordedAt  time.Time
}

// Store manages the migration ledger using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the ledger at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the ledger table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		normalized_url TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		failure_kind TEXT,
		filename TEXT,
		title TEXT,
		publish_date TEXT,
		run_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts one candidate outcome. A later run overwrites an earlier
// verdict for the same normalized URL, so a previously failed candidate
// can graduate to archived on retry.
func (s *Store) Record(rec Record) error {
	query := `
		INSERT OR REPLACE INTO candidates (
			normalized_url, source_url, outcome, failure_kind,
			filename, title, publish_date, run_id, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var publishDate any
	if !rec.PublishDate.IsZero() {
		publishDate = rec.PublishDate.Format(time.RFC3339)
	}

	_, err := s.db.Exec(query,
		rec.NormalizedURL,
		rec.SourceURL,
		string(rec.Outcome),
		nullable(rec.FailureKind),
		nullable(rec.Filename),
		nullable(rec.Title),
		publishDate,
		rec.RunID.String(),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record candidate: %w", err)
	}
	return nil
}

// Archived returns the set of normalized URLs already archived, for resume
// runs. Failed candidates are not in the set: they get another chance.
func (s *Store) Archived() (map[string]bool, error) {
	rows, err := s.db.Query(
		"SELECT normalized_url FROM candidates WHERE outcome = ?",
		string(OutcomeArchived),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived candidates: %w", err)
	}
	defer rows.Close()

	archived := map[string]bool{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		archived[url] = true
	}
	return archived, rows.Err()
}

// ArchivedRecords returns the full ledger rows of every archived
// candidate, so the index can be rebuilt across runs.
func (s *Store) ArchivedRecords() ([]Record, error) {
	query := `
		SELECT normalized_url, source_url, outcome, failure_kind,
		       filename, title, publish_date, run_id, recorded_at
		FROM candidates
		WHERE outcome = ?
		ORDER BY recorded_at
	`

	rows, err := s.db.Query(query, string(OutcomeArchived))
	if err != nil {
		return nil, fmt.Errorf("failed to query archived records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Get retrieves one candidate's record, or nil when it was never seen.
func (s *Store) Get(normalizedURL string) (*Record, error) {
	query := `
		SELECT normalized_url, source_url, outcome, failure_kind,
		       filename, title, publish_date, run_id, recorded_at
		FROM candidates
		WHERE normalized_url = ?
	`

	rec, err := scanRecord(s.db.QueryRow(query, normalizedURL).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// scanRecord reads one ledger row through scan, shared by the single-row
// and multi-row queries.
func scanRecord(scan func(...any) error) (*Record, error) {
	var rec Record
	var outcome, runIDStr, recordedAtStr string
	var failureKind, filename, title, publishDateStr sql.NullString

	err := scan(
		&rec.NormalizedURL, &rec.SourceURL, &outcome,
		&failureKind, &filename, &title, &publishDateStr,
		&runIDStr, &recordedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}

	rec.Outcome = Outcome(outcome)
	if failureKind.Valid {
		rec.FailureKind = failureKind.String
	}
	if filename.Valid {
		rec.Filename = filename.String
	}
	if title.Valid {
		rec.Title = title.String
	}
	if publishDateStr.Valid {
		rec.PublishDate, _ = time.Parse(time.RFC3339, publishDateStr.String)
	}
	rec.RunID, _ = uuid.Parse(runIDStr)
	rec.RecordedAt, _ = time.Parse(time.RFC3339, recordedAtStr)

	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
