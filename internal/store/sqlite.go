// Package store provides storage backends for interviewd attempt records.
//
// This file implements the SQLite-backed attempt store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vocalhire/interviewd/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is an AttemptRepo backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements AttemptRepo.
var _ AttemptRepo = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ExistsAttempt(interviewID, candidateEmail string) (bool, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT interview_id FROM attempts WHERE interview_id = ? AND candidate_email = ?`,
		interviewID, candidateEmail,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("attempt existence check failed: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) InsertAttempt(rec models.AttemptRecord) error {
	ratingsJSON, err := json.Marshal(rec.Feedback.Ratings)
	if err != nil {
		return fmt.Errorf("marshal ratings failed: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO attempts (interview_id, candidate_email, candidate_name, job_title, ratings, summary, recommendation, recommendation_message, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InterviewID, rec.CandidateEmail, rec.CandidateName, nilIfEmpty(rec.JobTitle),
		string(ratingsJSON), nilIfEmpty(rec.Feedback.Summary), string(rec.Feedback.Recommendation),
		nilIfEmpty(rec.Feedback.RecommendationMessage), rec.Feedback.Confidence, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert attempt rows affected check failed: %w", err)
	}
	if n == 0 {
		// Another writer holds the (interview_id, candidate_email) key.
		return models.ErrDuplicateAttempt
	}
	slog.Debug("SQLiteStore InsertAttempt succeeded", "interviewID", rec.InterviewID, "candidateEmail", rec.CandidateEmail)
	return nil
}

func (s *SQLiteStore) GetAttempt(interviewID, candidateEmail string) (*models.AttemptRecord, error) {
	row := s.db.QueryRow(
		`SELECT interview_id, candidate_email, candidate_name, job_title, ratings, summary, recommendation, recommendation_message, confidence, created_at
		 FROM attempts WHERE interview_id = ? AND candidate_email = ?`,
		interviewID, candidateEmail,
	)
	rec, err := scanAttemptRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt failed: %w", err)
	}
	return rec, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
