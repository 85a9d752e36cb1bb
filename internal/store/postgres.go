// Package store provides storage backends for interviewd attempt records.
//
// This file implements the PostgreSQL-backed attempt store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/vocalhire/interviewd/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is an AttemptRepo backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements AttemptRepo.
var _ AttemptRepo = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ExistsAttempt(interviewID, candidateEmail string) (bool, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT interview_id FROM attempts WHERE interview_id = $1 AND candidate_email = $2`,
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

func (s *PostgresStore) InsertAttempt(rec models.AttemptRecord) error {
	ratingsJSON, err := json.Marshal(rec.Feedback.Ratings)
	if err != nil {
		return fmt.Errorf("marshal ratings failed: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO attempts (interview_id, candidate_email, candidate_name, job_title, ratings, summary, recommendation, recommendation_message, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (interview_id, candidate_email) DO NOTHING`,
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
	slog.Debug("PostgresStore InsertAttempt succeeded", "interviewID", rec.InterviewID, "candidateEmail", rec.CandidateEmail)
	return nil
}

func (s *PostgresStore) GetAttempt(interviewID, candidateEmail string) (*models.AttemptRecord, error) {
	row := s.db.QueryRow(
		`SELECT interview_id, candidate_email, candidate_name, job_title, ratings, summary, recommendation, recommendation_message, confidence, created_at
		 FROM attempts WHERE interview_id = $1 AND candidate_email = $2`,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
