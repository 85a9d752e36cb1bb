// Package store provides storage backends for interviewd attempt records.
//
// The attempts table carries a unique constraint on (interview_id,
// candidate_email); that constraint, not any in-process check, is the source
// of truth for the one-attempt-per-candidate invariant.
package store

import (
	"sync"

	"github.com/vocalhire/interviewd/internal/models"
)

// AttemptRepo defines the persistence interface for interview attempts.
type AttemptRepo interface {
	// ExistsAttempt reports whether an attempt record already exists for the
	// (interviewID, candidateEmail) pair.
	ExistsAttempt(interviewID, candidateEmail string) (bool, error)

	// InsertAttempt atomically inserts a new attempt record. A uniqueness
	// violation returns models.ErrDuplicateAttempt; the insert is never an
	// upsert.
	InsertAttempt(rec models.AttemptRecord) error

	// GetAttempt returns the attempt record for the pair, or nil if none
	// exists.
	GetAttempt(interviewID, candidateEmail string) (*models.AttemptRecord, error)

	// Close releases the underlying storage resources.
	Close() error
}

// InMemoryStore is a map-backed AttemptRepo used by tests and local runs.
type InMemoryStore struct {
	mu       sync.Mutex
	attempts map[string]models.AttemptRecord
}

// Compile-time check that InMemoryStore implements AttemptRepo.
var _ AttemptRepo = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory attempt store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{attempts: make(map[string]models.AttemptRecord)}
}

func attemptKey(interviewID, candidateEmail string) string {
	return interviewID + "|" + candidateEmail
}

func (s *InMemoryStore) ExistsAttempt(interviewID, candidateEmail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attempts[attemptKey(interviewID, candidateEmail)]
	return ok, nil
}

func (s *InMemoryStore) InsertAttempt(rec models.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(rec.InterviewID, rec.CandidateEmail)
	if _, ok := s.attempts[key]; ok {
		return models.ErrDuplicateAttempt
	}
	s.attempts[key] = rec
	return nil
}

func (s *InMemoryStore) GetAttempt(interviewID, candidateEmail string) (*models.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[attemptKey(interviewID, candidateEmail)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) Close() error { return nil }
