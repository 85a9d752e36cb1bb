// Package attempt enforces the one-attempt-per-candidate business invariant.
//
// The Gatekeeper wraps the attempt store. Its pre-check is only an
// optimization to avoid running a full interview unnecessarily; because the
// check and the record are not a single transaction, the store's unique
// constraint is the true source of truth under concurrency.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/store"
)

// Gatekeeper checks and records interview attempts.
type Gatekeeper struct {
	repo store.AttemptRepo
}

// NewGatekeeper creates a Gatekeeper backed by the given attempt repo.
func NewGatekeeper(repo store.AttemptRepo) *Gatekeeper {
	slog.Debug("Creating attempt Gatekeeper")
	return &Gatekeeper{repo: repo}
}

// CheckAttempted reports whether an attempt record already exists for the
// (interviewID, candidateEmail) pair. Called once before a session may leave
// the idle state.
func (g *Gatekeeper) CheckAttempted(ctx context.Context, interviewID, candidateEmail string) (bool, error) {
	exists, err := g.repo.ExistsAttempt(interviewID, candidateEmail)
	if err != nil {
		slog.Error("Gatekeeper CheckAttempted failed", "error", err, "interviewID", interviewID, "candidateEmail", candidateEmail)
		return false, fmt.Errorf("attempt check failed: %w", err)
	}
	slog.Debug("Gatekeeper CheckAttempted", "interviewID", interviewID, "candidateEmail", candidateEmail, "attempted", exists)
	return exists, nil
}

// RecordAttempt persists the attempt together with its feedback in a single
// atomic insert. A uniqueness violation means another concurrent attempt won
// the race; it is surfaced as models.ErrDuplicateAttempt, which is
// success-of-invariant rather than a fatal error.
func (g *Gatekeeper) RecordAttempt(ctx context.Context, ictx models.InterviewContext, feedback models.FeedbackResult) (*models.AttemptRecord, error) {
	rec := models.AttemptRecord{
		InterviewID:    ictx.InterviewID,
		CandidateEmail: ictx.CandidateEmail,
		CandidateName:  ictx.CandidateName,
		JobTitle:       ictx.JobTitle,
		Feedback:       feedback,
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.repo.InsertAttempt(rec); err != nil {
		if errors.Is(err, models.ErrDuplicateAttempt) {
			slog.Warn("Gatekeeper RecordAttempt lost race, attempt already recorded", "interviewID", ictx.InterviewID, "candidateEmail", ictx.CandidateEmail)
			return nil, models.ErrDuplicateAttempt
		}
		slog.Error("Gatekeeper RecordAttempt failed", "error", err, "interviewID", ictx.InterviewID, "candidateEmail", ictx.CandidateEmail)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailed, err)
	}

	slog.Info("Gatekeeper RecordAttempt succeeded", "interviewID", ictx.InterviewID, "candidateEmail", ictx.CandidateEmail)
	return &rec, nil
}
