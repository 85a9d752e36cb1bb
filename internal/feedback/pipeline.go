// Package feedback implements the post-call scoring-and-persist job.
//
// The pipeline is triggered exactly once per session by the session state
// machine. Scoring failures are recovered internally with a default result;
// losing the candidate's attempt is worse than persisting a low-information
// score.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vocalhire/interviewd/internal/attempt"
	"github.com/vocalhire/interviewd/internal/genai"
	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/observability"
)

// DefaultRetryDelay is the backoff before the single scoring retry.
const DefaultRetryDelay = 2 * time.Second

// Pipeline renders, scores, and persists interview feedback.
type Pipeline struct {
	scorer     genai.Scorer
	gatekeeper *attempt.Gatekeeper
	retryDelay time.Duration
}

// NewPipeline creates a feedback pipeline.
func NewPipeline(scorer genai.Scorer, gatekeeper *attempt.Gatekeeper) *Pipeline {
	return &Pipeline{
		scorer:     scorer,
		gatekeeper: gatekeeper,
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetryDelay overrides the retry backoff. Used by tests.
func (p *Pipeline) WithRetryDelay(d time.Duration) *Pipeline {
	p.retryDelay = d
	return p
}

// Generate validates the interview identity and produces a feedback result
// for the rendered conversation. The scoring service is called at most
// twice; if both calls fail the default fallback result is returned and the
// pipeline proceeds rather than losing the attempt. Only a missing identity
// aborts, before the scoring service is ever contacted.
func (p *Pipeline) Generate(ctx context.Context, ictx models.InterviewContext, conversation string) (*models.FeedbackResult, error) {
	if !ictx.HasIdentity() {
		slog.Error("Pipeline Generate aborted, identity fields missing", "interviewID", ictx.InterviewID)
		return nil, models.ErrMissingContext
	}

	result, err := p.scorer.ScoreInterview(ctx, conversation)
	if err != nil {
		observability.FeedbackRequest("error")
		slog.Warn("Pipeline scoring failed, retrying once", "error", err, "interviewID", ictx.InterviewID)
		p.sleep(ctx)
		result, err = p.scorer.ScoreInterview(ctx, conversation)
	}
	if err != nil {
		observability.FeedbackRequest("error")
		observability.FeedbackFallback()
		slog.Warn("Pipeline scoring failed twice, using fallback feedback", "error", err, "interviewID", ictx.InterviewID)
		return models.DefaultFeedback(), nil
	}

	observability.FeedbackRequest("ok")
	return result, nil
}

// Persist records the attempt together with its feedback. Losing the unique
// insert race is a logged warning, not a failure: the invariant matters more
// than the second writer's data. A genuine persistence failure is retried
// once, then surfaced as models.ErrPersistenceFailed for operational
// alerting; the candidate experience is already complete either way.
func (p *Pipeline) Persist(ctx context.Context, ictx models.InterviewContext, result *models.FeedbackResult) error {
	_, err := p.gatekeeper.RecordAttempt(ctx, ictx, *result)
	if errors.Is(err, models.ErrPersistenceFailed) {
		slog.Warn("Pipeline persist failed, retrying once", "error", err, "interviewID", ictx.InterviewID)
		p.sleep(ctx)
		_, err = p.gatekeeper.RecordAttempt(ctx, ictx, *result)
	}

	switch {
	case err == nil:
		observability.AttemptRecorded()
		return nil
	case errors.Is(err, models.ErrDuplicateAttempt):
		observability.DuplicateAttempt()
		slog.Warn("Pipeline discarding feedback, another attempt won the race",
			"interviewID", ictx.InterviewID, "candidateEmail", ictx.CandidateEmail)
		return nil
	default:
		slog.Error("Pipeline persist failed after retry, attempt lost",
			"error", err, "interviewID", ictx.InterviewID, "candidateEmail", ictx.CandidateEmail)
		return err
	}
}

func (p *Pipeline) sleep(ctx context.Context) {
	select {
	case <-time.After(p.retryDelay):
	case <-ctx.Done():
	}
}
