package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vocalhire/interviewd/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanAttemptRow scans an AttemptRecord from a single sql.Row.
func scanAttemptRow(row *sql.Row) (*models.AttemptRecord, error) {
	var rec models.AttemptRecord
	var jobTitle, summary, recommendationMessage sql.NullString
	var ratingsJSON, recommendation string
	err := row.Scan(
		&rec.InterviewID, &rec.CandidateEmail, &rec.CandidateName, &jobTitle,
		&ratingsJSON, &summary, &recommendation, &recommendationMessage,
		&rec.Feedback.Confidence, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.JobTitle = jobTitle.String
	rec.Feedback.Summary = summary.String
	rec.Feedback.Recommendation = models.Recommendation(recommendation)
	rec.Feedback.RecommendationMessage = recommendationMessage.String
	if err := json.Unmarshal([]byte(ratingsJSON), &rec.Feedback.Ratings); err != nil {
		return nil, fmt.Errorf("unmarshal ratings failed: %w", err)
	}
	return &rec, nil
}
