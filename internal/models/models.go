// Package models defines the core data structures for interviewd.
//
// It includes the interview context, transcript, feedback, and attempt types
// shared across modules.
package models

import (
	"strings"
	"time"
)

// Role identifies the speaker of a transcript entry.
type Role string

const (
	// RoleInterviewer is the AI interviewer side of the conversation.
	RoleInterviewer Role = "interviewer"
	// RoleCandidate is the human candidate side of the conversation.
	RoleCandidate Role = "candidate"
)

// IsValidRole checks if the given role is supported.
func IsValidRole(r Role) bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Recommendation is the hiring recommendation produced by the scorer.
type Recommendation string

const (
	RecommendationYes   Recommendation = "Yes"
	RecommendationNo    Recommendation = "No"
	RecommendationMaybe Recommendation = "Maybe"
)

// Validation constants for input validation
const (
	// MaxRatingValue is the upper bound for a single criterion rating.
	MaxRatingValue = 10
	// MaxConfidenceValue is the upper bound for scorer confidence.
	MaxConfidenceValue = 100
	// MaxQuestionCount bounds the number of interview questions accepted.
	MaxQuestionCount = 50
)

// InterviewContext is the immutable configuration captured at session
// creation. It is never mutated after the session starts.
type InterviewContext struct {
	InterviewID     string   `json:"interview_id"`
	CandidateName   string   `json:"candidate_name"`
	CandidateEmail  string   `json:"candidate_email"`
	JobTitle        string   `json:"job_title"`
	DurationMinutes int      `json:"duration_minutes"`
	QuestionList    []string `json:"question_list,omitempty"`
	AcceptResume    bool     `json:"accept_resume,omitempty"`
	ResumeRef       string   `json:"resume_ref,omitempty"`
}

// Validate checks the fields required to create a session.
func (c *InterviewContext) Validate() error {
	if strings.TrimSpace(c.InterviewID) == "" {
		return ErrEmptyInterviewID
	}
	if strings.TrimSpace(c.CandidateEmail) == "" {
		return ErrEmptyCandidateEmail
	}
	if strings.TrimSpace(c.CandidateName) == "" {
		return ErrEmptyCandidateName
	}
	if len(c.QuestionList) > MaxQuestionCount {
		return ErrTooManyQuestions
	}
	return nil
}

// HasIdentity reports whether the identity fields required by the feedback
// pipeline are all present.
func (c *InterviewContext) HasIdentity() bool {
	return strings.TrimSpace(c.InterviewID) != "" &&
		strings.TrimSpace(c.CandidateEmail) != "" &&
		strings.TrimSpace(c.CandidateName) != ""
}

// TranscriptEntry is a single utterance in the conversation log. Sequence is
// assignment order, not provider-supplied, since the provider may redeliver.
type TranscriptEntry struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Sequence int    `json:"sequence"`
}

// FeedbackResult is the scorer output persisted alongside an attempt.
type FeedbackResult struct {
	Ratings               map[string]int `json:"ratings"` // criterion -> 0..10
	Summary               string         `json:"summary"`
	Recommendation        Recommendation `json:"recommendation"`
	RecommendationMessage string         `json:"recommendation_message"`
	Confidence            int            `json:"confidence"` // 0..100
}

// ScoringCriteria is the fixed criterion set the scorer is asked to rate.
var ScoringCriteria = []string{"technicalSkills", "communication", "problemSolving", "experience"}

// DefaultFeedback returns the fallback result used when the scoring service
// cannot produce a usable response. The attempt is still persisted.
func DefaultFeedback() *FeedbackResult {
	ratings := make(map[string]int, len(ScoringCriteria))
	for _, c := range ScoringCriteria {
		ratings[c] = 0
	}
	return &FeedbackResult{
		Ratings:               ratings,
		Summary:               "Insufficient interview data was captured to evaluate this candidate.",
		Recommendation:        RecommendationNo,
		RecommendationMessage: "Not enough conversation was recorded to make a recommendation.",
		Confidence:            0,
	}
}

// AttemptRecord is the persisted proof that a candidate completed a given
// interview. Unique on (InterviewID, CandidateEmail); written only together
// with a FeedbackResult, never pre-created.
type AttemptRecord struct {
	InterviewID    string         `json:"interview_id"`
	CandidateEmail string         `json:"candidate_email"`
	CandidateName  string         `json:"candidate_name"`
	JobTitle       string         `json:"job_title,omitempty"`
	Feedback       FeedbackResult `json:"feedback"`
	CreatedAt      time.Time      `json:"created_at"`
}

// DeviceState holds the camera/microphone toggles. Orthogonal to
// SessionState; may change at any time, including before or after a call.
type DeviceState struct {
	CameraOn bool `json:"camera_on"`
	MicOn    bool `json:"mic_on"`
}
