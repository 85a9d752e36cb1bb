// Package testutil provides common test utilities and helpers for interviewd tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vocalhire/interviewd/internal/api"
	"github.com/vocalhire/interviewd/internal/device"
	"github.com/vocalhire/interviewd/internal/genai"
	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/provider"
	"github.com/vocalhire/interviewd/internal/store"
)

// NewTestServer creates a test API server with in-memory dependencies. This
// centralizes the test server creation logic used across multiple test files.
func NewTestServer() *api.Server {
	scorer := genai.NewMockScorer(SampleFeedback())
	newProvider := func() provider.CallProvider { return provider.NewMockProvider() }
	newMedia := func() device.MediaAPI { return device.NewMockMediaAPI() }
	return api.NewServer(store.NewInMemoryStore(), scorer, newProvider, newMedia)
}

// SampleInterviewContext returns a valid interview context for tests.
func SampleInterviewContext() models.InterviewContext {
	return models.InterviewContext{
		InterviewID:     "iv-test",
		CandidateName:   "Test Candidate",
		CandidateEmail:  "candidate@example.com",
		JobTitle:        "Software Engineer",
		DurationMinutes: 30,
		QuestionList:    []string{"What is a goroutine?"},
	}
}

// SampleFeedback returns a positive feedback result for tests.
func SampleFeedback() *models.FeedbackResult {
	return &models.FeedbackResult{
		Ratings: map[string]int{
			"technicalSkills": 8,
			"communication":   7,
			"problemSolving":  8,
			"experience":      6,
		},
		Summary:               "Good overall performance.",
		Recommendation:        models.RecommendationYes,
		RecommendationMessage: "Proceed to the next round.",
		Confidence:            85,
	}
}

// SampleAttempt returns a recorded attempt for the sample interview context.
func SampleAttempt() models.AttemptRecord {
	ictx := SampleInterviewContext()
	return models.AttemptRecord{
		InterviewID:    ictx.InterviewID,
		CandidateEmail: ictx.CandidateEmail,
		CandidateName:  ictx.CandidateName,
		JobTitle:       ictx.JobTitle,
		Feedback:       *SampleFeedback(),
		CreatedAt:      time.Now().UTC(),
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response envelope and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// AssertAttemptExists fails the test if no attempt is recorded for the pair.
func AssertAttemptExists(t *testing.T, repo store.AttemptRepo, interviewID, candidateEmail, context string) {
	t.Helper()
	rec, err := repo.GetAttempt(interviewID, candidateEmail)
	if err != nil {
		t.Fatalf("%s: failed to get attempt: %v", context, err)
	}
	if rec == nil {
		t.Errorf("%s: expected attempt for (%s, %s), found none", context, interviewID, candidateEmail)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
