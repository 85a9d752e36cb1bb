package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/store"
)

func TestNewTestServerServesHealth(t *testing.T) {
	srv := NewTestServer()

	req := CreateHTTPRequest(t, http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	AssertHTTPStatus(t, http.StatusOK, rr.Code, "health endpoint")
}

func TestNewTestServerCreatesSessions(t *testing.T) {
	srv := NewTestServer()

	req := CreateHTTPRequest(t, http.MethodPost, "/sessions", SampleInterviewContext())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	AssertHTTPStatus(t, http.StatusCreated, rr.Code, "session creation")
	response := AssertJSONResponse(t, rr, models.APIStatusOK)
	if response["result"] == nil {
		t.Error("session creation should return a snapshot")
	}
}

func TestAttemptHelpers(t *testing.T) {
	repo := store.NewInMemoryStore()
	rec := SampleAttempt()
	if err := repo.InsertAttempt(rec); err != nil {
		t.Fatalf("failed to insert sample attempt: %v", err)
	}
	AssertAttemptExists(t, repo, rec.InterviewID, rec.CandidateEmail, "sample attempt")
}

func TestJSONHelpers(t *testing.T) {
	fb := SampleFeedback()
	data := MustMarshalJSON(t, fb)

	var decoded models.FeedbackResult
	MustUnmarshalJSON(t, data, &decoded)
	if decoded.Recommendation != fb.Recommendation {
		t.Errorf("round-tripped recommendation = %q, want %q", decoded.Recommendation, fb.Recommendation)
	}
}
