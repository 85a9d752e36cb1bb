package genai

import (
	"context"
	"sync"

	"github.com/vocalhire/interviewd/internal/models"
)

// MockScorer is an in-memory Scorer for tests. Errs are returned in order,
// one per call, before Result is served; this makes retry behavior easy to
// script.
type MockScorer struct {
	mu sync.Mutex

	Result *models.FeedbackResult
	Errs   []error

	Calls         int
	Conversations []string
}

// Compile-time check that MockScorer implements Scorer.
var _ Scorer = (*MockScorer)(nil)

// NewMockScorer creates a mock scorer returning the given result.
func NewMockScorer(result *models.FeedbackResult) *MockScorer {
	return &MockScorer{Result: result}
}

func (m *MockScorer) ScoreInterview(ctx context.Context, conversation string) (*models.FeedbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Conversations = append(m.Conversations, conversation)
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		return nil, err
	}
	return m.Result, nil
}

// CallCount returns how many times the scorer was invoked.
func (m *MockScorer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
