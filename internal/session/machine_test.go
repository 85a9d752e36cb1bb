package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vocalhire/interviewd/internal/attempt"
	"github.com/vocalhire/interviewd/internal/device"
	"github.com/vocalhire/interviewd/internal/feedback"
	"github.com/vocalhire/interviewd/internal/genai"
	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/provider"
	"github.com/vocalhire/interviewd/internal/store"
)

type fixture struct {
	machine  *Machine
	provider *provider.MockProvider
	scorer   *genai.MockScorer
	media    *device.MockMediaAPI
	repo     *store.InMemoryStore
}

func testInterviewContext() models.InterviewContext {
	return models.InterviewContext{
		InterviewID:     "iv-1",
		CandidateName:   "Ada Lovelace",
		CandidateEmail:  "ada@example.com",
		JobTitle:        "Backend Engineer",
		DurationMinutes: 30,
		QuestionList:    []string{"Describe a hard bug you fixed.", "How do goroutines communicate?"},
	}
}

func scoredFeedback() *models.FeedbackResult {
	return &models.FeedbackResult{
		Ratings:        map[string]int{"technicalSkills": 8, "communication": 7},
		Summary:        "Strong candidate.",
		Recommendation: models.RecommendationYes,
		Confidence:     90,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := store.NewInMemoryStore()
	gk := attempt.NewGatekeeper(repo)
	scorer := genai.NewMockScorer(scoredFeedback())
	mock := provider.NewMockProvider()
	media := device.NewMockMediaAPI()
	m := NewMachine(testInterviewContext(), Deps{
		Provider:   mock,
		Devices:    device.NewManager(media),
		Gatekeeper: gk,
		Pipeline:   feedback.NewPipeline(scorer, gk).WithRetryDelay(time.Millisecond),
	})
	return &fixture{machine: m, provider: mock, scorer: scorer, media: media, repo: repo}
}

func waitDone(t *testing.T, m *Machine) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for session, state=%s", m.State())
	}
}

func TestScenarioFullInterview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.machine.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if f.machine.State() != models.StateConnecting {
		t.Errorf("state after start = %s, want connecting", f.machine.State())
	}

	f.provider.EmitCallStart()
	f.provider.EmitMessage("interviewer", "Tell me about yourself.")
	f.provider.EmitMessage("candidate", "I build backend systems in Go.")
	f.provider.EmitMessage("interviewer", "What was your hardest bug?")
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	if got := f.machine.State(); got != models.StateFeedbackSaved {
		t.Errorf("final state = %s, want feedback_saved", got)
	}
	if got := len(f.machine.Transcript()); got != 3 {
		t.Errorf("transcript length = %d, want 3", got)
	}
	if f.scorer.CallCount() != 1 {
		t.Errorf("scoring service calls = %d, want 1", f.scorer.CallCount())
	}
	rec, err := f.repo.GetAttempt("iv-1", "ada@example.com")
	if err != nil || rec == nil {
		t.Fatalf("attempt not persisted: %v", err)
	}
	if fb, ok := f.machine.Feedback(); !ok || fb.Recommendation != models.RecommendationYes {
		t.Errorf("feedback = %+v ok=%v, want persisted Yes result", fb, ok)
	}
	if f.provider.StartCalls != 1 {
		t.Errorf("provider start calls = %d, want 1", f.provider.StartCalls)
	}
}

// Delivering call-end twice must trigger the feedback pipeline exactly once.
func TestDoubleCallEndRunsPipelineOnce(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "hello")
	f.provider.EmitCallEnd()
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	// Give any erroneous second pipeline a chance to run.
	time.Sleep(50 * time.Millisecond)
	if f.scorer.CallCount() != 1 {
		t.Errorf("scoring service calls = %d, want exactly 1", f.scorer.CallCount())
	}
	if f.machine.State() != models.StateFeedbackSaved {
		t.Errorf("final state = %s, want feedback_saved", f.machine.State())
	}
}

// Scoring failures are recovered with the default fallback; the attempt is
// still persisted.
func TestScorerFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.scorer.Errs = []error{errors.New("timeout"), errors.New("timeout")}

	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "hello")
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	if f.machine.State() != models.StateFeedbackSaved {
		t.Errorf("final state = %s, want feedback_saved", f.machine.State())
	}
	rec, _ := f.repo.GetAttempt("iv-1", "ada@example.com")
	if rec == nil {
		t.Fatal("attempt must be persisted despite scorer failure")
	}
	if rec.Feedback.Recommendation != models.RecommendationNo {
		t.Errorf("fallback recommendation = %q, want No", rec.Feedback.Recommendation)
	}
	for criterion, v := range rec.Feedback.Ratings {
		if v != 0 {
			t.Errorf("fallback rating %s = %d, want 0", criterion, v)
		}
	}
}

// An existing attempt refuses the session before the provider is ever
// contacted.
func TestDuplicateAttemptBlocksStart(t *testing.T) {
	f := newFixture(t)
	f.repo.InsertAttempt(models.AttemptRecord{
		InterviewID:    "iv-1",
		CandidateEmail: "ada@example.com",
		CandidateName:  "Ada Lovelace",
		Feedback:       *models.DefaultFeedback(),
		CreatedAt:      time.Now(),
	})

	err := f.machine.Start(context.Background())
	if !errors.Is(err, models.ErrDuplicateAttempt) {
		t.Fatalf("start error = %v, want ErrDuplicateAttempt", err)
	}
	if f.machine.State() != models.StateFailed {
		t.Errorf("state = %s, want failed", f.machine.State())
	}
	if f.provider.StartCalls != 0 {
		t.Errorf("provider start calls = %d, want 0", f.provider.StartCalls)
	}
	if !errors.Is(f.machine.Failure(), models.ErrDuplicateAttempt) {
		t.Errorf("failure = %v, want ErrDuplicateAttempt", f.machine.Failure())
	}
}

// Stopping while still connecting ends the session without ever reaching
// active; the timer never runs and the pipeline still runs once.
func TestStopWhileConnecting(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.machine.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	waitDone(t, f.machine)

	if f.machine.State() != models.StateFeedbackSaved {
		t.Errorf("final state = %s, want feedback_saved", f.machine.State())
	}
	if secs := f.machine.Snapshot().ElapsedSeconds; secs != 0 {
		t.Errorf("elapsed = %d, want 0: timer must never start", secs)
	}
	if f.provider.StopCalls != 1 {
		t.Errorf("provider stop calls = %d, want 1", f.provider.StopCalls)
	}
	if f.scorer.CallCount() != 1 {
		t.Errorf("scoring service calls = %d, want 1", f.scorer.CallCount())
	}
}

// Provider events arriving after a user stop are dropped; the provider's own
// call-end becomes a no-op.
func TestEventsAfterStopIgnored(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "hello")
	waitForTranscript(t, f.machine, 1)

	if err := f.machine.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	f.provider.EmitMessage("candidate", "zombie message")
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	time.Sleep(50 * time.Millisecond)
	if got := len(f.machine.Transcript()); got != 1 {
		t.Errorf("transcript length = %d, want 1: post-stop events must be dropped", got)
	}
	if f.scorer.CallCount() != 1 {
		t.Errorf("scoring service calls = %d, want 1", f.scorer.CallCount())
	}
}

func TestPermissionDeniedFailsStart(t *testing.T) {
	f := newFixture(t)
	f.media.DenyMicPermission = true

	err := f.machine.Start(context.Background())
	if !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("start error = %v, want ErrPermissionDenied", err)
	}
	if f.machine.State() != models.StateFailed {
		t.Errorf("state = %s, want failed", f.machine.State())
	}
	if f.provider.StartCalls != 0 {
		t.Errorf("provider start calls = %d, want 0", f.provider.StartCalls)
	}
}

func TestProviderStartFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.StartErr = errors.New("connection refused")

	err := f.machine.Start(context.Background())
	if !errors.Is(err, models.ErrProviderFailure) {
		t.Fatalf("start error = %v, want ErrProviderFailure", err)
	}
	if f.machine.State() != models.StateFailed {
		t.Errorf("state = %s, want failed", f.machine.State())
	}
}

func TestProviderErrorDuringCall(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitError("websocket closed unexpectedly")
	waitDone(t, f.machine)

	if f.machine.State() != models.StateFailed {
		t.Errorf("state = %s, want failed", f.machine.State())
	}
	if !errors.Is(f.machine.Failure(), models.ErrProviderFailure) {
		t.Errorf("failure = %v, want ErrProviderFailure", f.machine.Failure())
	}
	if f.scorer.CallCount() != 0 {
		t.Errorf("scoring service calls = %d, want 0: failed sessions are not scored", f.scorer.CallCount())
	}
	rec, _ := f.repo.GetAttempt("iv-1", "ada@example.com")
	if rec != nil {
		t.Error("no attempt may be recorded for a failed session")
	}

	// A failed session must not be reusable.
	if err := f.machine.Start(context.Background()); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("restart of failed session = %v, want ErrInvalidTransition", err)
	}
}

// blockingStartProvider suspends Start until the test releases it, optionally
// with an error.
type blockingStartProvider struct {
	*provider.MockProvider
	release chan error
}

func (p *blockingStartProvider) Start(ctx context.Context, cfg provider.CallConfig) error {
	if err := <-p.release; err != nil {
		return err
	}
	return p.MockProvider.Start(ctx, cfg)
}

// A provider failure surfacing after the user already stopped the call must
// not overturn the ended session or abort its feedback cycle.
func TestProviderFailureAfterStopKeepsFeedback(t *testing.T) {
	repo := store.NewInMemoryStore()
	gk := attempt.NewGatekeeper(repo)
	scorer := genai.NewMockScorer(scoredFeedback())
	p := &blockingStartProvider{MockProvider: provider.NewMockProvider(), release: make(chan error)}
	m := NewMachine(testInterviewContext(), Deps{
		Provider:   p,
		Devices:    device.NewManager(device.NewMockMediaAPI()),
		Gatekeeper: gk,
		Pipeline:   feedback.NewPipeline(scorer, gk).WithRetryDelay(time.Millisecond),
	})

	startErr := make(chan error, 1)
	go func() { startErr <- m.Start(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for m.State() != models.StateConnecting {
		if time.Now().After(deadline) {
			t.Fatalf("session never reached connecting, state=%s", m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	waitDone(t, m)

	p.release <- errors.New("connection refused")
	if err := <-startErr; !errors.Is(err, models.ErrProviderFailure) {
		t.Fatalf("start error = %v, want ErrProviderFailure", err)
	}

	if got := m.State(); got != models.StateFeedbackSaved {
		t.Errorf("state = %s, want feedback_saved: a late provider failure must not overturn the ended session", got)
	}
	if m.Failure() != nil {
		t.Errorf("failure = %v, want nil", m.Failure())
	}
	rec, _ := repo.GetAttempt("iv-1", "ada@example.com")
	if rec == nil {
		t.Error("attempt must be persisted despite the late provider failure")
	}
	if scorer.CallCount() != 1 {
		t.Errorf("scoring service calls = %d, want 1", scorer.CallCount())
	}
}

// Streams held by the device manager are released when the session ends
// normally, not only on failure.
func TestDevicesReleasedOnNormalEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.machine.Devices().ToggleMic(ctx); err != nil {
		t.Fatalf("mic toggle failed: %v", err)
	}
	if _, err := f.machine.Devices().ToggleCamera(ctx); err != nil {
		t.Fatalf("camera toggle failed: %v", err)
	}

	if err := f.machine.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	if f.media.MicHeld() {
		t.Error("mic stream must be released when the session ends")
	}
	if f.media.CameraHeld() {
		t.Error("camera stream must be released when the session ends")
	}
	state := f.machine.Devices().State()
	if state.MicOn || state.CameraOn {
		t.Errorf("device state = %+v, want all off after session end", state)
	}
}

// Repeated call-start events after the first are ignored.
func TestRepeatedCallStartIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "still here")
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	if f.machine.State() != models.StateFeedbackSaved {
		t.Errorf("final state = %s, want feedback_saved", f.machine.State())
	}
}

// The conversation log is frozen at ended: message events that slip in after
// call-end never mutate it.
func TestTranscriptFrozenAfterEnd(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "answer one")
	f.provider.EmitCallEnd()
	f.provider.EmitMessage("candidate", "too late")
	waitDone(t, f.machine)

	time.Sleep(50 * time.Millisecond)
	if got := len(f.machine.Transcript()); got != 1 {
		t.Errorf("transcript length = %d, want 1: log is frozen at ended", got)
	}
}

// Redelivered message events are merged by the aggregator.
func TestRedeliveredMessageDeduped(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.EmitMessage("candidate", "yes")
	f.provider.EmitMessage("candidate", "yes")
	f.provider.EmitCallEnd()
	waitDone(t, f.machine)

	if got := len(f.machine.Transcript()); got != 1 {
		t.Errorf("transcript length = %d, want 1 after dedupe", got)
	}
}

func TestSpeechEventsToggleSpeakingFlag(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.provider.EmitCallStart()
	f.provider.Emit(provider.Event{Type: provider.EventSpeechStart})

	deadline := time.Now().Add(time.Second)
	for !f.machine.Snapshot().InterviewerSpeaking {
		if time.Now().After(deadline) {
			t.Fatal("speaking flag never set")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.provider.Emit(provider.Event{Type: provider.EventSpeechEnd})
	for f.machine.Snapshot().InterviewerSpeaking {
		if time.Now().After(deadline) {
			t.Fatal("speaking flag never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCallConfigAssembly(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cfg := f.provider.LastConfig
	if cfg.FirstMessage == "" || cfg.SystemPrompt == "" {
		t.Fatalf("call config incomplete: %+v", cfg)
	}
	if !strings.Contains(cfg.FirstMessage, "Ada Lovelace") {
		t.Errorf("first message %q should greet the candidate by name", cfg.FirstMessage)
	}
	if !strings.Contains(cfg.SystemPrompt, "Backend Engineer") || !strings.Contains(cfg.SystemPrompt, "30-minute") {
		t.Errorf("system prompt missing job context: %q", cfg.SystemPrompt)
	}
	if !strings.Contains(cfg.SystemPrompt, "Describe a hard bug you fixed.") {
		t.Errorf("system prompt missing question list: %q", cfg.SystemPrompt)
	}
	if len(cfg.EndPhrases) != 1 || cfg.EndPhrases[0] != EndPhrase {
		t.Errorf("end phrases = %v", cfg.EndPhrases)
	}
}

func waitForTranscript(t *testing.T, m *Machine, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for len(m.Transcript()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("transcript never reached %d entries, have %d", n, len(m.Transcript()))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
