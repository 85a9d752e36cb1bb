// Package session implements the live interview session state machine.
//
// The Machine is the single authority over SessionState: the only component
// permitted to call the provider's start/stop/mute, and the only trigger for
// the feedback pipeline. Every transition for one session is serialized
// behind the machine's mutex; once-only guards are flipped under that lock
// before any blocking call, so duplicate or out-of-order provider events
// cannot re-enter a transition.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vocalhire/interviewd/internal/attempt"
	"github.com/vocalhire/interviewd/internal/device"
	"github.com/vocalhire/interviewd/internal/feedback"
	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/observability"
	"github.com/vocalhire/interviewd/internal/provider"
	"github.com/vocalhire/interviewd/internal/transcript"
)

// Call configuration defaults handed to the provider.
const (
	DefaultVoice       = "nova"
	DefaultTranscriber = "deepgram"
	// EndPhrase is the closing sentence that signals the provider to hang up.
	EndPhrase = "the interview is now concluded"
)

// Deps bundles the collaborators a session machine drives. Each session gets
// its own provider instance and device manager; the gatekeeper and pipeline
// are shared, stateless services.
type Deps struct {
	Provider   provider.CallProvider
	Devices    *device.Manager
	Gatekeeper *attempt.Gatekeeper
	Pipeline   *feedback.Pipeline
}

// Snapshot is a point-in-time read of a session for display.
type Snapshot struct {
	ID                  string              `json:"id"`
	State               models.SessionState `json:"state"`
	ElapsedSeconds      int                 `json:"elapsed_seconds"`
	ElapsedDisplay      string              `json:"elapsed_display"`
	Devices             models.DeviceState  `json:"devices"`
	InterviewerSpeaking bool                `json:"interviewer_speaking"`
	TranscriptLength    int                 `json:"transcript_length"`
	Failure             string              `json:"failure,omitempty"`
}

// Machine owns one session's state and wiring.
type Machine struct {
	id    string
	ictx  models.InterviewContext
	deps  Deps
	log   *transcript.Aggregator
	timer *ElapsedTimer

	mu              sync.Mutex
	state           models.SessionState
	starting        bool
	startNotified   bool
	endHandled      bool
	pipelineStarted bool
	gateClosed      bool
	counted         bool
	speaking        bool
	failure         error
	result          *models.FeedbackResult

	done     chan struct{}
	doneOnce sync.Once
}

// NewMachine creates a session machine in the idle state.
func NewMachine(ictx models.InterviewContext, deps Deps) *Machine {
	return &Machine{
		id:    uuid.NewString(),
		ictx:  ictx,
		deps:  deps,
		log:   transcript.NewAggregator(),
		timer: NewElapsedTimer(),
		state: models.StateIdle,
		done:  make(chan struct{}),
	}
}

// ID returns the session identifier.
func (m *Machine) ID() string { return m.id }

// Context returns the immutable interview configuration.
func (m *Machine) Context() models.InterviewContext { return m.ictx }

// Devices returns the session's device manager. Device toggles never block
// and are never blocked by session transitions.
func (m *Machine) Devices() *device.Manager { return m.deps.Devices }

// State returns the current session state.
func (m *Machine) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed when the session reaches a terminal state or the feedback
// pipeline finishes.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Start drives the session from idle through the gatekeeper check, the
// microphone permission prompt, and the provider call start. A duplicate
// attempt refuses to start without ever contacting the provider.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != models.StateIdle || m.starting {
		m.mu.Unlock()
		return models.ErrInvalidTransition
	}
	m.starting = true
	m.mu.Unlock()

	attempted, err := m.deps.Gatekeeper.CheckAttempted(ctx, m.ictx.InterviewID, m.ictx.CandidateEmail)
	if err != nil {
		m.fail(fmt.Errorf("attempt pre-check failed: %w", err))
		return err
	}
	if attempted {
		observability.DuplicateAttempt()
		m.fail(models.ErrDuplicateAttempt)
		return models.ErrDuplicateAttempt
	}

	if err := m.transition(models.StateRequestingPermission); err != nil {
		return err
	}
	if err := m.deps.Devices.RequestMicPermission(ctx); err != nil {
		m.fail(models.ErrPermissionDenied)
		return models.ErrPermissionDenied
	}

	if err := m.transition(models.StateConnecting); err != nil {
		return err
	}
	// The call outlives the request that started it; detach the provider
	// from the caller's cancellation.
	if err := m.deps.Provider.Start(context.WithoutCancel(ctx), m.callConfig()); err != nil {
		m.fail(fmt.Errorf("%w: %v", models.ErrProviderFailure, err))
		return models.ErrProviderFailure
	}

	m.mu.Lock()
	m.counted = true
	m.mu.Unlock()
	observability.SessionStarted()

	go m.eventLoop()
	slog.Info("Machine session starting", "id", m.id, "interviewID", m.ictx.InterviewID)
	return nil
}

// Stop is the user-initiated end command, permitted from connecting or
// active. It synchronously closes the event gate so provider events arriving
// afterwards are ignored, then tears the call down exactly as a call-end
// event would.
func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state != models.StateConnecting && m.state != models.StateActive {
		m.mu.Unlock()
		return models.ErrInvalidTransition
	}
	m.gateClosed = true
	m.mu.Unlock()

	if err := m.deps.Provider.Stop(ctx); err != nil {
		slog.Warn("Machine provider stop failed", "error", err, "id", m.id)
	}
	m.finish("user stop")
	return nil
}

// SetMuted toggles the candidate's audio into the call. Permitted only while
// the call exists.
func (m *Machine) SetMuted(muted bool) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state != models.StateConnecting && state != models.StateActive {
		return models.ErrInvalidTransition
	}
	return m.deps.Provider.Mute(muted)
}

// Transcript returns a read-only copy of the conversation log.
func (m *Machine) Transcript() []models.TranscriptEntry {
	return m.log.Snapshot()
}

// Feedback returns the persisted feedback result once the session reaches
// feedback_saved.
func (m *Machine) Feedback() (*models.FeedbackResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateFeedbackSaved || m.result == nil {
		return nil, false
	}
	return m.result, true
}

// Failure returns the terminal failure cause, if any.
func (m *Machine) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Snapshot returns a point-in-time view of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	state, speaking, failure := m.state, m.speaking, m.failure
	m.mu.Unlock()

	snap := Snapshot{
		ID:                  m.id,
		State:               state,
		ElapsedSeconds:      m.timer.ElapsedSeconds(),
		ElapsedDisplay:      m.timer.Display(),
		Devices:             m.deps.Devices.State(),
		InterviewerSpeaking: speaking,
		TranscriptLength:    m.log.Len(),
	}
	if failure != nil {
		snap.Failure = failure.Error()
	}
	return snap
}

// eventLoop drains the provider's event stream until it closes.
func (m *Machine) eventLoop() {
	for ev := range m.deps.Provider.Events() {
		m.handleEvent(ev)
	}
	slog.Debug("Machine provider event stream closed", "id", m.id)
}

func (m *Machine) handleEvent(ev provider.Event) {
	m.mu.Lock()
	if m.gateClosed || m.state.IsTerminal() {
		m.mu.Unlock()
		slog.Debug("Machine dropping late provider event", "id", m.id, "type", ev.Type)
		return
	}
	m.mu.Unlock()

	switch ev.Type {
	case provider.EventCallStart:
		m.onCallStart()
	case provider.EventSpeechStart:
		m.setSpeaking(true)
	case provider.EventSpeechEnd:
		m.setSpeaking(false)
	case provider.EventMessage:
		m.log.Ingest(mapRole(ev.Role), ev.Content)
	case provider.EventCallEnd:
		m.finish("provider call-end")
	case provider.EventError:
		m.onProviderError(ev.Cause)
	}
}

// onCallStart moves connecting -> active once. Repeated call-start events
// after the first are ignored.
func (m *Machine) onCallStart() {
	m.mu.Lock()
	if m.startNotified || m.state != models.StateConnecting {
		m.mu.Unlock()
		return
	}
	m.startNotified = true
	m.state = models.StateActive
	m.mu.Unlock()

	m.timer.Start()
	slog.Info("Machine session started", "id", m.id, "interviewID", m.ictx.InterviewID)
}

func (m *Machine) setSpeaking(speaking bool) {
	m.mu.Lock()
	m.speaking = speaking
	m.mu.Unlock()
}

// finish handles the first end signal, whether a provider call-end or a user
// stop. The pipeline-started flag is flipped under the lock before anything
// blocks, so a second end signal can never queue a second pipeline.
func (m *Machine) finish(reason string) {
	m.mu.Lock()
	if m.endHandled || m.state.IsTerminal() {
		m.mu.Unlock()
		return
	}
	m.endHandled = true
	m.pipelineStarted = true
	m.state = models.StateEnding
	m.mu.Unlock()

	m.timer.Stop()
	m.deps.Devices.ReleaseAll()

	m.mu.Lock()
	if m.state == models.StateEnding {
		m.state = models.StateEnded
	}
	m.mu.Unlock()
	m.log.Freeze()

	observability.CallEnded(m.timer.Elapsed().Seconds())
	slog.Info("Machine session ended", "id", m.id, "reason", reason, "elapsed", m.timer.Display())

	go m.runPipeline()
}

func (m *Machine) onProviderError(cause string) {
	m.fail(fmt.Errorf("%w: %s", models.ErrProviderFailure, cause))
}

// runPipeline performs the once-only scoring-and-persist job.
func (m *Machine) runPipeline() {
	defer m.markDone()
	ctx := context.Background()

	result, err := m.deps.Pipeline.Generate(ctx, m.ictx, m.log.RenderText())
	if err != nil {
		m.failPipeline(err)
		return
	}

	if err := m.transition(models.StateFeedbackPending); err != nil {
		return
	}
	if err := m.deps.Pipeline.Persist(ctx, m.ictx, result); err != nil {
		// Operational alert: the call is complete, the feedback could not be
		// written. The session stays in feedback_pending for inspection.
		slog.Error("Machine feedback persist failed", "error", err, "id", m.id, "interviewID", m.ictx.InterviewID)
		return
	}

	m.mu.Lock()
	m.result = result
	counted := m.counted
	m.mu.Unlock()
	if err := m.transition(models.StateFeedbackSaved); err != nil {
		return
	}
	// counted is false when the provider start never succeeded (the user
	// stopped a still-connecting call); the active-sessions gauge was never
	// incremented, so it must not be decremented here.
	if counted {
		observability.SessionCompleted()
	}
	slog.Info("Machine feedback saved", "id", m.id, "interviewID", m.ictx.InterviewID)
}

// transition validates and applies a forward state change.
func (m *Machine) transition(to models.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.CanTransition(to) {
		slog.Error("Machine invalid transition", "id", m.id, "from", m.state, "to", to)
		return models.ErrInvalidTransition
	}
	slog.Debug("Machine transition", "id", m.id, "from", m.state, "to", to)
	m.state = to
	return nil
}

// fail moves the session to the failed terminal state and releases every
// held resource. Once the end of the call has been handled, the session's
// outcome belongs to the feedback pipeline: a failure surfacing after that
// point (a provider error from a call the user already stopped) is logged
// and dropped so it cannot overturn the ended state or abort the pipeline.
// A session that already reached a terminal state is left untouched; a
// failed session must not be reused.
func (m *Machine) fail(cause error) {
	m.mu.Lock()
	if m.endHandled || m.state.IsTerminal() {
		m.mu.Unlock()
		slog.Warn("Machine ignoring failure after call end", "id", m.id, "cause", cause)
		return
	}
	m.failLocked(cause)
}

// failPipeline marks the session failed from inside the feedback pipeline,
// which legitimately runs with endHandled set.
func (m *Machine) failPipeline(cause error) {
	m.mu.Lock()
	if m.state.IsTerminal() {
		m.mu.Unlock()
		return
	}
	m.failLocked(cause)
}

// failLocked must be entered holding m.mu and releases it.
func (m *Machine) failLocked(cause error) {
	from := m.state
	m.state = models.StateFailed
	m.failure = cause
	m.gateClosed = true
	counted := m.counted
	m.mu.Unlock()

	m.timer.Stop()
	m.deps.Devices.ReleaseAll()
	if counted {
		observability.SessionFailed(failureReason(cause))
	}
	slog.Error("Machine session failed", "id", m.id, "from", from, "cause", cause)
	m.markDone()
}

func (m *Machine) markDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

// callConfig assembles the provider configuration from the interview
// context.
func (m *Machine) callConfig() provider.CallConfig {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI voice interviewer conducting a %d-minute interview for the %s position.\n",
		m.ictx.DurationMinutes, m.ictx.JobTitle)
	b.WriteString("Ask one question at a time, listen to the full answer, and probe for depth before moving on.\n")
	if len(m.ictx.QuestionList) > 0 {
		b.WriteString("Cover the following questions during the interview:\n")
		for _, q := range m.ictx.QuestionList {
			b.WriteString("- " + q + "\n")
		}
	}
	fmt.Fprintf(&b, "When the time is up or every question is covered, thank the candidate and say %q.", EndPhrase)

	return provider.CallConfig{
		SystemPrompt: b.String(),
		Voice:        DefaultVoice,
		Transcriber:  DefaultTranscriber,
		FirstMessage: fmt.Sprintf("Hello %s, thank you for joining. Whenever you're ready, let's begin the interview for the %s role.", m.ictx.CandidateName, m.ictx.JobTitle),
		EndPhrases:   []string{EndPhrase},
	}
}

func mapRole(role string) models.Role {
	switch strings.ToLower(role) {
	case "assistant", "interviewer", "bot", "system":
		return models.RoleInterviewer
	default:
		return models.RoleCandidate
	}
}

func failureReason(cause error) string {
	switch {
	case errors.Is(cause, models.ErrDuplicateAttempt):
		return "duplicate_attempt"
	case errors.Is(cause, models.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(cause, models.ErrProviderFailure):
		return "provider_error"
	case errors.Is(cause, models.ErrMissingContext):
		return "missing_context"
	default:
		return "internal"
	}
}
