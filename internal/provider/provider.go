// Package provider defines the call-provider boundary for interviewd.
//
// A CallProvider drives the real-time voice conversation with the candidate
// and reports its lifecycle asynchronously over an event channel. The
// provider guarantees in-order delivery within its own stream, but may
// redeliver message events; callers must not assume ordering between
// provider events and other event sources.
package provider

import "context"

// EventType tags a provider event.
type EventType string

const (
	// EventSpeechStart signals the interviewer voice began speaking.
	EventSpeechStart EventType = "speech-start"
	// EventSpeechEnd signals the interviewer voice stopped speaking.
	EventSpeechEnd EventType = "speech-end"
	// EventCallStart signals the call is connected and live.
	EventCallStart EventType = "call-start"
	// EventCallEnd signals the call has ended, from either side.
	EventCallEnd EventType = "call-end"
	// EventMessage carries one transcript utterance.
	EventMessage EventType = "message"
	// EventError signals an unrecoverable provider failure.
	EventError EventType = "error"
)

// Event is a tagged union of everything a call provider can report.
type Event struct {
	Type EventType

	// Message fields, set when Type == EventMessage.
	Role        string // "interviewer" or "candidate"
	Content     string
	RawSequence int // provider-claimed sequence; informational only

	// Cause is set when Type == EventError.
	Cause string
}

// CallConfig is the configuration handed to the provider when starting a
// call.
type CallConfig struct {
	SystemPrompt string   `json:"system_prompt"`
	Voice        string   `json:"voice"`
	Transcriber  string   `json:"transcriber"`
	FirstMessage string   `json:"first_message"`
	EndPhrases   []string `json:"end_phrases,omitempty"`
}

// CallProvider is the external real-time voice/transcription service driving
// the interview conversation. A provider instance belongs to exactly one
// session; it is constructed per session and never shared.
type CallProvider interface {
	// Start initiates the call. Events begin flowing on the Events channel
	// once the provider connects.
	Start(ctx context.Context, cfg CallConfig) error

	// Stop terminates the call from our side. The provider may still emit a
	// call-end event afterwards; consumers must treat it as a no-op.
	Stop(ctx context.Context) error

	// Mute toggles the candidate's audio into the call.
	Mute(muted bool) error

	// Events returns the provider's event stream. The channel is closed when
	// the provider shuts down.
	Events() <-chan Event
}
