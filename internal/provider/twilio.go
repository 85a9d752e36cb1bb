// Package provider implements a Twilio dial-out adapter for phone-based
// interviews.
//
// The adapter owns the call lifecycle only: it places the outbound call,
// polls Twilio for status, and translates status changes into lifecycle
// events. Transcript message events for phone interviews are produced by the
// media-stream consumer attached via the voice URL, not by this adapter.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vocalhire/interviewd/internal/util"
)

// TwilioOpts holds configuration options for the Twilio call adapter.
type TwilioOpts struct {
	AccountSID   string
	AuthToken    string
	FromNumber   string
	ToNumber     string
	VoiceURL     string // TwiML/media-stream handler invoked when the call connects
	PollInterval time.Duration
}

// TwilioOption defines a configuration option for the Twilio call adapter.
type TwilioOption func(*TwilioOpts)

// WithTwilioAccountSID sets the Twilio account SID.
func WithTwilioAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithTwilioAuthToken sets the Twilio auth token.
func WithTwilioAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithTwilioFromNumber sets the caller number.
func WithTwilioFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromNumber = from }
}

// WithTwilioToNumber sets the candidate's phone number.
func WithTwilioToNumber(to string) TwilioOption {
	return func(o *TwilioOpts) { o.ToNumber = to }
}

// WithTwilioVoiceURL sets the voice webhook URL handed to Twilio.
func WithTwilioVoiceURL(url string) TwilioOption {
	return func(o *TwilioOpts) { o.VoiceURL = url }
}

// WithTwilioPollInterval sets the call-status polling interval.
func WithTwilioPollInterval(d time.Duration) TwilioOption {
	return func(o *TwilioOpts) { o.PollInterval = d }
}

// TwilioCall is a CallProvider that drives a phone call through the Twilio
// REST API.
type TwilioCall struct {
	client *twilio.RestClient
	cfg    TwilioOpts

	mu      sync.Mutex
	callSID string
	stopped bool

	events    chan Event
	closeOnce sync.Once
}

// Compile-time check that TwilioCall implements CallProvider.
var _ CallProvider = (*TwilioCall)(nil)

// NewTwilioCall creates a Twilio dial-out adapter. Credentials fall back to
// the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER
// environment variables.
func NewTwilioCall(opts ...TwilioOption) (*TwilioCall, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Duration(util.ParseIntEnv("TWILIO_POLL_INTERVAL_SECONDS", 2)) * time.Second
	}
	slog.Debug("Twilio call adapter config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" || cfg.ToNumber == "" {
		return nil, fmt.Errorf("from and to numbers must be provided")
	}
	if cfg.VoiceURL == "" {
		return nil, fmt.Errorf("voice URL must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioCall{
		client: client,
		cfg:    cfg,
		events: make(chan Event, 64),
	}, nil
}

// Start places the outbound call and begins polling its status.
func (t *TwilioCall) Start(ctx context.Context, cfg CallConfig) error {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(t.cfg.ToNumber)
	params.SetFrom(t.cfg.FromNumber)
	params.SetUrl(t.cfg.VoiceURL)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		slog.Error("TwilioCall Start failed", "error", err, "to", t.cfg.ToNumber)
		return fmt.Errorf("twilio create call failed: %w", err)
	}
	if resp.Sid == nil {
		return fmt.Errorf("twilio create call returned no SID")
	}

	t.mu.Lock()
	t.callSID = *resp.Sid
	t.mu.Unlock()

	go t.pollStatus(ctx)

	slog.Info("TwilioCall started", "callSID", *resp.Sid)
	return nil
}

// pollStatus maps Twilio call status onto lifecycle events until the call
// reaches a terminal status.
func (t *TwilioCall) pollStatus(ctx context.Context) {
	defer t.closeEvents()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	startEmitted := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		sid, stopped := t.callSID, t.stopped
		t.mu.Unlock()
		if stopped {
			t.events <- Event{Type: EventCallEnd}
			return
		}

		call, err := t.client.Api.FetchCall(sid, &twilioApi.FetchCallParams{})
		if err != nil {
			slog.Error("TwilioCall status poll failed", "error", err, "callSID", sid)
			t.events <- Event{Type: EventError, Cause: err.Error()}
			return
		}
		if call.Status == nil {
			continue
		}

		switch *call.Status {
		case "in-progress":
			if !startEmitted {
				startEmitted = true
				t.events <- Event{Type: EventCallStart}
			}
		case "completed", "busy", "no-answer", "canceled":
			t.events <- Event{Type: EventCallEnd}
			return
		case "failed":
			t.events <- Event{Type: EventError, Cause: "twilio call failed"}
			return
		}
	}
}

// Stop hangs up the call from our side.
func (t *TwilioCall) Stop(ctx context.Context) error {
	t.mu.Lock()
	sid := t.callSID
	t.stopped = true
	t.mu.Unlock()
	if sid == "" {
		return nil
	}

	params := &twilioApi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := t.client.Api.UpdateCall(sid, params); err != nil {
		slog.Error("TwilioCall Stop failed", "error", err, "callSID", sid)
		return fmt.Errorf("twilio end call failed: %w", err)
	}
	slog.Info("TwilioCall stopped", "callSID", sid)
	return nil
}

// Mute is not supported on the REST call resource; audio muting for phone
// interviews happens in the media stream.
func (t *TwilioCall) Mute(muted bool) error {
	slog.Debug("TwilioCall Mute ignored, handled by media stream", "muted", muted)
	return nil
}

// Events returns the adapter's lifecycle event stream.
func (t *TwilioCall) Events() <-chan Event {
	return t.events
}

func (t *TwilioCall) closeEvents() {
	t.closeOnce.Do(func() { close(t.events) })
}
