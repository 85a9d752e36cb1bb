package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeProviderServer upgrades the connection, checks the start frame, then
// plays back the given frames and closes.
func fakeProviderServer(t *testing.T, frames []wireFrame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var start wireFrame
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start frame failed: %v", err)
			return
		}
		if start.Type != "start" || start.Config == nil {
			t.Errorf("unexpected start frame: %+v", start)
			return
		}

		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// Give the client a moment to drain before the deferred close.
		time.Sleep(50 * time.Millisecond)
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSClientEventStream(t *testing.T) {
	srv := fakeProviderServer(t, []wireFrame{
		{Type: "call-start"},
		{Type: "speech-start"},
		{Type: "message", Role: "interviewer", Transcript: "Tell me about Go.", Sequence: 1},
		{Type: "speech-end"},
		{Type: "message", Role: "candidate", Transcript: "I like channels.", Sequence: 2},
		{Type: "call-end"},
	})
	defer srv.Close()

	c := NewWSClient(wsURL(srv))
	if err := c.Start(context.Background(), CallConfig{Voice: "nova", SystemPrompt: "interview"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				goto done
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
done:
	wantTypes := []EventType{EventCallStart, EventSpeechStart, EventMessage, EventSpeechEnd, EventMessage, EventCallEnd}
	if len(got) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantTypes), got)
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i, got[i].Type, want)
		}
	}
	if got[2].Role != "interviewer" || got[2].Content != "Tell me about Go." {
		t.Errorf("unexpected message event: %+v", got[2])
	}
}

func TestWSClientUnknownFramesIgnored(t *testing.T) {
	srv := fakeProviderServer(t, []wireFrame{
		{Type: "ping"},
		{Type: "call-start"},
		{Type: "call-end"},
	})
	defer srv.Close()

	c := NewWSClient(wsURL(srv))
	if err := c.Start(context.Background(), CallConfig{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got []Event
	for ev := range c.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (unknown frames dropped): %+v", len(got), got)
	}
}

func TestWSClientDialFailure(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/unreachable")
	if err := c.Start(context.Background(), CallConfig{}); err == nil {
		t.Error("expected dial error")
	}
}

func TestWSClientDoubleStart(t *testing.T) {
	srv := fakeProviderServer(t, []wireFrame{{Type: "call-start"}})
	defer srv.Close()

	c := NewWSClient(wsURL(srv))
	if err := c.Start(context.Background(), CallConfig{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer c.Stop(context.Background())
	if err := c.Start(context.Background(), CallConfig{}); err == nil {
		t.Error("second start should fail")
	}
}

func TestNewTwilioCallRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewTwilioCall(WithTwilioToNumber("+15551234567"), WithTwilioVoiceURL("https://example.com/voice")); err == nil {
		t.Error("expected error without credentials")
	}
}
