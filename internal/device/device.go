// Package device manages camera and microphone state independently of the
// session lifecycle.
//
// Device toggles never block, and are never blocked by, session state
// transitions. Failures are reported as device errors without touching the
// session.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vocalhire/interviewd/internal/models"
)

// MediaAPI abstracts the platform media-capture surface (browser or native).
// Permission prompts are one-shot per session.
type MediaAPI interface {
	// RequestMicPermission shows the microphone permission prompt. Blocks
	// until the user answers; returns models.ErrPermissionDenied on refusal.
	RequestMicPermission(ctx context.Context) error

	// AcquireCamera opens the camera stream.
	AcquireCamera(ctx context.Context) error

	// ReleaseCamera closes the camera stream.
	ReleaseCamera() error

	// AcquireMic opens the microphone stream.
	AcquireMic(ctx context.Context) error

	// ReleaseMic closes the microphone stream.
	ReleaseMic() error
}

// Manager tracks camera/mic on-off state over a MediaAPI.
type Manager struct {
	api MediaAPI

	mu    sync.Mutex
	state models.DeviceState
}

// NewManager creates a device manager over the given media API.
func NewManager(api MediaAPI) *Manager {
	return &Manager{api: api}
}

// RequestMicPermission forwards the one-shot permission prompt.
func (m *Manager) RequestMicPermission(ctx context.Context) error {
	return m.api.RequestMicPermission(ctx)
}

// ToggleCamera flips the camera stream on or off and returns the new state.
func (m *Manager) ToggleCamera(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.CameraOn {
		if err := m.api.ReleaseCamera(); err != nil {
			slog.Error("DeviceManager ToggleCamera release failed", "error", err)
			return m.state.CameraOn, fmt.Errorf("%w: %v", models.ErrDevice, err)
		}
		m.state.CameraOn = false
	} else {
		if err := m.api.AcquireCamera(ctx); err != nil {
			slog.Error("DeviceManager ToggleCamera acquire failed", "error", err)
			return m.state.CameraOn, fmt.Errorf("%w: %v", models.ErrDevice, err)
		}
		m.state.CameraOn = true
	}
	slog.Debug("DeviceManager ToggleCamera", "cameraOn", m.state.CameraOn)
	return m.state.CameraOn, nil
}

// ToggleMic flips the microphone stream on or off and returns the new state.
func (m *Manager) ToggleMic(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.MicOn {
		if err := m.api.ReleaseMic(); err != nil {
			slog.Error("DeviceManager ToggleMic release failed", "error", err)
			return m.state.MicOn, fmt.Errorf("%w: %v", models.ErrDevice, err)
		}
		m.state.MicOn = false
	} else {
		if err := m.api.AcquireMic(ctx); err != nil {
			slog.Error("DeviceManager ToggleMic acquire failed", "error", err)
			return m.state.MicOn, fmt.Errorf("%w: %v", models.ErrDevice, err)
		}
		m.state.MicOn = true
	}
	slog.Debug("DeviceManager ToggleMic", "micOn", m.state.MicOn)
	return m.state.MicOn, nil
}

// ReleaseAll releases every held stream. Called by the session machine when
// the session ends or fails; release failures are logged, not propagated,
// since resource cleanup must not fail the session.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.CameraOn {
		if err := m.api.ReleaseCamera(); err != nil {
			slog.Warn("DeviceManager ReleaseAll camera release failed", "error", err)
		}
		m.state.CameraOn = false
	}
	if m.state.MicOn {
		if err := m.api.ReleaseMic(); err != nil {
			slog.Warn("DeviceManager ReleaseAll mic release failed", "error", err)
		}
		m.state.MicOn = false
	}
}

// State returns the current device state.
func (m *Manager) State() models.DeviceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
