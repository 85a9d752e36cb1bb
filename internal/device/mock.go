package device

import (
	"context"
	"errors"
	"sync"

	"github.com/vocalhire/interviewd/internal/models"
)

// MockMediaAPI is an in-memory MediaAPI for tests and local runs.
type MockMediaAPI struct {
	mu sync.Mutex

	// DenyMicPermission makes RequestMicPermission fail.
	DenyMicPermission bool
	// CameraBusy makes camera acquisition fail (hardware busy).
	CameraBusy bool

	PermissionRequests int
	cameraHeld         bool
	micHeld            bool
}

// Compile-time check that MockMediaAPI implements MediaAPI.
var _ MediaAPI = (*MockMediaAPI)(nil)

// NewMockMediaAPI creates a mock media API that grants everything.
func NewMockMediaAPI() *MockMediaAPI {
	return &MockMediaAPI{}
}

func (m *MockMediaAPI) RequestMicPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PermissionRequests++
	if m.DenyMicPermission {
		return models.ErrPermissionDenied
	}
	return nil
}

func (m *MockMediaAPI) AcquireCamera(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CameraBusy {
		return errors.New("camera busy")
	}
	m.cameraHeld = true
	return nil
}

func (m *MockMediaAPI) ReleaseCamera() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cameraHeld = false
	return nil
}

func (m *MockMediaAPI) AcquireMic(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micHeld = true
	return nil
}

func (m *MockMediaAPI) ReleaseMic() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micHeld = false
	return nil
}

// CameraHeld reports whether the camera stream is currently open.
func (m *MockMediaAPI) CameraHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cameraHeld
}

// MicHeld reports whether the microphone stream is currently open.
func (m *MockMediaAPI) MicHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micHeld
}
