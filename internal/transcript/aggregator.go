// Package transcript aggregates provider message events into an ordered,
// append-only conversation log.
//
// Deduplication of provider redelivery is part of this package's contract:
// an incoming entry whose (role, content) matches the last appended entry is
// discarded. Sequence numbers are assigned locally in arrival order because
// the provider's own sequencing cannot be trusted across redeliveries.
package transcript

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vocalhire/interviewd/internal/models"
)

// Aggregator consumes raw message events and produces the conversation log.
// The log is frozen once the session ends; later Ingest calls are no-ops.
type Aggregator struct {
	mu      sync.RWMutex
	entries []models.TranscriptEntry
	frozen  bool
}

// NewAggregator creates an empty transcript aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Ingest appends a message to the log unless it duplicates the last entry or
// the log is frozen. Returns true if the entry was appended.
func (a *Aggregator) Ingest(role models.Role, content string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		slog.Debug("Aggregator Ingest ignored, log frozen", "role", role)
		return false
	}
	if last := len(a.entries) - 1; last >= 0 {
		if a.entries[last].Role == role && a.entries[last].Content == content {
			slog.Debug("Aggregator Ingest discarded duplicate", "role", role, "sequence", a.entries[last].Sequence)
			return false
		}
	}

	entry := models.TranscriptEntry{Role: role, Content: content, Sequence: len(a.entries)}
	a.entries = append(a.entries, entry)
	slog.Debug("Aggregator Ingest appended", "role", role, "sequence", entry.Sequence)
	return true
}

// Freeze makes the log immutable. Called when the session reaches ended.
func (a *Aggregator) Freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.frozen {
		a.frozen = true
		slog.Debug("Aggregator frozen", "entries", len(a.entries))
	}
}

// Len returns the number of entries in the log.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Snapshot returns a read-only copy of the conversation log.
func (a *Aggregator) Snapshot() []models.TranscriptEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.TranscriptEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// RenderText renders the log as role-prefixed lines, the format handed to
// the feedback scorer.
func (a *Aggregator) RenderText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var b strings.Builder
	for _, e := range a.entries {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(e.Role), e.Content)
	}
	return b.String()
}

func roleLabel(r models.Role) string {
	switch r {
	case models.RoleInterviewer:
		return "Interviewer"
	case models.RoleCandidate:
		return "Candidate"
	default:
		return string(r)
	}
}
