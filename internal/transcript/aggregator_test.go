package transcript

import (
	"strings"
	"testing"

	"github.com/vocalhire/interviewd/internal/models"
)

func TestIngestAssignsSequenceInArrivalOrder(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleInterviewer, "Tell me about yourself.")
	a.Ingest(models.RoleCandidate, "I build backend systems.")
	a.Ingest(models.RoleInterviewer, "What was your hardest bug?")

	log := a.Snapshot()
	if len(log) != 3 {
		t.Fatalf("log length = %d, want 3", len(log))
	}
	for i, e := range log {
		if e.Sequence != i {
			t.Errorf("entry %d sequence = %d, want %d", i, e.Sequence, i)
		}
	}
}

func TestIngestDiscardsAdjacentDuplicate(t *testing.T) {
	a := NewAggregator()
	if !a.Ingest(models.RoleCandidate, "yes") {
		t.Error("first ingest should append")
	}
	if a.Ingest(models.RoleCandidate, "yes") {
		t.Error("redelivered duplicate should be discarded")
	}
	if a.Len() != 1 {
		t.Errorf("log length = %d, want 1", a.Len())
	}
}

func TestIngestKeepsNonAdjacentRepeat(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleCandidate, "yes")
	a.Ingest(models.RoleInterviewer, "Are you sure?")
	a.Ingest(models.RoleCandidate, "yes")
	if a.Len() != 3 {
		t.Errorf("log length = %d, want 3: only adjacent duplicates are merged", a.Len())
	}
}

func TestIngestSameContentDifferentRole(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleCandidate, "hello")
	a.Ingest(models.RoleInterviewer, "hello")
	if a.Len() != 2 {
		t.Errorf("log length = %d, want 2: dedupe keys on (role, content)", a.Len())
	}
}

func TestFreezeMakesIngestNoOp(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleCandidate, "before end")
	a.Freeze()
	if a.Ingest(models.RoleCandidate, "after end") {
		t.Error("ingest after freeze should be a no-op")
	}
	if a.Len() != 1 {
		t.Errorf("log length = %d, want 1 after freeze", a.Len())
	}
	a.Freeze() // idempotent
	if a.Len() != 1 {
		t.Errorf("log length changed by repeated freeze")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleCandidate, "original")
	snap := a.Snapshot()
	snap[0].Content = "mutated"
	if a.Snapshot()[0].Content != "original" {
		t.Error("snapshot mutation must not affect the log")
	}
}

func TestRenderText(t *testing.T) {
	a := NewAggregator()
	a.Ingest(models.RoleInterviewer, "Tell me about Go.")
	a.Ingest(models.RoleCandidate, "I like channels.")

	text := a.RenderText()
	want := "Interviewer: Tell me about Go.\nCandidate: I like channels.\n"
	if text != want {
		t.Errorf("RenderText = %q, want %q", text, want)
	}
	if !strings.HasSuffix(text, "\n") {
		t.Error("rendered text should end with a newline")
	}
}
