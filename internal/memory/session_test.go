package memory

import (
	"fmt"
	"testing"

	"mixagent/internal/action"
)

func TestSessionEvictsPastCap(t *testing.T) {
	s := NewSession(5)
	for i := 0; i < 20; i++ {
		s.RecordObservation(fmt.Sprintf("note %d", i))
	}

	if got := s.Size(); got != 5 {
		t.Fatalf("Size() = %d, want 5", got)
	}

	ctx := s.BuildContext(100)
	if len(ctx) != 5 {
		t.Fatalf("context len = %d, want 5", len(ctx))
	}
	for i, entry := range ctx {
		want := fmt.Sprintf("note %d", 15+i)
		if entry["note"] != want {
			t.Errorf("ctx[%d] note = %v, want %q", i, entry["note"], want)
		}
	}
}

func TestBuildContextShape(t *testing.T) {
	s := NewSession(50)
	s.RecordAction(action.Action{Type: action.SetFader, Channel: 2, Value: 0.6, Role: "Kick"}, nil)
	s.RecordRejection(action.Action{Type: action.SetEqBand, Channel: 3}, "too aggressive")
	s.RecordObservation("mix is settling")
	s.RecordEngineerOverride(4, "fader moved on surface")
	s.RecordInstruction("leave drums alone")
	s.RecordSnapshot(map[string]any{"ch": []any{}})

	ctx := s.BuildContext(10)
	if len(ctx) != 6 {
		t.Fatalf("context len = %d, want 6", len(ctx))
	}

	wantTypes := []string{
		"action_taken", "action_rejected", "observation",
		"engineer_override", "engineer_instruction", "snapshot",
	}
	for i, want := range wantTypes {
		if ctx[i]["type"] != want {
			t.Errorf("ctx[%d] type = %v, want %q", i, ctx[i]["type"], want)
		}
		if _, ok := ctx[i]["seconds_ago"]; !ok {
			t.Errorf("ctx[%d] missing seconds_ago", i)
		}
	}

	if _, ok := ctx[0]["action"]; !ok {
		t.Error("action_taken entry missing action")
	}
	if ctx[3]["channel"] != 4 {
		t.Errorf("override channel = %v, want 4", ctx[3]["channel"])
	}
	if ctx[4]["instruction"] != "leave drums alone" {
		t.Errorf("instruction = %v", ctx[4]["instruction"])
	}
}

func TestBuildContextLimit(t *testing.T) {
	s := NewSession(100)
	for i := 0; i < 30; i++ {
		s.RecordObservation(fmt.Sprintf("n%d", i))
	}
	ctx := s.BuildContext(10)
	if len(ctx) != 10 {
		t.Fatalf("context len = %d, want 10", len(ctx))
	}
	if ctx[0]["note"] != "n20" || ctx[9]["note"] != "n29" {
		t.Errorf("window = %v..%v", ctx[0]["note"], ctx[9]["note"])
	}
}

func TestActiveInstructions(t *testing.T) {
	s := NewSession(100)
	s.RecordObservation("noise")
	for i := 0; i < 5; i++ {
		s.RecordInstruction(fmt.Sprintf("instruction %d", i))
		s.RecordObservation("more noise")
	}

	got := s.ActiveInstructions(3)
	if len(got) != 3 {
		t.Fatalf("instructions = %d, want 3", len(got))
	}
	// Most recent three, chronological.
	for i, want := range []string{"instruction 2", "instruction 3", "instruction 4"} {
		if got[i] != want {
			t.Errorf("instructions[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestSessionSinkReceivesEntries(t *testing.T) {
	s := NewSession(2)
	var seen []Entry
	s.SetSink(func(e Entry) { seen = append(seen, e) })

	for i := 0; i < 4; i++ {
		s.RecordObservation(fmt.Sprintf("n%d", i))
	}

	// The sink sees every entry even though the session evicts.
	if len(seen) != 4 {
		t.Fatalf("sink saw %d entries, want 4", len(seen))
	}
	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", s.Size())
	}
}
