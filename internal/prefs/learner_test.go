package prefs

import (
	"math"
	"path/filepath"
	"testing"

	"mixagent/internal/action"
)

func TestBuildPreferencesNeedsData(t *testing.T) {
	l := NewLearner()
	if p := l.BuildPreferences(); p != nil {
		t.Errorf("empty learner produced preferences: %v", p)
	}

	// Five decisions are not enough for an overall rate.
	for i := 0; i < 5; i++ {
		l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.7}, "Kick")
	}
	p := l.BuildPreferences()
	if p == nil {
		t.Fatal("preferences nil with role data present")
	}
	if _, ok := p["overall_approval_rate"]; ok {
		t.Error("overall_approval_rate present with only 5 decisions")
	}
}

func TestOverallApprovalRateAndNotes(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 9; i++ {
		l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.7}, "Kick")
	}
	l.RecordRejection(action.Action{Type: action.SetFader, Value: 0.9}, "Kick")

	p := l.BuildPreferences()
	if got := p["overall_approval_rate"]; got != 0.9 {
		t.Errorf("overall_approval_rate = %v, want 0.9", got)
	}
	if p["note"] != "Engineer trusts AI suggestions — confidence is appropriate" {
		t.Errorf("note = %v", p["note"])
	}

	// A rejecting engineer gets the conservative note.
	l2 := NewLearner()
	for i := 0; i < 2; i++ {
		l2.RecordApproval(action.Action{Type: action.SetFader, Value: 0.5}, "Keys")
	}
	for i := 0; i < 8; i++ {
		l2.RecordRejection(action.Action{Type: action.SetFader, Value: 0.5}, "Keys")
	}
	p2 := l2.BuildPreferences()
	if p2["note"] != "Engineer rejects many suggestions — be more conservative" {
		t.Errorf("note = %v", p2["note"])
	}
}

func TestPerRolePreferences(t *testing.T) {
	l := NewLearner()

	// Kick: six approvals with fader/comp/hpf data.
	l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.6}, "Kick")
	l.RecordApproval(action.Action{Type: action.SetCompressor, Value: -18, Value2: 4}, "Kick")
	l.RecordApproval(action.Action{Type: action.SetCompressor, Value: -20, Value2: 6}, "Kick")
	l.RecordApproval(action.Action{Type: action.SetCompressor, Value: -16, Value2: 5}, "Kick")
	l.RecordApproval(action.Action{Type: action.SetHighPass, Value: 60}, "Kick")
	l.RecordApproval(action.Action{Type: action.SetHighPass, Value: 80}, "Kick")

	// Snare has too little data for a role block.
	l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.5}, "Snare")

	p := l.BuildPreferences()
	rolePrefs, ok := p["role_preferences"].(map[string]any)
	if !ok {
		t.Fatalf("role_preferences missing: %v", p)
	}
	if _, ok := rolePrefs["Snare"]; ok {
		t.Error("Snare block present with < 3 decisions")
	}

	kick, ok := rolePrefs["Kick"].(map[string]any)
	if !ok {
		t.Fatalf("Kick block missing: %v", rolePrefs)
	}
	if kick["approval_rate"] != 1.0 {
		t.Errorf("approval_rate = %v, want 1", kick["approval_rate"])
	}
	if kick["preferred_fader_range"] != 0.6 {
		t.Errorf("preferred_fader_range = %v, want 0.6", kick["preferred_fader_range"])
	}
	if kick["preferred_comp_ratio"] != 5.0 {
		t.Errorf("preferred_comp_ratio = %v, want 5", kick["preferred_comp_ratio"])
	}
	if kick["preferred_hpf_hz"] != 70 {
		t.Errorf("preferred_hpf_hz = %v, want 70", kick["preferred_hpf_hz"])
	}
}

func TestLeaveItAloneWarning(t *testing.T) {
	l := NewLearner()
	l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.5}, "Overhead")
	for i := 0; i < 4; i++ {
		l.RecordRejection(action.Action{Type: action.SetFader, Value: 0.5}, "Overhead")
	}

	p := l.BuildPreferences()
	rp := p["role_preferences"].(map[string]any)["Overhead"].(map[string]any)
	if rp["warning"] != "engineer frequently rejects changes to this — leave it alone unless asked" {
		t.Errorf("warning = %v", rp["warning"])
	}
}

func TestEqTendency(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 2; i++ {
		l.RecordApproval(action.Action{Type: action.SetEqBand, Value2: -3}, "LeadVocal")
	}
	for i := 0; i < 3; i++ {
		l.RecordRejection(action.Action{Type: action.SetEqBand, Value2: 2}, "LeadVocal")
	}

	p := l.BuildPreferences()
	if p["eq_tendency"] != "Engineer prefers cuts over boosts — use subtractive EQ" {
		t.Errorf("eq_tendency = %v", p["eq_tendency"])
	}
}

func TestInstructionsRollOver(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 25; i++ {
		l.RecordInstruction("instruction")
	}
	if got := len(l.Instructions()); got != 20 {
		t.Errorf("instructions = %d, want cap 20", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	l := NewLearner()
	l.RecordInstruction("keep vocals on top")
	for i := 0; i < 6; i++ {
		l.RecordApproval(action.Action{Type: action.SetFader, Value: 0.65}, "LeadVocal")
	}
	l.RecordRejection(action.Action{Type: action.SetFader, Value: 0.2}, "LeadVocal")

	if !l.IsDirty() {
		t.Fatal("learner not dirty after recording")
	}
	if err := l.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if l.IsDirty() {
		t.Error("dirty after save")
	}

	before := l.BuildPreferences()

	restored := NewLearner()
	if err := restored.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	after := restored.BuildPreferences()

	if got := restored.Instructions(); len(got) != 1 || got[0] != "keep vocals on top" {
		t.Errorf("instructions = %v", got)
	}

	rateA, _ := before["overall_approval_rate"].(float64)
	rateB, _ := after["overall_approval_rate"].(float64)
	if math.Abs(rateA-rateB) > 1e-9 {
		t.Errorf("approval rate drifted: %v vs %v", rateA, rateB)
	}

	rpA := before["role_preferences"].(map[string]any)["LeadVocal"].(map[string]any)
	rpB := after["role_preferences"].(map[string]any)["LeadVocal"].(map[string]any)
	if rpA["preferred_fader_range"] != rpB["preferred_fader_range"] {
		t.Errorf("fader range drifted: %v vs %v",
			rpA["preferred_fader_range"], rpB["preferred_fader_range"])
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	l := NewLearner()
	if err := l.LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadFile on missing path succeeded")
	}
}
