package analysis

import (
	"encoding/json"
	"testing"

	"mixagent/internal/console"
	"mixagent/internal/discovery"
)

func bridgeFixture(t *testing.T) (*console.Model, *discovery.Map) {
	t.Helper()
	m := console.NewModel()
	m.Init(4, 2)
	cm := discovery.NewMap(4)

	// ch1: named, with signal.
	p := cm.Profile(1)
	p.ConsoleName = "Kick"
	p.Role = discovery.RoleKick
	p.Group = "drums"
	p.Fingerprint.HasSignal = true
	cm.UpdateProfile(p)
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 1,
		Param: console.ParamName, Value: console.StringValue("Kick"),
	})
	m.UpdateMeter(1, -18, -9)

	// ch2: unnamed and silent — omitted from the document.
	return m, cm
}

func TestBuildMixStateOmitsSilentUnnamed(t *testing.T) {
	m, cm := bridgeFixture(t)

	state := BuildMixState(m, cm, nil)
	channels := state["channels"].([]map[string]any)
	if len(channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(channels))
	}
	ch := channels[0]
	if ch["index"] != 1 || ch["name"] != "Kick" || ch["role"] != "Kick" {
		t.Errorf("channel = %v", ch)
	}
	if ch["rms_db"] != -18.0 || ch["has_signal"] != true {
		t.Errorf("levels = %v/%v", ch["rms_db"], ch["has_signal"])
	}

	if _, ok := state["issues"]; ok {
		t.Error("issues present with none detected")
	}
}

func TestBuildMixStateConditionalBlocks(t *testing.T) {
	m, cm := bridgeFixture(t)

	// Flat EQ band: excluded. Non-flat: included.
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 1,
		Param: console.ParamEqBand2Gain, Value: console.FloatValue(-3.5),
	})
	// HPF on but at 20 Hz: excluded. Above 20: included.
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 1,
		Param: console.ParamHighPassOn, Value: console.BoolValue(true),
	})
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 1,
		Param: console.ParamHighPassFreq, Value: console.FloatValue(80),
	})
	// Comp off: excluded.

	state := BuildMixState(m, cm, nil)
	ch := state["channels"].([]map[string]any)[0]

	eq, ok := ch["eq"].([]map[string]any)
	if !ok || len(eq) != 1 {
		t.Fatalf("eq = %v", ch["eq"])
	}
	if eq[0]["band"] != 2 || eq[0]["gain"] != -3.5 {
		t.Errorf("eq[0] = %v", eq[0])
	}

	if ch["hpf_hz"] != 80.0 {
		t.Errorf("hpf_hz = %v", ch["hpf_hz"])
	}
	if _, ok := ch["comp"]; ok {
		t.Error("comp present while off")
	}
	if _, ok := ch["gate"]; ok {
		t.Error("gate present while off")
	}

	// Turn the comp on: now included.
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 1,
		Param: console.ParamCompOn, Value: console.BoolValue(true),
	})
	state = BuildMixState(m, cm, nil)
	ch = state["channels"].([]map[string]any)[0]
	if _, ok := ch["comp"]; !ok {
		t.Error("comp missing while on")
	}
}

func TestBuildMixStateIssues(t *testing.T) {
	m, cm := bridgeFixture(t)

	issues := []Issue{
		{Type: IssueMasking, Channel: 1, Channel2: 2, FreqHz: 200, Severity: 0.7, Description: "ch1 & ch2 masking @200Hz"},
	}
	state := BuildMixState(m, cm, issues)

	out, ok := state["issues"].([]map[string]any)
	if !ok || len(out) != 1 {
		t.Fatalf("issues = %v", state["issues"])
	}
	if out[0]["type"] != "masking" || out[0]["channel2"] != 2 || out[0]["freq_hz"] != 200 {
		t.Errorf("issue = %v", out[0])
	}
}

func TestBuildMixStateMarshals(t *testing.T) {
	m, cm := bridgeFixture(t)
	state := BuildMixState(m, cm, []Issue{{Type: IssueClipping, Channel: 1, Severity: 1, Description: "x"}})

	if _, err := json.Marshal(state); err != nil {
		t.Fatalf("mix state does not marshal: %v", err)
	}
}

func TestBuildCompactState(t *testing.T) {
	m, cm := bridgeFixture(t)
	state := BuildCompactState(m, cm)

	chs := state["ch"].([]map[string]any)
	if len(chs) != 1 {
		t.Fatalf("compact channels = %d, want 1", len(chs))
	}
	ch := chs[0]
	for _, key := range []string{"i", "r", "f", "db", "pk"} {
		if _, ok := ch[key]; !ok {
			t.Errorf("compact entry missing %q", key)
		}
	}
	if len(ch) != 5 {
		t.Errorf("compact entry has %d keys, want 5", len(ch))
	}
}
