package action

import (
	"encoding/json"
	"testing"
)

func TestFromJSONDefaults(t *testing.T) {
	a := FromJSON(json.RawMessage(`{}`))
	if a.Type != NoAction {
		t.Errorf("type = %v, want NoAction", a.Type)
	}
	if a.Channel != 0 || a.Value != 0 || a.Value2 != 0 {
		t.Errorf("numeric defaults wrong: %+v", a)
	}
	if a.Value3 != 1 {
		t.Errorf("value3 default = %v, want 1", a.Value3)
	}
	if a.Band != 1 {
		t.Errorf("band default = %v, want 1", a.Band)
	}
	if a.Urgency != Normal {
		t.Errorf("urgency default = %v, want Normal", a.Urgency)
	}
}

func TestFromJSONUnknownActionAndUrgency(t *testing.T) {
	a := FromJSON(json.RawMessage(`{"action":"explode","urgency":"yesterday"}`))
	if a.Type != NoAction {
		t.Errorf("unknown action -> %v, want NoAction", a.Type)
	}
	if a.Urgency != Normal {
		t.Errorf("unknown urgency -> %v, want Normal", a.Urgency)
	}
}

func TestFromJSONGarbageNeverFails(t *testing.T) {
	for _, raw := range []string{``, `null`, `"string"`, `42`, `{bad`} {
		a := FromJSON(json.RawMessage(raw))
		if a.Type != NoAction {
			t.Errorf("FromJSON(%q).Type = %v, want NoAction", raw, a.Type)
		}
	}
}

func TestFromJSONFullAction(t *testing.T) {
	raw := `{
		"action": "set_eq", "channel": 4, "role": "LeadVocal",
		"value": 3200, "value2": -2.5, "value3": 2.0, "band": 3,
		"urgency": "fast", "reason": "tame harshness"
	}`
	a := FromJSON(json.RawMessage(raw))

	if a.Type != SetEqBand || a.Channel != 4 || a.Band != 3 {
		t.Errorf("parsed = %+v", a)
	}
	if a.Value != 3200 || a.Value2 != -2.5 || a.Value3 != 2 {
		t.Errorf("values = %v/%v/%v", a.Value, a.Value2, a.Value3)
	}
	if a.Urgency != Fast || a.Role != "LeadVocal" || a.Reason != "tame harshness" {
		t.Errorf("parsed = %+v", a)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := Action{
		Type:    SetCompressor,
		Channel: 7,
		Value:   -18,
		Value2:  4,
		Value3:  1,
		Band:    1,
		Urgency: Low,
		Reason:  "smooth out vocal dynamics",
		Role:    "LeadVocal",
	}

	data, err := json.Marshal(orig.ToJSON())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back := FromJSON(data)

	if back.Type != orig.Type || back.Channel != orig.Channel {
		t.Errorf("round trip: %+v", back)
	}
	if back.Value != orig.Value || back.Value2 != orig.Value2 || back.Value3 != orig.Value3 {
		t.Errorf("values: %v/%v/%v", back.Value, back.Value2, back.Value3)
	}
	if back.Band != orig.Band || back.Urgency != orig.Urgency {
		t.Errorf("band/urgency: %v/%v", back.Band, back.Urgency)
	}
	if back.Reason != orig.Reason || back.Role != orig.Role {
		t.Errorf("reason/role: %q/%q", back.Reason, back.Role)
	}
}

func TestDescribe(t *testing.T) {
	a := Action{Type: SetFader, Channel: 3, Role: "Kick", Value: 0.8}
	want := "Set ch3 (Kick) fader to 80%"
	if got := a.Describe(); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
