package action

import (
	"math"
	"testing"

	"mixagent/internal/console"
)

func newTestModel(t *testing.T) *console.Model {
	t.Helper()
	m := console.NewModel()
	m.Init(16, 8)
	return m
}

func TestValidateFaderClampsDelta(t *testing.T) {
	m := newTestModel(t)
	m.ApplyUpdate(console.ParameterUpdate{
		Target: console.TargetChannel, Index: 3,
		Param: console.ParamFader, Value: console.FloatValue(0.5),
	})

	v := NewValidator(DefaultSafetyLimits(), nil)
	r := v.Validate(Action{Type: SetFader, Channel: 3, Value: 1.0}, m)

	if !r.Valid {
		t.Fatal("valid = false, want true")
	}
	if math.Abs(r.Clamped.Value-0.65) > 1e-9 {
		t.Errorf("clamped value = %v, want 0.65", r.Clamped.Value)
	}
	if r.Warning == "" {
		t.Error("warning empty after clamping")
	}
}

func TestValidateFaderSmallMoveUntouched(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	// Default fader is 0.75; 0.70 is within the delta limit.
	r := v.Validate(Action{Type: SetFader, Channel: 1, Value: 0.70}, m)
	if !r.Valid || r.Warning != "" {
		t.Fatalf("result = %+v", r)
	}
	if r.Clamped.Value != 0.70 {
		t.Errorf("value = %v, want 0.70", r.Clamped.Value)
	}
}

func TestValidateFaderInvalidChannel(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	for _, ch := range []int{0, -3, 17} {
		r := v.Validate(Action{Type: SetFader, Channel: ch, Value: 0.5}, m)
		if r.Valid {
			t.Errorf("channel %d validated", ch)
		}
		if r.Warning == "" {
			t.Errorf("channel %d: empty warning", ch)
		}
	}
}

func TestValidateFaderRangeClamp(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	// Target below 0 clamps to 0 first, then the delta limit applies
	// from current 0.75.
	r := v.Validate(Action{Type: SetFader, Channel: 1, Value: -0.4}, m)
	if math.Abs(r.Clamped.Value-0.6) > 1e-9 {
		t.Errorf("value = %v, want 0.6", r.Clamped.Value)
	}
}

func TestValidateEqClamps(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	r := v.Validate(Action{
		Type: SetEqBand, Channel: 2, Band: 1,
		Value: 5, Value2: 9, Value3: 50,
	}, m)

	if !r.Valid {
		t.Fatal("valid = false")
	}
	if r.Clamped.Value != 20 {
		t.Errorf("freq = %v, want 20 (floor)", r.Clamped.Value)
	}
	if r.Clamped.Value2 != 3 {
		t.Errorf("gain = %v, want 3 (max boost)", r.Clamped.Value2)
	}
	if r.Clamped.Value3 != 20 {
		t.Errorf("q = %v, want 20", r.Clamped.Value3)
	}
	if r.Warning == "" {
		t.Error("warning empty after clamping")
	}

	r = v.Validate(Action{Type: SetEqBand, Channel: 2, Band: 1, Value: 400, Value2: -30, Value3: 1}, m)
	if r.Clamped.Value2 != -12 {
		t.Errorf("cut = %v, want -12", r.Clamped.Value2)
	}
}

func TestValidateCompClamps(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	r := v.Validate(Action{Type: SetCompressor, Channel: 1, Value: -80, Value2: 50}, m)
	if r.Clamped.Value != -50 {
		t.Errorf("threshold = %v, want -50", r.Clamped.Value)
	}
	if r.Clamped.Value2 != 20 {
		t.Errorf("ratio = %v, want 20", r.Clamped.Value2)
	}

	r = v.Validate(Action{Type: SetCompressor, Channel: 1, Value: 5, Value2: 0.5}, m)
	if r.Clamped.Value != 0 {
		t.Errorf("threshold = %v, want 0", r.Clamped.Value)
	}
	if r.Clamped.Value2 != 1 {
		t.Errorf("ratio = %v, want 1", r.Clamped.Value2)
	}
}

func TestValidateHpfClamps(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	r := v.Validate(Action{Type: SetHighPass, Channel: 1, Value: 900}, m)
	if r.Clamped.Value != 400 {
		t.Errorf("hpf = %v, want 400", r.Clamped.Value)
	}
	if r.Warning == "" {
		t.Error("warning empty after clamping")
	}

	r = v.Validate(Action{Type: SetHighPass, Channel: 1, Value: 5}, m)
	if r.Clamped.Value != 20 {
		t.Errorf("hpf = %v, want 20", r.Clamped.Value)
	}
}

func TestValidateSendClamps(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	r := v.Validate(Action{Type: SetSendLevel, Channel: 1, Aux: 2, Value: 1.7}, m)
	if r.Clamped.Value != 1 {
		t.Errorf("send = %v, want 1", r.Clamped.Value)
	}
	r = v.Validate(Action{Type: SetSendLevel, Channel: 0, Aux: 2, Value: 0.5}, m)
	if r.Valid {
		t.Error("invalid channel validated")
	}
}

func TestValidateAlwaysValidKinds(t *testing.T) {
	m := newTestModel(t)
	v := NewValidator(DefaultSafetyLimits(), nil)

	for _, typ := range []Type{MuteChannel, UnmuteChannel, NoAction, Observation} {
		r := v.Validate(Action{Type: typ, Channel: 1}, m)
		if !r.Valid {
			t.Errorf("type %v invalid", typ)
		}
	}
}
