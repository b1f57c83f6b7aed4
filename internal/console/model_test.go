package console

import "testing"

func TestModelInitDefaults(t *testing.T) {
	m := NewModel()
	m.Init(32, 16)

	if got := m.ChannelCount(); got != 32 {
		t.Fatalf("ChannelCount() = %d, want 32", got)
	}
	if got := m.BusCount(); got != 16 {
		t.Fatalf("BusCount() = %d, want 16", got)
	}

	ch := m.Channel(1)
	if ch.Index != 1 {
		t.Errorf("channel index = %d, want 1", ch.Index)
	}
	if ch.Fader != 0.75 {
		t.Errorf("default fader = %v, want 0.75", ch.Fader)
	}
	if len(ch.Sends) != 16 {
		t.Errorf("sends len = %d, want 16", len(ch.Sends))
	}
	if ch.Eq[0].Freq != 1000 || ch.Eq[0].Q != 1 {
		t.Errorf("default EQ band = %+v", ch.Eq[0])
	}
}

func TestModelApplyUpdateRoundTrip(t *testing.T) {
	m := NewModel()
	m.Init(8, 4)

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetChannel, Index: 3,
		Param: ParamFader, Value: FloatValue(0.42),
	})
	if got := m.Channel(3).Fader; got != 0.42 {
		t.Errorf("fader = %v, want 0.42", got)
	}

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetChannel, Index: 3,
		Param: ParamName, Value: StringValue("Kick"),
	})
	if got := m.Channel(3).Name; got != "Kick" {
		t.Errorf("name = %q, want Kick", got)
	}

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetChannel, Index: 3,
		Param: ParamMute, Value: BoolValue(true),
	})
	if !m.Channel(3).Muted {
		t.Error("channel not muted after mute update")
	}

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetChannel, Index: 3,
		Param: ParamEqBand2Gain, Value: FloatValue(-4.5),
	})
	if got := m.Channel(3).Eq[1].Gain; got != -4.5 {
		t.Errorf("eq band 2 gain = %v, want -4.5", got)
	}

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetChannel, Index: 3, AuxIndex: 2,
		Param: ParamSendLevel, Value: FloatValue(0.6),
	})
	if got := m.Channel(3).Sends[1]; got != 0.6 {
		t.Errorf("send 2 = %v, want 0.6", got)
	}

	m.ApplyUpdate(ParameterUpdate{
		Target: TargetBus, Index: 2,
		Param: ParamFader, Value: FloatValue(0.33),
	})
	if got := m.Bus(2).Fader; got != 0.33 {
		t.Errorf("bus fader = %v, want 0.33", got)
	}
}

func TestModelOutOfRangeIsNoop(t *testing.T) {
	m := NewModel()
	m.Init(4, 2)

	for _, idx := range []int{0, -1, 5, 100} {
		m.ApplyUpdate(ParameterUpdate{
			Target: TargetChannel, Index: idx,
			Param: ParamFader, Value: FloatValue(0.1),
		})
		m.UpdateMeter(idx, -3, -1)
		m.UpdateSpectral(idx, SpectralData{Bass: -10})
	}

	for ch := 1; ch <= 4; ch++ {
		if got := m.Channel(ch).Fader; got != 0.75 {
			t.Errorf("ch%d fader changed to %v", ch, got)
		}
	}

	// Reads are also safe.
	if snap := m.Channel(0); snap.Index != 0 {
		t.Errorf("Channel(0) = %+v, want zero snapshot", snap)
	}
	if snap := m.Channel(99); snap.Index != 0 {
		t.Errorf("Channel(99) = %+v, want zero snapshot", snap)
	}
}

func TestModelMeterAndSpectralSeparate(t *testing.T) {
	m := NewModel()
	m.Init(2, 2)

	m.UpdateMeter(1, -20, -12)
	ch := m.Channel(1)
	if ch.RmsDB != -20 || ch.PeakDB != -12 {
		t.Errorf("meter = %v/%v, want -20/-12", ch.RmsDB, ch.PeakDB)
	}
	// Meters never write spectral data.
	if ch.Spectral.Bass != 0 {
		t.Errorf("spectral bass = %v after meter update", ch.Spectral.Bass)
	}

	m.UpdateSpectral(1, SpectralData{Bass: -8, Mid: -14, Presence: -22, CrestFactor: 9})
	sp := m.Channel(1).Spectral
	if sp.Bass != -8 || sp.Mid != -14 {
		t.Errorf("spectral = %+v", sp)
	}
}

func TestModelSnapshotsAreCopies(t *testing.T) {
	m := NewModel()
	m.Init(2, 4)

	snap := m.Channel(1)
	snap.Sends[0] = 0.9
	snap.Name = "mutated"

	fresh := m.Channel(1)
	if fresh.Sends[0] != 0 || fresh.Name != "" {
		t.Error("mutating a snapshot leaked into the model")
	}
}
