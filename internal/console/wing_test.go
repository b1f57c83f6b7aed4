package console

import (
	"math"
	"testing"

	"mixagent/internal/console/osc"
)

func TestWingDecodeUnpaddedChannelPath(t *testing.T) {
	sink := &recordingSink{}
	a := NewWingAdapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeFloat("/ch/7/fader", 0.6))
	a.handleDatagram(osc.EncodeFloat("/ch/37/eq/5/gain", -2.5))

	if len(sink.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(sink.updates))
	}
	if sink.updates[0].Index != 7 || sink.updates[0].Param != ParamFader {
		t.Errorf("update[0] = %+v", sink.updates[0])
	}
	if sink.updates[1].Index != 37 || sink.updates[1].Param != ParamEqBand5Gain {
		t.Errorf("update[1] = %+v", sink.updates[1])
	}
	if math.Abs(sink.updates[1].Value.AsFloat()-(-2.5)) > 1e-6 {
		t.Errorf("eq gain = %v, want -2.5", sink.updates[1].Value.AsFloat())
	}
}

func TestWingDecodeMuteIsDirect(t *testing.T) {
	sink := &recordingSink{}
	a := NewWingAdapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeInt("/ch/2/mute", 1))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	if !sink.updates[0].Value.AsBool() {
		t.Error("mute=1 decoded as unmuted")
	}
}

func TestWingDecodeSendLevel(t *testing.T) {
	sink := &recordingSink{}
	a := NewWingAdapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeFloat("/ch/4/send/9/level", 0.35))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Param != ParamSendLevel || u.Index != 4 || u.AuxIndex != 9 {
		t.Errorf("update = %+v", u)
	}
	if math.Abs(u.Value.AsFloat()-0.35) > 1e-6 {
		t.Errorf("level = %v, want 0.35", u.Value.AsFloat())
	}
}

func TestWingDecodeBusAndName(t *testing.T) {
	sink := &recordingSink{}
	a := NewWingAdapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeString("/ch/11/name", "GTR L"))
	a.handleDatagram(osc.EncodeFloat("/bus/12/fader", 0.5))

	if len(sink.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(sink.updates))
	}
	if sink.updates[0].Param != ParamName || sink.updates[0].Value.AsString() != "GTR L" {
		t.Errorf("name update = %+v", sink.updates[0])
	}
	if sink.updates[1].Target != TargetBus || sink.updates[1].Index != 12 {
		t.Errorf("bus update = %+v", sink.updates[1])
	}
}
