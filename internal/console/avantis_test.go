package console

import (
	"encoding/binary"
	"math"
	"testing"
)

func avantisParamPayload(ch int, id uint16, value float32) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint16(payload[0:], uint16(ch))
	binary.BigEndian.PutUint16(payload[2:], id)
	binary.BigEndian.PutUint32(payload[4:], math.Float32bits(value))
	return payload
}

func TestAvantisDecodeFaderFrame(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	a.handleFrame(avantisMsgSetParam, avantisParamPayload(12, 0x0001, 0.7))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Index != 12 || u.Param != ParamFader {
		t.Errorf("update = %+v", u)
	}
	if math.Abs(u.Value.AsFloat()-0.7) > 1e-6 {
		t.Errorf("value = %v, want 0.7", u.Value.AsFloat())
	}
}

func TestAvantisDecodeSwitchAsBool(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	a.handleFrame(avantisMsgSetParam, avantisParamPayload(3, 0x0002, 1)) // mute on
	a.handleFrame(avantisMsgSetParam, avantisParamPayload(3, 0x0044, 0)) // comp off

	if len(sink.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(sink.updates))
	}
	if sink.updates[0].Param != ParamMute || !sink.updates[0].Value.AsBool() {
		t.Errorf("mute update = %+v", sink.updates[0])
	}
	if sink.updates[1].Param != ParamCompOn || sink.updates[1].Value.AsBool() {
		t.Errorf("comp update = %+v", sink.updates[1])
	}
}

func TestAvantisDecodeSendLevelRange(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	// Send level IDs are 0x0200 + (bus-1).
	a.handleFrame(avantisMsgSetParam, avantisParamPayload(5, avantisSendLevelBase+6, 0.25))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Param != ParamSendLevel || u.Index != 5 || u.AuxIndex != 7 {
		t.Errorf("update = %+v", u)
	}
}

func TestAvantisDecodeMeterFrame(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:], math.Float32bits(1.0))
	binary.BigEndian.PutUint32(payload[4:], math.Float32bits(0.01))

	a.handleFrame(avantisMsgMeter, payload)

	if len(sink.meters) != 2 {
		t.Fatalf("meters = %d, want 2", len(sink.meters))
	}
	if sink.meters[0].ch != 1 || math.Abs(sink.meters[0].rmsDB) > 1e-6 {
		t.Errorf("meter[0] = %+v", sink.meters[0])
	}
	if math.Abs(sink.meters[1].rmsDB-(-40)) > 0.01 {
		t.Errorf("meter[1] rms = %v, want -40", sink.meters[1].rmsDB)
	}
}

func TestAvantisShortParamFrameDropped(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	a.handleFrame(avantisMsgSetParam, []byte{0x00, 0x01})

	if len(sink.updates) != 0 {
		t.Errorf("updates = %+v, want none", sink.updates)
	}
	if got := a.DroppedFrames(); got != 1 {
		t.Errorf("DroppedFrames() = %d, want 1", got)
	}
}

func TestAvantisUnknownParamIgnored(t *testing.T) {
	sink := &recordingSink{}
	a := NewAvantisAdapter(nil)
	a.SetSink(sink)

	a.handleFrame(avantisMsgSetParam, avantisParamPayload(1, 0x7777, 0.5))

	if len(sink.updates) != 0 {
		t.Errorf("updates = %+v, want none", sink.updates)
	}
}

func TestAvantisParamIDRoundTrip(t *testing.T) {
	params := []ChannelParam{
		ParamFader, ParamMute, ParamPan, ParamGain,
		ParamHighPassFreq, ParamHighPassOn,
		ParamEqBand1Freq, ParamEqBand2Gain, ParamEqBand3Q, ParamEqBand4Freq,
		ParamCompThreshold, ParamCompRatio, ParamCompOn,
		ParamGateThreshold, ParamGateOn,
	}
	for _, p := range params {
		id := avantisParamID(p)
		if id == avantisParamInvalid {
			t.Errorf("param %d has no wire ID", p)
			continue
		}
		back, _, ok := avantisParamFromID(id)
		if !ok || back != p {
			t.Errorf("param %d -> id 0x%04x -> %d (ok=%v)", p, id, back, ok)
		}
	}
}
