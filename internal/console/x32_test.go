package console

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"mixagent/internal/console/osc"
)

// recordingSink captures sink invocations for adapter decode tests.
type recordingSink struct {
	mu      sync.Mutex
	updates []ParameterUpdate
	meters  []meterEvent
	conns   []bool
}

type meterEvent struct {
	ch          int
	rmsDB, peak float64
}

func (s *recordingSink) HandleParameterUpdate(u ParameterUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *recordingSink) HandleMeterUpdate(ch int, rmsDB, peakDB float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meters = append(s.meters, meterEvent{ch, rmsDB, peakDB})
}

func (s *recordingSink) HandleConnectionChange(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, connected)
}

func TestX32DecodeFaderUpdate(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeFloat("/ch/07/mix/fader", 0.8))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Target != TargetChannel || u.Index != 7 || u.Param != ParamFader {
		t.Errorf("update = %+v", u)
	}
	if math.Abs(u.Value.AsFloat()-0.8) > 1e-6 {
		t.Errorf("value = %v, want 0.8", u.Value.AsFloat())
	}
}

func TestX32DecodeMuteInversion(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	// /mix/on = 1 means channel ON, i.e. unmuted.
	a.handleDatagram(osc.EncodeInt("/ch/01/mix/on", 1))
	a.handleDatagram(osc.EncodeInt("/ch/01/mix/on", 0))

	if len(sink.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(sink.updates))
	}
	if sink.updates[0].Value.AsBool() {
		t.Error("on=1 decoded as muted")
	}
	if !sink.updates[1].Value.AsBool() {
		t.Error("on=0 decoded as unmuted")
	}
}

func TestX32DecodeNameUpdate(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeString("/ch/12/config/name", "Vox L"))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Param != ParamName || u.Value.AsString() != "Vox L" {
		t.Errorf("update = %+v", u)
	}
}

func TestX32DecodeBusUpdate(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeFloat("/bus/03/mix/fader", 0.5))

	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Target != TargetBus || u.Index != 3 || u.Param != ParamFader {
		t.Errorf("update = %+v", u)
	}
}

func TestX32DecodeMeterBlob(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	var b bytes.Buffer
	b.WriteString("/meters\x00")
	b.WriteString(",b\x00\x00")
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:], math.Float32bits(1.0))    // 0 dBFS
	binary.BigEndian.PutUint32(payload[4:], math.Float32bits(0.1))    // -20 dBFS
	binary.BigEndian.PutUint32(payload[8:], math.Float32bits(0.0))    // floor
	binary.Write(&b, binary.BigEndian, uint32(len(payload)))
	b.Write(payload)

	a.handleDatagram(b.Bytes())

	if len(sink.meters) != 3 {
		t.Fatalf("meters = %d, want 3", len(sink.meters))
	}
	if sink.meters[0].ch != 1 || math.Abs(sink.meters[0].rmsDB) > 1e-6 {
		t.Errorf("meter[0] = %+v", sink.meters[0])
	}
	if math.Abs(sink.meters[1].rmsDB-(-20)) > 0.01 {
		t.Errorf("meter[1] rms = %v, want -20", sink.meters[1].rmsDB)
	}
	if sink.meters[2].rmsDB != -96 {
		t.Errorf("meter[2] rms = %v, want -96 floor", sink.meters[2].rmsDB)
	}
}

func TestX32DroppedFrameCounting(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	a.handleDatagram([]byte("garbage"))
	a.handleDatagram([]byte{0x01, 0x02})

	if got := a.DroppedFrames(); got != 2 {
		t.Errorf("DroppedFrames() = %d, want 2", got)
	}
	if len(sink.updates) != 0 {
		t.Errorf("updates fired for garbage: %+v", sink.updates)
	}
}

func TestX32UnmappedAddressIgnored(t *testing.T) {
	sink := &recordingSink{}
	a := NewX32Adapter(nil)
	a.SetSink(sink)

	a.handleDatagram(osc.EncodeString("/xinfo", "X32 RACK"))
	a.handleDatagram(osc.EncodeFloat("/ch/01/unknown/path", 0.5))

	if len(sink.updates) != 0 {
		t.Errorf("updates = %+v, want none", sink.updates)
	}
	if got := a.DroppedFrames(); got != 0 {
		t.Errorf("DroppedFrames() = %d, want 0 (unmapped, not malformed)", got)
	}
}
