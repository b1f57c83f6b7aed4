package console

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	avantisDefaultPort      = 51325
	avantisKeepaliveInterval = 5 * time.Second

	// Frame types of the A&H binary protocol.
	avantisMsgHeartbeat = 0x0000
	avantisMsgQuery     = 0x0001
	avantisMsgSetParam  = 0x0002
	avantisMsgMeter     = 0x0010

	// Send-level parameter IDs occupy a dense range starting here, one
	// per bus.
	avantisSendLevelBase = 0x0200
)

// AvantisAdapter speaks the Allen & Heath Avantis binary protocol over
// TCP. Frames are [len:u16 BE][msgType:u16 BE][payload]; len covers the
// whole frame including the header.
type AvantisAdapter struct {
	sink EventSink

	mu   sync.Mutex
	conn net.Conn

	connected atomic.Bool
	running   atomic.Bool
	dropped   atomic.Uint64

	recvDone chan struct{}

	timerMu       sync.Mutex
	lastKeepalive time.Time
	metering      bool

	logger *slog.Logger
}

// NewAvantisAdapter creates an adapter. The sink must be installed
// before Connect.
func NewAvantisAdapter(logger *slog.Logger) *AvantisAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvantisAdapter{
		sink:   NopSink{},
		logger: logger.With("adapter", "avantis"),
	}
}

// SetSink installs the event sink.
func (a *AvantisAdapter) SetSink(sink EventSink) {
	if sink == nil {
		sink = NopSink{}
	}
	a.sink = sink
}

// Capabilities describes the fixed Avantis topology.
func (a *AvantisAdapter) Capabilities() Capabilities {
	return Capabilities{
		Model:             "Avantis",
		ChannelCount:      64,
		BusCount:          24,
		DCACount:          24,
		FxSlots:           12,
		EqBands:           4,
		HasMotorizedFader: true,
		HasDynamicEq:      true,
		MeterUpdateRateMs: 50,
	}
}

// Connect opens the TCP connection and starts the receive loop.
func (a *AvantisAdapter) Connect(ip string, port int) bool {
	if port <= 0 {
		port = avantisDefaultPort
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), 5*time.Second)
	if err != nil {
		a.logger.Error("connect failed", "ip", ip, "port", port, "error", err)
		return false
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	a.connected.Store(true)
	a.running.Store(true)
	a.timerMu.Lock()
	a.lastKeepalive = time.Now()
	a.timerMu.Unlock()

	a.recvDone = make(chan struct{})
	go a.receiveLoop(conn)

	a.logger.Info("connected", "ip", ip, "port", port)
	a.sink.HandleConnectionChange(true)
	return true
}

// Disconnect stops the receive loop and closes the connection.
func (a *AvantisAdapter) Disconnect() {
	wasRunning := a.running.Swap(false)
	a.connected.Store(false)

	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	if wasRunning && a.recvDone != nil {
		<-a.recvDone
	}
	a.sink.HandleConnectionChange(false)
}

// IsConnected reports whether the connection is up.
func (a *AvantisAdapter) IsConnected() bool { return a.connected.Load() }

// RequestFullSync queries name, fader, and mute for every channel and
// name/fader for every bus.
func (a *AvantisAdapter) RequestFullSync() {
	a.logger.Info("requesting full state sync")
	caps := a.Capabilities()
	for ch := 1; ch <= caps.ChannelCount; ch++ {
		a.sendFrame(avantisMsgQuery, buildSetParam(ch, avantisParamID(ParamName), 0))
		a.sendFrame(avantisMsgQuery, buildSetParam(ch, avantisParamID(ParamFader), 0))
		a.sendFrame(avantisMsgQuery, buildSetParam(ch, avantisParamID(ParamMute), 0))
	}
	for bus := 1; bus <= caps.BusCount; bus++ {
		a.sendFrame(avantisMsgQuery, buildSetParam(bus, avantisBusName, 0))
		a.sendFrame(avantisMsgQuery, buildSetParam(bus, avantisBusFader, 0))
	}
}

// SetChannelParamFloat writes a float channel parameter.
func (a *AvantisAdapter) SetChannelParamFloat(ch int, param ChannelParam, value float64) {
	id := avantisParamID(param)
	if id == avantisParamInvalid {
		a.logger.Warn("unhandled float param", "channel", ch, "param", int(param))
		return
	}
	a.sendFrame(avantisMsgSetParam, buildSetParam(ch, id, value))
}

// SetChannelParamBool writes a switch parameter; switches travel as
// float 1.0/0.0 on this protocol.
func (a *AvantisAdapter) SetChannelParamBool(ch int, param ChannelParam, value bool) {
	id := avantisParamID(param)
	if id == avantisParamInvalid {
		a.logger.Warn("unhandled bool param", "channel", ch, "param", int(param))
		return
	}
	v := 0.0
	if value {
		v = 1.0
	}
	a.sendFrame(avantisMsgSetParam, buildSetParam(ch, id, v))
}

// SetChannelParamString is unsupported: channel naming uses a separate
// console-surface workflow on this protocol.
func (a *AvantisAdapter) SetChannelParamString(ch int, param ChannelParam, value string) {
	if param == ParamName {
		a.logger.Warn("name writes not supported", "channel", ch)
	}
}

// SetSendLevel writes a channel→bus send level.
func (a *AvantisAdapter) SetSendLevel(ch, bus int, level float64) {
	if bus < 1 {
		return
	}
	id := uint16(avantisSendLevelBase + bus - 1)
	a.sendFrame(avantisMsgSetParam, buildSetParam(ch, id, level))
}

// SetBusParamFloat writes a float bus parameter.
func (a *AvantisAdapter) SetBusParamFloat(bus int, param BusParam, value float64) {
	var id uint16
	switch param {
	case BusFader:
		id = avantisBusFader
	case BusPan:
		id = avantisBusPan
	default:
		return
	}
	a.sendFrame(avantisMsgSetParam, buildSetParam(bus, id, value))
}

// SubscribeMeter subscribes to meter frames.
func (a *AvantisAdapter) SubscribeMeter(refreshMs int) {
	a.timerMu.Lock()
	a.metering = true
	a.timerMu.Unlock()
	a.sendFrame(avantisMsgMeter, []byte{0x01})
}

// UnsubscribeMeter cancels the meter subscription.
func (a *AvantisAdapter) UnsubscribeMeter() {
	a.timerMu.Lock()
	a.metering = false
	a.timerMu.Unlock()
	a.sendFrame(avantisMsgMeter, []byte{0x00})
}

// Tick sends a heartbeat when due.
func (a *AvantisAdapter) Tick() {
	if !a.connected.Load() {
		return
	}
	now := time.Now()
	a.timerMu.Lock()
	due := now.Sub(a.lastKeepalive) > avantisKeepaliveInterval
	if due {
		a.lastKeepalive = now
	}
	a.timerMu.Unlock()
	if due {
		a.sendFrame(avantisMsgHeartbeat, nil)
	}
}

// DroppedFrames reports how many undecodable frames were discarded.
func (a *AvantisAdapter) DroppedFrames() uint64 { return a.dropped.Load() }

const (
	avantisParamInvalid uint16 = 0xFFFF

	// Bus parameter IDs live in their own range.
	avantisBusName  uint16 = 0x0100
	avantisBusFader uint16 = 0x0101
	avantisBusPan   uint16 = 0x0103
)

// avantisParamID maps a ChannelParam to its dense 16-bit wire code.
func avantisParamID(param ChannelParam) uint16 {
	switch param {
	case ParamFader:
		return 0x0001
	case ParamMute:
		return 0x0002
	case ParamPan:
		return 0x0003
	case ParamName:
		return 0x0004
	case ParamGain:
		return 0x0010
	case ParamPhantomPower:
		return 0x0011
	case ParamPhaseInvert:
		return 0x0012
	case ParamHighPassFreq:
		return 0x0020
	case ParamHighPassOn:
		return 0x0021
	case ParamEqOn:
		return 0x0030
	case ParamEqBand1Freq:
		return 0x0031
	case ParamEqBand1Gain:
		return 0x0032
	case ParamEqBand1Q:
		return 0x0033
	case ParamEqBand2Freq:
		return 0x0034
	case ParamEqBand2Gain:
		return 0x0035
	case ParamEqBand2Q:
		return 0x0036
	case ParamEqBand3Freq:
		return 0x0037
	case ParamEqBand3Gain:
		return 0x0038
	case ParamEqBand3Q:
		return 0x0039
	case ParamEqBand4Freq:
		return 0x003A
	case ParamEqBand4Gain:
		return 0x003B
	case ParamEqBand4Q:
		return 0x003C
	case ParamCompThreshold:
		return 0x0040
	case ParamCompRatio:
		return 0x0041
	case ParamCompAttack:
		return 0x0042
	case ParamCompRelease:
		return 0x0043
	case ParamCompOn:
		return 0x0044
	case ParamGateThreshold:
		return 0x0050
	case ParamGateRange:
		return 0x0051
	case ParamGateOn:
		return 0x0054
	}
	return avantisParamInvalid
}

// avantisParamFromID is the reverse mapping for incoming updates.
// isSwitch marks parameters whose float payload encodes a boolean.
func avantisParamFromID(id uint16) (param ChannelParam, isSwitch, ok bool) {
	switch id {
	case 0x0001:
		return ParamFader, false, true
	case 0x0002:
		return ParamMute, true, true
	case 0x0003:
		return ParamPan, false, true
	case 0x0010:
		return ParamGain, false, true
	case 0x0011:
		return ParamPhantomPower, true, true
	case 0x0012:
		return ParamPhaseInvert, true, true
	case 0x0020:
		return ParamHighPassFreq, false, true
	case 0x0021:
		return ParamHighPassOn, true, true
	case 0x0030:
		return ParamEqOn, true, true
	case 0x0031:
		return ParamEqBand1Freq, false, true
	case 0x0032:
		return ParamEqBand1Gain, false, true
	case 0x0033:
		return ParamEqBand1Q, false, true
	case 0x0034:
		return ParamEqBand2Freq, false, true
	case 0x0035:
		return ParamEqBand2Gain, false, true
	case 0x0036:
		return ParamEqBand2Q, false, true
	case 0x0037:
		return ParamEqBand3Freq, false, true
	case 0x0038:
		return ParamEqBand3Gain, false, true
	case 0x0039:
		return ParamEqBand3Q, false, true
	case 0x003A:
		return ParamEqBand4Freq, false, true
	case 0x003B:
		return ParamEqBand4Gain, false, true
	case 0x003C:
		return ParamEqBand4Q, false, true
	case 0x0040:
		return ParamCompThreshold, false, true
	case 0x0041:
		return ParamCompRatio, false, true
	case 0x0042:
		return ParamCompAttack, false, true
	case 0x0043:
		return ParamCompRelease, false, true
	case 0x0044:
		return ParamCompOn, true, true
	case 0x0050:
		return ParamGateThreshold, false, true
	case 0x0051:
		return ParamGateRange, false, true
	case 0x0054:
		return ParamGateOn, true, true
	}
	return ParamUnknown, false, false
}

// buildSetParam encodes [ch:u16][paramId:u16][valueBits:u32].
func buildSetParam(ch int, paramID uint16, value float64) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint16(payload[0:], uint16(ch))
	binary.BigEndian.PutUint16(payload[2:], paramID)
	binary.BigEndian.PutUint32(payload[4:], math.Float32bits(float32(value)))
	return payload
}

func (a *AvantisAdapter) sendFrame(msgType uint16, payload []byte) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint16(frame[0:], uint16(len(frame)))
	binary.BigEndian.PutUint16(frame[2:], msgType)
	copy(frame[4:], payload)

	if _, err := conn.Write(frame); err != nil {
		a.logger.Debug("send failed", "error", err)
	}
}

func (a *AvantisAdapter) receiveLoop(conn net.Conn) {
	defer close(a.recvDone)

	header := make([]byte, 4)
	for a.running.Load() {
		if !a.readFull(conn, header) {
			return
		}

		frameLen := int(binary.BigEndian.Uint16(header[0:]))
		msgType := binary.BigEndian.Uint16(header[2:])
		if frameLen < 4 {
			// A frame shorter than its own header means the stream is
			// corrupt; the safest recovery is dropping the connection.
			a.logger.Warn("corrupt frame length", "len", frameLen)
			a.dropped.Add(1)
			a.markDisconnected()
			return
		}

		payload := make([]byte, frameLen-4)
		if !a.readFull(conn, payload) {
			return
		}

		a.handleFrame(msgType, payload)
	}
}

// readFull fills buf, resuming across read deadlines so a frame split
// mid-header never desynchronises the stream. It returns false when
// the loop should exit (shutdown or socket error).
func (a *AvantisAdapter) readFull(conn net.Conn, buf []byte) bool {
	got := 0
	for got < len(buf) {
		if !a.running.Load() {
			return false
		}
		conn.SetReadDeadline(time.Now().Add(oscReadTimeout))
		n, err := conn.Read(buf[got:])
		got += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !a.running.Load() {
				return false
			}
			if err == io.EOF {
				a.logger.Warn("connection closed by remote")
			} else {
				a.logger.Warn("receive error", "error", err)
			}
			a.markDisconnected()
			return false
		}
	}
	return true
}

func (a *AvantisAdapter) markDisconnected() {
	a.connected.Store(false)
	a.sink.HandleConnectionChange(false)
}

func (a *AvantisAdapter) handleFrame(msgType uint16, payload []byte) {
	switch msgType {
	case avantisMsgSetParam:
		a.handleParamFrame(payload)
	case avantisMsgMeter:
		a.handleMeterFrame(payload)
	}
}

func (a *AvantisAdapter) handleParamFrame(payload []byte) {
	if len(payload) < 8 {
		a.dropped.Add(1)
		return
	}
	ch := int(binary.BigEndian.Uint16(payload[0:]))
	id := binary.BigEndian.Uint16(payload[2:])
	value := float64(math.Float32frombits(binary.BigEndian.Uint32(payload[4:])))

	// Send levels occupy a dense ID range, one per bus.
	if id >= avantisSendLevelBase && id < avantisSendLevelBase+uint16(a.Capabilities().BusCount) {
		a.sink.HandleParameterUpdate(ParameterUpdate{
			Target:   TargetChannel,
			Index:    ch,
			AuxIndex: int(id-avantisSendLevelBase) + 1,
			Param:    ParamSendLevel,
			Value:    FloatValue(value),
		})
		return
	}

	param, isSwitch, ok := avantisParamFromID(id)
	if !ok {
		return
	}

	v := FloatValue(value)
	if isSwitch {
		v = BoolValue(value != 0)
	}
	a.sink.HandleParameterUpdate(ParameterUpdate{
		Target: TargetChannel,
		Index:  ch,
		Param:  param,
		Value:  v,
	})
}

func (a *AvantisAdapter) handleMeterFrame(payload []byte) {
	max := a.Capabilities().ChannelCount
	ch := 1
	for off := 0; off+4 <= len(payload) && ch <= max; off += 4 {
		level := float64(math.Float32frombits(binary.BigEndian.Uint32(payload[off:])))
		db := levelToDBFS(level)
		a.sink.HandleMeterUpdate(ch, db, db)
		ch++
	}
}
