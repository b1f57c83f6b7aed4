package console

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixagent/internal/console/osc"
)

const (
	wingDefaultPort       = 2222
	wingKeepaliveInterval = 8 * time.Second
)

// WingAdapter speaks the Behringer Wing OSC dialect over UDP. The
// message framing matches the X32; the address space uses unpadded
// channel numbers and different parameter paths, and subscriptions are
// toggled via /$remotestate and /$meters.
type WingAdapter struct {
	sink EventSink

	mu   sync.Mutex
	conn *net.UDPConn

	connected atomic.Bool
	running   atomic.Bool
	dropped   atomic.Uint64

	recvDone chan struct{}

	timerMu       sync.Mutex
	lastKeepalive time.Time
	metering      bool

	logger *slog.Logger
}

// NewWingAdapter creates an adapter. The sink must be installed before
// Connect.
func NewWingAdapter(logger *slog.Logger) *WingAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WingAdapter{
		sink:   NopSink{},
		logger: logger.With("adapter", "wing"),
	}
}

// SetSink installs the event sink.
func (a *WingAdapter) SetSink(sink EventSink) {
	if sink == nil {
		sink = NopSink{}
	}
	a.sink = sink
}

// Capabilities describes the fixed Wing topology.
func (a *WingAdapter) Capabilities() Capabilities {
	return Capabilities{
		Model:             "Wing",
		ChannelCount:      48,
		BusCount:          16,
		MatrixCount:       8,
		DCACount:          8,
		FxSlots:           16,
		EqBands:           6,
		HasMotorizedFader: true,
		HasDynamicEq:      true,
		HasMultibandComp:  true,
		MeterUpdateRateMs: 50,
	}
}

// Connect opens the UDP socket and starts the receive loop.
func (a *WingAdapter) Connect(ip string, port int) bool {
	if port <= 0 {
		port = wingDefaultPort
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		a.logger.Error("resolve failed", "ip", ip, "port", port, "error", err)
		return false
	}
	conn, err := net.DialUDP("udp", nil, addr)
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

// Disconnect stops the receive loop and closes the socket.
func (a *WingAdapter) Disconnect() {
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

// IsConnected reports whether the socket is up.
func (a *WingAdapter) IsConnected() bool { return a.connected.Load() }

// RequestFullSync arms the remote-state subscription and queries every
// channel and bus.
func (a *WingAdapter) RequestFullSync() {
	a.send(osc.EncodeInt("/$remotestate", 1))

	caps := a.Capabilities()
	for ch := 1; ch <= caps.ChannelCount; ch++ {
		a.send(osc.EncodeQuery(wingChannelPath(ch, "/name")))
		a.send(osc.EncodeQuery(wingChannelPath(ch, "/fader")))
		a.send(osc.EncodeQuery(wingChannelPath(ch, "/mute")))
		a.send(osc.EncodeQuery(wingChannelPath(ch, "/pan")))
	}
	for bus := 1; bus <= caps.BusCount; bus++ {
		a.send(osc.EncodeQuery(wingBusPath(bus, "/name")))
		a.send(osc.EncodeQuery(wingBusPath(bus, "/fader")))
	}
}

// SetChannelParamFloat writes a float channel parameter.
func (a *WingAdapter) SetChannelParamFloat(ch int, param ChannelParam, value float64) {
	if path, ok := wingFloatPath(param); ok {
		a.send(osc.EncodeFloat(wingChannelPath(ch, path), value))
		return
	}
	a.logger.Warn("unhandled float param", "channel", ch, "param", int(param))
}

// SetChannelParamBool writes a switch channel parameter. Wing mute is
// direct (1 = muted), unlike the X32.
func (a *WingAdapter) SetChannelParamBool(ch int, param ChannelParam, value bool) {
	var v int32
	if value {
		v = 1
	}
	switch param {
	case ParamMute:
		a.send(osc.EncodeInt(wingChannelPath(ch, "/mute"), v))
	case ParamEqOn:
		a.send(osc.EncodeInt(wingChannelPath(ch, "/eq/on"), v))
	case ParamCompOn:
		a.send(osc.EncodeInt(wingChannelPath(ch, "/comp/on"), v))
	case ParamGateOn:
		a.send(osc.EncodeInt(wingChannelPath(ch, "/gate/on"), v))
	case ParamHighPassOn:
		a.send(osc.EncodeInt(wingChannelPath(ch, "/hpf/on"), v))
	default:
		a.logger.Warn("unhandled bool param", "channel", ch, "param", int(param))
	}
}

// SetChannelParamString writes a string channel parameter.
func (a *WingAdapter) SetChannelParamString(ch int, param ChannelParam, value string) {
	if param == ParamName {
		a.send(osc.EncodeString(wingChannelPath(ch, "/name"), value))
	}
}

// SetSendLevel writes a channel→bus send level.
func (a *WingAdapter) SetSendLevel(ch, bus int, level float64) {
	a.send(osc.EncodeFloat(fmt.Sprintf("/ch/%d/send/%d/level", ch, bus), level))
}

// SetBusParamFloat writes a float bus parameter.
func (a *WingAdapter) SetBusParamFloat(bus int, param BusParam, value float64) {
	switch param {
	case BusFader:
		a.send(osc.EncodeFloat(wingBusPath(bus, "/fader"), value))
	case BusPan:
		a.send(osc.EncodeFloat(wingBusPath(bus, "/pan"), value))
	}
}

// SubscribeMeter enables meter delivery.
func (a *WingAdapter) SubscribeMeter(refreshMs int) {
	a.timerMu.Lock()
	a.metering = true
	a.timerMu.Unlock()
	a.send(osc.EncodeInt("/$meters", 1))
}

// UnsubscribeMeter disables meter delivery.
func (a *WingAdapter) UnsubscribeMeter() {
	a.timerMu.Lock()
	a.metering = false
	a.timerMu.Unlock()
	a.send(osc.EncodeInt("/$meters", 0))
}

// Tick renews the remote-state subscription when due.
func (a *WingAdapter) Tick() {
	if !a.connected.Load() {
		return
	}
	now := time.Now()
	a.timerMu.Lock()
	due := now.Sub(a.lastKeepalive) > wingKeepaliveInterval
	if due {
		a.lastKeepalive = now
	}
	a.timerMu.Unlock()
	if due {
		a.send(osc.EncodeInt("/$remotestate", 1))
	}
}

// DroppedFrames reports how many undecodable frames were discarded.
func (a *WingAdapter) DroppedFrames() uint64 { return a.dropped.Load() }

func wingChannelPath(ch int, suffix string) string {
	return "/ch/" + strconv.Itoa(ch) + suffix
}

func wingBusPath(bus int, suffix string) string {
	return "/bus/" + strconv.Itoa(bus) + suffix
}

func wingFloatPath(param ChannelParam) (string, bool) {
	switch param {
	case ParamFader:
		return "/fader", true
	case ParamPan:
		return "/pan", true
	case ParamGain:
		return "/preamp/gain", true
	case ParamHighPassFreq:
		return "/hpf/freq", true
	case ParamCompThreshold:
		return "/comp/thr", true
	case ParamCompRatio:
		return "/comp/ratio", true
	case ParamGateThreshold:
		return "/gate/thr", true
	case ParamGateRange:
		return "/gate/range", true
	}
	if band, field, ok := eqBandField(param); ok {
		switch field {
		case eqFreq:
			return fmt.Sprintf("/eq/%d/freq", band+1), true
		case eqGain:
			return fmt.Sprintf("/eq/%d/gain", band+1), true
		case eqQ:
			return fmt.Sprintf("/eq/%d/q", band+1), true
		}
	}
	return "", false
}

// wingChannelParamFromPath maps a channel-relative Wing path back to a
// ChannelParam.
func wingChannelParamFromPath(path string) (ChannelParam, bool) {
	switch path {
	case "/fader":
		return ParamFader, true
	case "/mute":
		return ParamMute, true
	case "/pan":
		return ParamPan, true
	case "/name":
		return ParamName, true
	case "/preamp/gain":
		return ParamGain, true
	case "/hpf/freq":
		return ParamHighPassFreq, true
	case "/hpf/on":
		return ParamHighPassOn, true
	case "/comp/thr":
		return ParamCompThreshold, true
	case "/comp/ratio":
		return ParamCompRatio, true
	case "/comp/on":
		return ParamCompOn, true
	case "/gate/thr":
		return ParamGateThreshold, true
	case "/gate/range":
		return ParamGateRange, true
	case "/gate/on":
		return ParamGateOn, true
	case "/eq/on":
		return ParamEqOn, true
	}
	if strings.HasPrefix(path, "/eq/") {
		parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
		if len(parts) == 3 {
			band, err := strconv.Atoi(parts[1])
			if err == nil {
				freq, gain, q, ok := EqBandParams(band)
				if ok {
					switch parts[2] {
					case "freq":
						return freq, true
					case "gain":
						return gain, true
					case "q":
						return q, true
					}
				}
			}
		}
	}
	return ParamUnknown, false
}

func (a *WingAdapter) send(data []byte) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(data); err != nil {
		a.logger.Debug("send failed", "error", err)
	}
}

func (a *WingAdapter) receiveLoop(conn *net.UDPConn) {
	defer close(a.recvDone)

	buf := make([]byte, 4096)
	for a.running.Load() {
		conn.SetReadDeadline(time.Now().Add(oscReadTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !a.running.Load() {
				return
			}
			a.logger.Warn("receive error", "error", err)
			a.connected.Store(false)
			a.sink.HandleConnectionChange(false)
			return
		}
		a.handleDatagram(buf[:n])
	}
}

func (a *WingAdapter) handleDatagram(data []byte) {
	msg, err := osc.Decode(data)
	if err != nil {
		a.dropped.Add(1)
		return
	}

	if msg.Addr == "/$meters" {
		a.handleMeterMessage(msg)
		return
	}
	a.handleParameterMessage(msg)
}

func (a *WingAdapter) handleMeterMessage(msg osc.Message) {
	if len(msg.Args) == 0 || msg.Args[0].Tag != 'b' {
		a.dropped.Add(1)
		return
	}
	levels := osc.DecodeLevels(msg.Args[0].Blob)
	max := a.Capabilities().ChannelCount
	for i, level := range levels {
		if i >= max {
			break
		}
		db := levelToDBFS(level)
		a.sink.HandleMeterUpdate(i+1, db, db)
	}
}

func (a *WingAdapter) handleParameterMessage(msg osc.Message) {
	var (
		target UpdateTarget
		prefix string
	)
	switch {
	case strings.HasPrefix(msg.Addr, "/ch/"):
		target = TargetChannel
		prefix = "/ch/"
	case strings.HasPrefix(msg.Addr, "/bus/"):
		target = TargetBus
		prefix = "/bus/"
	default:
		return
	}

	rest := strings.TrimPrefix(msg.Addr, prefix)
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 {
		return
	}
	index, err := strconv.Atoi(rest[:slash])
	if err != nil {
		a.dropped.Add(1)
		return
	}
	path := rest[slash:]

	var param ChannelParam
	if target == TargetChannel {
		// Send levels: /ch/N/send/M/level
		if strings.HasPrefix(path, "/send/") {
			parts := strings.Split(strings.TrimPrefix(path, "/send/"), "/")
			if len(parts) == 2 && parts[1] == "level" {
				bus, err := strconv.Atoi(parts[0])
				if err != nil || len(msg.Args) == 0 || msg.Args[0].Tag != 'f' {
					a.dropped.Add(1)
					return
				}
				a.sink.HandleParameterUpdate(ParameterUpdate{
					Target:   TargetChannel,
					Index:    index,
					AuxIndex: bus,
					Param:    ParamSendLevel,
					Value:    FloatValue(msg.Args[0].Float),
				})
			}
			return
		}
		p, ok := wingChannelParamFromPath(path)
		if !ok {
			return
		}
		param = p
	} else {
		switch path {
		case "/fader":
			param = ParamFader
		case "/mute":
			param = ParamMute
		case "/name":
			param = ParamName
		default:
			return
		}
	}

	if len(msg.Args) == 0 {
		return
	}

	var value Value
	switch msg.Args[0].Tag {
	case 'f':
		value = FloatValue(msg.Args[0].Float)
	case 'i':
		value = BoolValue(msg.Args[0].Int != 0)
	case 's':
		value = StringValue(msg.Args[0].Str)
	default:
		a.dropped.Add(1)
		return
	}

	a.sink.HandleParameterUpdate(ParameterUpdate{
		Target: target,
		Index:  index,
		Param:  param,
		Value:  value,
	})
}
