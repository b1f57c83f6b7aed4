package console

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixagent/internal/console/osc"
)

const (
	x32DefaultPort = 10023

	// The X32 drops the /xremote parameter subscription after 10
	// seconds and the meter subscription after about the same, so both
	// are renewed with margin.
	x32KeepaliveInterval  = 8 * time.Second
	x32MeterRenewInterval = 9 * time.Second

	oscReadTimeout = 100 * time.Millisecond
)

// levelToDBFS converts a normalised 0..1 meter level to dBFS with a
// -96 dB floor.
func levelToDBFS(level float64) float64 {
	if level <= 1e-4 {
		return -96
	}
	return 20 * math.Log10(level)
}

// X32Adapter speaks the Behringer X32 / Midas M32 OSC protocol over
// UDP. It is the reference OSC implementation; the Wing adapter reuses
// the same message shapes with different address paths.
type X32Adapter struct {
	sink EventSink

	mu   sync.Mutex
	conn *net.UDPConn

	connected atomic.Bool
	running   atomic.Bool
	dropped   atomic.Uint64 // undecodable frames

	recvDone chan struct{}

	timerMu        sync.Mutex
	lastKeepalive  time.Time
	lastMeterRenew time.Time
	metering       bool
	meterRefreshMs int

	logger *slog.Logger
}

// NewX32Adapter creates an adapter. The sink must be installed before
// Connect.
func NewX32Adapter(logger *slog.Logger) *X32Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &X32Adapter{
		sink:   NopSink{},
		logger: logger.With("adapter", "x32"),
	}
}

// SetSink installs the event sink.
func (a *X32Adapter) SetSink(sink EventSink) {
	if sink == nil {
		sink = NopSink{}
	}
	a.sink = sink
}

// Capabilities describes the fixed X32 topology.
func (a *X32Adapter) Capabilities() Capabilities {
	return Capabilities{
		Model:             "X32",
		ChannelCount:      32,
		BusCount:          16,
		MatrixCount:       6,
		DCACount:          8,
		FxSlots:           8,
		EqBands:           4,
		HasMotorizedFader: true,
		MeterUpdateRateMs: 50,
	}
}

// Connect opens the UDP socket, starts the receive loop, and sends an
// initial /xinfo to verify the console answers.
func (a *X32Adapter) Connect(ip string, port int) bool {
	if port <= 0 {
		port = x32DefaultPort
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

	a.send(osc.EncodeQuery("/xinfo"))

	a.logger.Info("connected", "ip", ip, "port", port)
	a.sink.HandleConnectionChange(true)
	return true
}

// Disconnect stops the receive loop and closes the socket.
func (a *X32Adapter) Disconnect() {
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
func (a *X32Adapter) IsConnected() bool { return a.connected.Load() }

// RequestFullSync queries every channel and bus parameter. The X32 has
// no bulk dump; the standard approach is per-parameter queries under
// an /xremote subscription.
func (a *X32Adapter) RequestFullSync() {
	a.send(osc.EncodeQuery("/xremote"))

	caps := a.Capabilities()
	for ch := 1; ch <= caps.ChannelCount; ch++ {
		a.query(x32ChannelPath(ch, "/config/name"))
		a.query(x32ChannelPath(ch, "/mix/fader"))
		a.query(x32ChannelPath(ch, "/mix/on"))
		a.query(x32ChannelPath(ch, "/mix/pan"))
		a.query(x32ChannelPath(ch, "/preamp/trim"))
		a.query(x32ChannelPath(ch, "/preamp/hpon"))
		a.query(x32ChannelPath(ch, "/preamp/hpf"))

		for b := 1; b <= caps.EqBands; b++ {
			prefix := "/eq/" + strconv.Itoa(b)
			a.query(x32ChannelPath(ch, prefix+"/f"))
			a.query(x32ChannelPath(ch, prefix+"/g"))
			a.query(x32ChannelPath(ch, prefix+"/q"))
		}

		a.query(x32ChannelPath(ch, "/dyn/thr"))
		a.query(x32ChannelPath(ch, "/dyn/ratio"))
		a.query(x32ChannelPath(ch, "/dyn/attack"))
		a.query(x32ChannelPath(ch, "/dyn/release"))
		a.query(x32ChannelPath(ch, "/dyn/on"))

		a.query(x32ChannelPath(ch, "/gate/thr"))
		a.query(x32ChannelPath(ch, "/gate/range"))
		a.query(x32ChannelPath(ch, "/gate/on"))
	}

	for bus := 1; bus <= caps.BusCount; bus++ {
		a.query(x32BusPath(bus, "/config/name"))
		a.query(x32BusPath(bus, "/mix/fader"))
		a.query(x32BusPath(bus, "/mix/on"))
	}
}

// SetChannelParamFloat writes a float channel parameter.
func (a *X32Adapter) SetChannelParamFloat(ch int, param ChannelParam, value float64) {
	if path, ok := x32FloatPath(param); ok {
		a.send(osc.EncodeFloat(x32ChannelPath(ch, path), value))
		return
	}
	a.logger.Warn("unhandled float param", "channel", ch, "param", int(param))
}

// SetChannelParamBool writes a switch channel parameter. The X32
// /mix/on switch is inverted: on=1 means unmuted.
func (a *X32Adapter) SetChannelParamBool(ch int, param ChannelParam, value bool) {
	toInt := func(b bool) int32 {
		if b {
			return 1
		}
		return 0
	}
	switch param {
	case ParamMute:
		a.send(osc.EncodeInt(x32ChannelPath(ch, "/mix/on"), toInt(!value)))
	case ParamEqOn:
		a.send(osc.EncodeInt(x32ChannelPath(ch, "/eq/on"), toInt(value)))
	case ParamCompOn:
		a.send(osc.EncodeInt(x32ChannelPath(ch, "/dyn/on"), toInt(value)))
	case ParamGateOn:
		a.send(osc.EncodeInt(x32ChannelPath(ch, "/gate/on"), toInt(value)))
	case ParamHighPassOn:
		a.send(osc.EncodeInt(x32ChannelPath(ch, "/preamp/hpon"), toInt(value)))
	default:
		a.logger.Warn("unhandled bool param", "channel", ch, "param", int(param))
	}
}

// SetChannelParamString writes a string channel parameter.
func (a *X32Adapter) SetChannelParamString(ch int, param ChannelParam, value string) {
	if param == ParamName {
		a.send(osc.EncodeString(x32ChannelPath(ch, "/config/name"), value))
	}
}

// SetSendLevel writes a channel→bus send level.
func (a *X32Adapter) SetSendLevel(ch, bus int, level float64) {
	path := fmt.Sprintf("/ch/%02d/mix/%02d/level", ch, bus)
	a.send(osc.EncodeFloat(path, level))
}

// SetBusParamFloat writes a float bus parameter.
func (a *X32Adapter) SetBusParamFloat(bus int, param BusParam, value float64) {
	switch param {
	case BusFader:
		a.send(osc.EncodeFloat(x32BusPath(bus, "/mix/fader"), value))
	case BusPan:
		a.send(osc.EncodeFloat(x32BusPath(bus, "/mix/pan"), value))
	}
}

// SubscribeMeter arms the input meter subscription.
func (a *X32Adapter) SubscribeMeter(refreshMs int) {
	a.timerMu.Lock()
	a.metering = true
	a.meterRefreshMs = refreshMs
	a.timerMu.Unlock()
	a.renewMeterSubscription()
}

// UnsubscribeMeter stops renewing the meter subscription; the console
// lets it lapse.
func (a *X32Adapter) UnsubscribeMeter() {
	a.timerMu.Lock()
	a.metering = false
	a.timerMu.Unlock()
}

// Tick renews /xremote and the meter subscription when due.
func (a *X32Adapter) Tick() {
	if !a.connected.Load() {
		return
	}

	now := time.Now()
	a.timerMu.Lock()
	sendKeepalive := now.Sub(a.lastKeepalive) > x32KeepaliveInterval
	if sendKeepalive {
		a.lastKeepalive = now
	}
	renewMeters := a.metering && now.Sub(a.lastMeterRenew) > x32MeterRenewInterval
	a.timerMu.Unlock()

	if sendKeepalive {
		a.send(osc.EncodeQuery("/xremote"))
	}
	if renewMeters {
		a.renewMeterSubscription()
	}
}

// DroppedFrames reports how many undecodable frames were discarded.
func (a *X32Adapter) DroppedFrames() uint64 { return a.dropped.Load() }

func x32ChannelPath(ch int, suffix string) string {
	return fmt.Sprintf("/ch/%02d%s", ch, suffix)
}

func x32BusPath(bus int, suffix string) string {
	return fmt.Sprintf("/bus/%02d%s", bus, suffix)
}

// x32FloatPath maps a float ChannelParam to its channel-relative OSC
// path.
func x32FloatPath(param ChannelParam) (string, bool) {
	switch param {
	case ParamFader:
		return "/mix/fader", true
	case ParamPan:
		return "/mix/pan", true
	case ParamGain:
		return "/preamp/trim", true
	case ParamHighPassFreq:
		return "/preamp/hpf", true
	case ParamEqBand1Freq:
		return "/eq/1/f", true
	case ParamEqBand1Gain:
		return "/eq/1/g", true
	case ParamEqBand1Q:
		return "/eq/1/q", true
	case ParamEqBand2Freq:
		return "/eq/2/f", true
	case ParamEqBand2Gain:
		return "/eq/2/g", true
	case ParamEqBand2Q:
		return "/eq/2/q", true
	case ParamEqBand3Freq:
		return "/eq/3/f", true
	case ParamEqBand3Gain:
		return "/eq/3/g", true
	case ParamEqBand3Q:
		return "/eq/3/q", true
	case ParamEqBand4Freq:
		return "/eq/4/f", true
	case ParamEqBand4Gain:
		return "/eq/4/g", true
	case ParamEqBand4Q:
		return "/eq/4/q", true
	case ParamCompThreshold:
		return "/dyn/thr", true
	case ParamCompRatio:
		return "/dyn/ratio", true
	case ParamCompAttack:
		return "/dyn/attack", true
	case ParamCompRelease:
		return "/dyn/release", true
	case ParamCompMakeup:
		return "/dyn/mgain", true
	case ParamGateThreshold:
		return "/gate/thr", true
	case ParamGateRange:
		return "/gate/range", true
	}
	return "", false
}

// x32ChannelParamFromPath maps a channel-relative path back to a
// ChannelParam for incoming updates.
func x32ChannelParamFromPath(path string) (ChannelParam, bool) {
	switch path {
	case "/mix/fader":
		return ParamFader, true
	case "/mix/on":
		return ParamMute, true // inverted, handled by caller
	case "/mix/pan":
		return ParamPan, true
	case "/config/name":
		return ParamName, true
	case "/preamp/trim":
		return ParamGain, true
	case "/preamp/hpf":
		return ParamHighPassFreq, true
	case "/preamp/hpon":
		return ParamHighPassOn, true
	case "/eq/1/f":
		return ParamEqBand1Freq, true
	case "/eq/1/g":
		return ParamEqBand1Gain, true
	case "/eq/1/q":
		return ParamEqBand1Q, true
	case "/eq/2/f":
		return ParamEqBand2Freq, true
	case "/eq/2/g":
		return ParamEqBand2Gain, true
	case "/eq/2/q":
		return ParamEqBand2Q, true
	case "/eq/3/f":
		return ParamEqBand3Freq, true
	case "/eq/3/g":
		return ParamEqBand3Gain, true
	case "/eq/3/q":
		return ParamEqBand3Q, true
	case "/eq/4/f":
		return ParamEqBand4Freq, true
	case "/eq/4/g":
		return ParamEqBand4Gain, true
	case "/eq/4/q":
		return ParamEqBand4Q, true
	case "/dyn/thr":
		return ParamCompThreshold, true
	case "/dyn/ratio":
		return ParamCompRatio, true
	case "/dyn/attack":
		return ParamCompAttack, true
	case "/dyn/release":
		return ParamCompRelease, true
	case "/dyn/on":
		return ParamCompOn, true
	case "/gate/thr":
		return ParamGateThreshold, true
	case "/gate/range":
		return ParamGateRange, true
	case "/gate/on":
		return ParamGateOn, true
	}
	return ParamUnknown, false
}

func (a *X32Adapter) query(addr string) {
	a.send(osc.EncodeQuery(addr))
}

func (a *X32Adapter) send(data []byte) {
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

func (a *X32Adapter) renewMeterSubscription() {
	a.send(osc.EncodeQuery("/meters"))
	a.timerMu.Lock()
	a.lastMeterRenew = time.Now()
	a.timerMu.Unlock()
}

func (a *X32Adapter) receiveLoop(conn *net.UDPConn) {
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

func (a *X32Adapter) handleDatagram(data []byte) {
	msg, err := osc.Decode(data)
	if err != nil {
		a.dropped.Add(1)
		return
	}

	if strings.HasPrefix(msg.Addr, "/meters") {
		a.handleMeterMessage(msg)
		return
	}
	a.handleParameterMessage(msg)
}

func (a *X32Adapter) handleMeterMessage(msg osc.Message) {
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
		// The X32 input meter blob carries one level per channel, used
		// as both RMS and peak approximation.
		a.sink.HandleMeterUpdate(i+1, db, db)
	}
}

func (a *X32Adapter) handleParameterMessage(msg osc.Message) {
	var (
		target UpdateTarget
		index  int
		rest   string
	)
	switch {
	case strings.HasPrefix(msg.Addr, "/ch/") && len(msg.Addr) > 6:
		target = TargetChannel
		n, err := strconv.Atoi(msg.Addr[4:6])
		if err != nil {
			a.dropped.Add(1)
			return
		}
		index = n
		rest = msg.Addr[6:]
	case strings.HasPrefix(msg.Addr, "/bus/") && len(msg.Addr) > 7:
		target = TargetBus
		n, err := strconv.Atoi(msg.Addr[5:7])
		if err != nil {
			a.dropped.Add(1)
			return
		}
		index = n
		rest = msg.Addr[7:]
	default:
		return // /xinfo replies and other unmapped traffic
	}

	var param ChannelParam
	if target == TargetChannel {
		p, ok := x32ChannelParamFromPath(rest)
		if !ok {
			return
		}
		param = p
	} else {
		switch rest {
		case "/mix/fader":
			param = ParamFader
		case "/mix/on":
			param = ParamMute
		case "/config/name":
			param = ParamName
		default:
			return
		}
	}

	if len(msg.Args) == 0 {
		return
	}

	value, ok := x32ArgToValue(msg.Args[0], param)
	if !ok {
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

// x32ArgToValue converts a decoded OSC argument to a parameter Value,
// inverting the /mix/on switch into mute semantics.
func x32ArgToValue(arg osc.Arg, param ChannelParam) (Value, bool) {
	switch arg.Tag {
	case 'f':
		return FloatValue(arg.Float), true
	case 'i':
		on := arg.Int != 0
		if param == ParamMute {
			return BoolValue(!on), true
		}
		return BoolValue(on), true
	case 's':
		return StringValue(arg.Str), true
	}
	return Value{}, false
}
