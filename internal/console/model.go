package console

import "sync"

// EqBand is a single parametric EQ band on a channel.
type EqBand struct {
	Freq float64 // Hz
	Gain float64 // dB
	Q    float64
	Type int // 0=bell, 1=shelf, 2=hpf, 3=lpf
}

// Compressor holds a channel's dynamics section.
type Compressor struct {
	Threshold float64 // dB
	Ratio     float64
	Attack    float64 // ms
	Release   float64 // ms
	Makeup    float64 // dB
	On        bool
}

// Gate holds a channel's noise gate section.
type Gate struct {
	Threshold float64
	Range     float64
	Attack    float64
	Hold      float64
	Release   float64
	On        bool
}

// SpectralData is the per-channel spectral summary written by the DSP
// thread after FFT analysis. Meter callbacks never touch it.
type SpectralData struct {
	Bass             float64 // dBFS
	Mid              float64
	Presence         float64
	CrestFactor      float64
	SpectralCentroid float64 // Hz
}

// ChannelSnapshot is a copy of one channel's complete state. Reader
// methods on Model return copies, so snapshots are safe to hold
// without locking.
type ChannelSnapshot struct {
	Index   int // 1-based
	Name    string
	Fader   float64 // 0.0–1.0 normalised
	Muted   bool
	Pan     float64 // -1.0 to +1.0
	GainDB  float64
	Phantom bool
	Phase   bool

	EqOn    bool
	Eq      [6]EqBand
	HpfFreq float64
	HpfOn   bool

	Comp Compressor
	Gate Gate

	// Metering, written by the meter subscription.
	RmsDB  float64
	PeakDB float64

	Spectral SpectralData

	// Send levels to buses, index 0 = bus 1.
	Sends []float64
}

// BusSnapshot is a copy of one bus's state.
type BusSnapshot struct {
	Index int
	Name  string
	Fader float64
	Muted bool
	Pan   float64
}

func defaultChannel(index, busCount int) ChannelSnapshot {
	ch := ChannelSnapshot{
		Index:  index,
		Fader:  0.75,
		EqOn:   true,
		RmsDB:  -96,
		PeakDB: -96,
		Comp:   Compressor{Ratio: 1, Attack: 10, Release: 100},
		Gate:   Gate{Threshold: -80, Range: -80, Attack: 0.5, Hold: 50, Release: 200},
		Sends:  make([]float64, busCount),
	}
	for i := range ch.Eq {
		ch.Eq[i] = EqBand{Freq: 1000, Q: 1}
	}
	return ch
}

// Model is the central console state store — the single source of
// truth for current parameter values. Adapter callbacks write into it,
// the agent and UI read from it. Writes are serialised; reads return
// cloned snapshots and may run concurrently.
type Model struct {
	mu       sync.RWMutex
	channels []ChannelSnapshot
	buses    []BusSnapshot
}

// NewModel returns an empty model. Call Init once capabilities are
// known.
func NewModel() *Model { return &Model{} }

// Init sizes the model for the connected console. Existing state is
// discarded.
func (m *Model) Init(channelCount, busCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make([]ChannelSnapshot, channelCount)
	for i := range m.channels {
		m.channels[i] = defaultChannel(i+1, busCount)
	}
	m.buses = make([]BusSnapshot, busCount)
	for i := range m.buses {
		m.buses[i] = BusSnapshot{Index: i + 1, Fader: 0.75}
	}
}

// Channel returns a copy of the 1-based channel. The zero snapshot is
// returned for out-of-range indices.
func (m *Model) Channel(ch int) ChannelSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ch < 1 || ch > len(m.channels) {
		return ChannelSnapshot{}
	}
	return cloneChannel(m.channels[ch-1])
}

// Bus returns a copy of the 1-based bus.
func (m *Model) Bus(b int) BusSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b < 1 || b > len(m.buses) {
		return BusSnapshot{}
	}
	return m.buses[b-1]
}

// ChannelCount reports the number of channels.
func (m *Model) ChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// BusCount reports the number of buses.
func (m *Model) BusCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buses)
}

// AllChannels returns copies of every channel, for context building.
func (m *Model) AllChannels() []ChannelSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChannelSnapshot, len(m.channels))
	for i, ch := range m.channels {
		out[i] = cloneChannel(ch)
	}
	return out
}

// ApplyUpdate applies a decoded parameter update from the adapter.
// Out-of-range indices are ignored.
func (m *Model) ApplyUpdate(u ParameterUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch u.Target {
	case TargetChannel:
		if u.Index < 1 || u.Index > len(m.channels) {
			return
		}
		applyChannelParam(&m.channels[u.Index-1], u)
	case TargetBus:
		if u.Index < 1 || u.Index > len(m.buses) {
			return
		}
		applyBusParam(&m.buses[u.Index-1], u)
	}
}

// UpdateMeter stores meter readings for a channel. Ignored when out of
// range.
func (m *Model) UpdateMeter(ch int, rmsDB, peakDB float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 1 || ch > len(m.channels) {
		return
	}
	m.channels[ch-1].RmsDB = rmsDB
	m.channels[ch-1].PeakDB = peakDB
}

// UpdateSpectral stores FFT-derived spectral data for a channel. This
// is the only write path for spectral data.
func (m *Model) UpdateSpectral(ch int, data SpectralData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 1 || ch > len(m.channels) {
		return
	}
	m.channels[ch-1].Spectral = data
}

func cloneChannel(ch ChannelSnapshot) ChannelSnapshot {
	out := ch
	out.Sends = append([]float64(nil), ch.Sends...)
	return out
}

func applyChannelParam(ch *ChannelSnapshot, u ParameterUpdate) {
	switch u.Param {
	case ParamFader:
		ch.Fader = u.Value.AsFloat()
	case ParamMute:
		ch.Muted = u.Value.AsBool()
	case ParamPan:
		ch.Pan = u.Value.AsFloat()
	case ParamName:
		ch.Name = u.Value.AsString()
	case ParamGain:
		ch.GainDB = u.Value.AsFloat()
	case ParamPhantomPower:
		ch.Phantom = u.Value.AsBool()
	case ParamPhaseInvert:
		ch.Phase = u.Value.AsBool()
	case ParamEqOn:
		ch.EqOn = u.Value.AsBool()
	case ParamHighPassFreq:
		ch.HpfFreq = u.Value.AsFloat()
	case ParamHighPassOn:
		ch.HpfOn = u.Value.AsBool()
	case ParamCompThreshold:
		ch.Comp.Threshold = u.Value.AsFloat()
	case ParamCompRatio:
		ch.Comp.Ratio = u.Value.AsFloat()
	case ParamCompAttack:
		ch.Comp.Attack = u.Value.AsFloat()
	case ParamCompRelease:
		ch.Comp.Release = u.Value.AsFloat()
	case ParamCompMakeup:
		ch.Comp.Makeup = u.Value.AsFloat()
	case ParamCompOn:
		ch.Comp.On = u.Value.AsBool()
	case ParamGateThreshold:
		ch.Gate.Threshold = u.Value.AsFloat()
	case ParamGateRange:
		ch.Gate.Range = u.Value.AsFloat()
	case ParamGateAttack:
		ch.Gate.Attack = u.Value.AsFloat()
	case ParamGateHold:
		ch.Gate.Hold = u.Value.AsFloat()
	case ParamGateRelease:
		ch.Gate.Release = u.Value.AsFloat()
	case ParamGateOn:
		ch.Gate.On = u.Value.AsBool()
	case ParamSendLevel:
		if u.AuxIndex >= 1 && u.AuxIndex <= len(ch.Sends) {
			ch.Sends[u.AuxIndex-1] = u.Value.AsFloat()
		}
	default:
		if band, field, ok := eqBandField(u.Param); ok {
			switch field {
			case eqFreq:
				ch.Eq[band].Freq = u.Value.AsFloat()
			case eqGain:
				ch.Eq[band].Gain = u.Value.AsFloat()
			case eqQ:
				ch.Eq[band].Q = u.Value.AsFloat()
			case eqType:
				ch.Eq[band].Type = u.Value.Int
			}
		}
	}
}

type eqField int

const (
	eqFreq eqField = iota
	eqGain
	eqQ
	eqType
)

// eqBandField maps an EQ ChannelParam to its 0-based band and field.
func eqBandField(p ChannelParam) (band int, field eqField, ok bool) {
	switch p {
	case ParamEqBand1Freq:
		return 0, eqFreq, true
	case ParamEqBand1Gain:
		return 0, eqGain, true
	case ParamEqBand1Q:
		return 0, eqQ, true
	case ParamEqBand1Type:
		return 0, eqType, true
	case ParamEqBand2Freq:
		return 1, eqFreq, true
	case ParamEqBand2Gain:
		return 1, eqGain, true
	case ParamEqBand2Q:
		return 1, eqQ, true
	case ParamEqBand2Type:
		return 1, eqType, true
	case ParamEqBand3Freq:
		return 2, eqFreq, true
	case ParamEqBand3Gain:
		return 2, eqGain, true
	case ParamEqBand3Q:
		return 2, eqQ, true
	case ParamEqBand3Type:
		return 2, eqType, true
	case ParamEqBand4Freq:
		return 3, eqFreq, true
	case ParamEqBand4Gain:
		return 3, eqGain, true
	case ParamEqBand4Q:
		return 3, eqQ, true
	case ParamEqBand4Type:
		return 3, eqType, true
	case ParamEqBand5Freq:
		return 4, eqFreq, true
	case ParamEqBand5Gain:
		return 4, eqGain, true
	case ParamEqBand5Q:
		return 4, eqQ, true
	case ParamEqBand6Freq:
		return 5, eqFreq, true
	case ParamEqBand6Gain:
		return 5, eqGain, true
	case ParamEqBand6Q:
		return 5, eqQ, true
	}
	return 0, 0, false
}

func applyBusParam(bus *BusSnapshot, u ParameterUpdate) {
	switch u.Param {
	case ParamFader:
		bus.Fader = u.Value.AsFloat()
	case ParamMute:
		bus.Muted = u.Value.AsBool()
	case ParamPan:
		bus.Pan = u.Value.AsFloat()
	case ParamName:
		bus.Name = u.Value.AsString()
	}
}
