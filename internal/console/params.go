// Package console defines the shared parameter vocabulary, the live
// state model, and the adapter interface for digital mixing consoles.
package console

// ChannelParam identifies a single addressable parameter on an input
// channel strip. Adapters translate these to and from their wire
// representation (OSC address paths or binary parameter IDs).
type ChannelParam int

const (
	ParamUnknown ChannelParam = iota
	ParamFader                // 0.0–1.0 normalised
	ParamMute                 // bool
	ParamPan                  // -1.0 (L) to +1.0 (R)
	ParamName                 // string
	ParamGain                 // preamp gain, dB
	ParamPhantomPower         // bool (48V)
	ParamPhaseInvert          // bool

	ParamEqOn
	ParamEqBand1Freq
	ParamEqBand1Gain
	ParamEqBand1Q
	ParamEqBand1Type
	ParamEqBand2Freq
	ParamEqBand2Gain
	ParamEqBand2Q
	ParamEqBand2Type
	ParamEqBand3Freq
	ParamEqBand3Gain
	ParamEqBand3Q
	ParamEqBand3Type
	ParamEqBand4Freq
	ParamEqBand4Gain
	ParamEqBand4Q
	ParamEqBand4Type
	ParamEqBand5Freq
	ParamEqBand5Gain
	ParamEqBand5Q
	ParamEqBand6Freq
	ParamEqBand6Gain
	ParamEqBand6Q

	ParamHighPassFreq // Hz
	ParamHighPassOn

	ParamCompThreshold
	ParamCompRatio
	ParamCompAttack
	ParamCompRelease
	ParamCompMakeup
	ParamCompOn
	ParamGateThreshold
	ParamGateRange
	ParamGateAttack
	ParamGateHold
	ParamGateRelease
	ParamGateOn

	ParamSendLevel // requires AuxIndex
	ParamSendPan
	ParamSendOn

	ParamDCAAssign
)

// EqBandParams returns the freq/gain/Q params for a 1-based EQ band.
// ok is false for bands outside 1–6.
func EqBandParams(band int) (freq, gain, q ChannelParam, ok bool) {
	switch band {
	case 1:
		return ParamEqBand1Freq, ParamEqBand1Gain, ParamEqBand1Q, true
	case 2:
		return ParamEqBand2Freq, ParamEqBand2Gain, ParamEqBand2Q, true
	case 3:
		return ParamEqBand3Freq, ParamEqBand3Gain, ParamEqBand3Q, true
	case 4:
		return ParamEqBand4Freq, ParamEqBand4Gain, ParamEqBand4Q, true
	case 5:
		return ParamEqBand5Freq, ParamEqBand5Gain, ParamEqBand5Q, true
	case 6:
		return ParamEqBand6Freq, ParamEqBand6Gain, ParamEqBand6Q, true
	}
	return ParamUnknown, ParamUnknown, ParamUnknown, false
}

// BusParam identifies an addressable parameter on an aux/mix bus.
type BusParam int

const (
	BusFader BusParam = iota
	BusMute
	BusPan
	BusName
	BusEqOn
	BusCompThreshold
	BusCompRatio
	BusCompOn
)

// ValueKind tags the active field of a Value.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindBool
	KindInt
	KindString
)

// Value is a tagged parameter value. Adapters decode wire payloads into
// it; the model reads the field matching the parameter's natural type
// and ignores mismatches.
type Value struct {
	Kind  ValueKind
	Float float64
	Bool  bool
	Int   int
	Str   string
}

// FloatValue wraps a float parameter value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// BoolValue wraps a bool parameter value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue wraps an int parameter value.
func IntValue(i int) Value { return Value{Kind: KindInt, Int: i} }

// StringValue wraps a string parameter value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// AsFloat returns the float payload, or 0 when the value holds a
// different kind.
func (v Value) AsFloat() float64 {
	if v.Kind == KindFloat {
		return v.Float
	}
	return 0
}

// AsBool returns the bool payload. Int values are coerced (non-zero =
// true) because OSC consoles report switches as integers.
func (v Value) AsBool() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	}
	return false
}

// AsString returns the string payload, or "" for other kinds.
func (v Value) AsString() string {
	if v.Kind == KindString {
		return v.Str
	}
	return ""
}

// UpdateTarget selects which entity a ParameterUpdate addresses.
type UpdateTarget int

const (
	TargetChannel UpdateTarget = iota
	TargetBus
	TargetMain
	TargetDCA
)

// ParameterUpdate is a single decoded parameter change from (or to) the
// console. Index is 1-based.
type ParameterUpdate struct {
	Target   UpdateTarget
	Index    int
	AuxIndex int // for sends: which aux/bus
	Param    ChannelParam
	Value    Value
}

// Capabilities describes a connected console's fixed topology.
type Capabilities struct {
	Model             string // "X32", "Wing", "Avantis"
	Firmware          string
	ChannelCount      int
	BusCount          int
	MatrixCount       int
	DCACount          int
	FxSlots           int
	EqBands           int // per channel
	HasMotorizedFader bool
	HasDynamicEq      bool
	HasMultibandComp  bool
	MeterUpdateRateMs int
}
