package action

import (
	"fmt"
	"log/slog"

	"mixagent/internal/console"
)

// SafetyLimits bound how far a single action may move the console.
type SafetyLimits struct {
	MaxFaderDeltaNorm  float64 // ~6 dB max fader move per step
	MaxEqBoostDB       float64
	MaxEqCutDB         float64
	MaxCompThresholdDB float64 // lowest allowed threshold
	MinCompRatio       float64
	MaxCompRatio       float64
	MaxHpfHz           float64
	MinHpfHz           float64
	MaxSendDelta       float64
}

// DefaultSafetyLimits returns the standard limits.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{
		MaxFaderDeltaNorm:  0.15,
		MaxEqBoostDB:       3,
		MaxEqCutDB:         -12,
		MaxCompThresholdDB: -50,
		MinCompRatio:       1,
		MaxCompRatio:       20,
		MaxHpfHz:           400,
		MinHpfHz:           20,
		MaxSendDelta:       0.2,
	}
}

// ValidationResult carries the clamped action and any warning emitted
// while clamping.
type ValidationResult struct {
	Valid   bool
	Clamped Action
	Warning string
}

// Validator is the safety layer between decisions and the console.
// Every action passes through it before execution.
type Validator struct {
	limits SafetyLimits
	logger *slog.Logger
}

// NewValidator creates a validator with the given limits.
func NewValidator(limits SafetyLimits, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{limits: limits, logger: logger.With("component", "validator")}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Validate checks and clamps an action against the current console
// state. Mutes, unmutes, observations, and no-ops are always valid.
func (v *Validator) Validate(a Action, model *console.Model) ValidationResult {
	switch a.Type {
	case SetPan, SetEqBand, SetCompressor, SetGate, SetHighPass:
		if a.Channel < 1 || a.Channel > model.ChannelCount() {
			return ValidationResult{Valid: false, Clamped: a, Warning: fmt.Sprintf("invalid channel %d", a.Channel)}
		}
	}

	switch a.Type {
	case SetFader:
		return v.validateFader(a, model)
	case SetEqBand:
		return v.validateEq(a)
	case SetCompressor:
		return v.validateComp(a)
	case SetHighPass:
		return v.validateHpf(a)
	case SetSendLevel:
		return v.validateSend(a, model)
	case MuteChannel, UnmuteChannel:
		v.logger.Info("mute toggle", "channel", a.Channel, "mute", a.Type == MuteChannel)
	}
	return ValidationResult{Valid: true, Clamped: a}
}

func (v *Validator) validateFader(a Action, model *console.Model) ValidationResult {
	r := ValidationResult{Valid: true, Clamped: a}

	if a.Channel < 1 || a.Channel > model.ChannelCount() {
		r.Valid = false
		r.Warning = fmt.Sprintf("invalid channel %d", a.Channel)
		return r
	}

	current := model.Channel(a.Channel).Fader
	target := clampf(a.Value, 0, 1)

	maxDelta := v.limits.MaxFaderDeltaNorm
	if a.MaxDelta > 0 && a.MaxDelta < maxDelta {
		maxDelta = a.MaxDelta
	}

	if delta := target - current; delta > maxDelta || delta < -maxDelta {
		sign := 1.0
		if delta < 0 {
			sign = -1
		}
		target = current + sign*maxDelta
		r.Warning = fmt.Sprintf("fader clamped: requested %.2f -> clamped to %.2f", a.Value, target)
		v.logger.Warn("fader clamped", "channel", a.Channel, "requested", a.Value, "clamped", target)
	}

	r.Clamped.Value = target
	return r
}

func (v *Validator) validateEq(a Action) ValidationResult {
	r := ValidationResult{Valid: true, Clamped: a}

	gain := a.Value2
	if gain > v.limits.MaxEqBoostDB {
		gain = v.limits.MaxEqBoostDB
		r.Warning = fmt.Sprintf("EQ boost clamped to %.1fdB", gain)
		v.logger.Warn("eq boost clamped", "channel", a.Channel, "requested", a.Value2)
	}
	if gain < v.limits.MaxEqCutDB {
		gain = v.limits.MaxEqCutDB
		r.Warning = fmt.Sprintf("EQ cut clamped to %.1fdB", gain)
	}

	r.Clamped.Value = clampf(a.Value, 20, 20000)
	r.Clamped.Value2 = gain
	r.Clamped.Value3 = clampf(a.Value3, 0.1, 20)
	if r.Warning == "" && (r.Clamped.Value != a.Value || r.Clamped.Value3 != a.Value3) {
		r.Warning = fmt.Sprintf("EQ clamped: freq %.0fHz Q %.2f", r.Clamped.Value, r.Clamped.Value3)
	}
	return r
}

func (v *Validator) validateComp(a Action) ValidationResult {
	r := ValidationResult{Valid: true, Clamped: a}
	r.Clamped.Value = clampf(a.Value, v.limits.MaxCompThresholdDB, 0)
	r.Clamped.Value2 = clampf(a.Value2, v.limits.MinCompRatio, v.limits.MaxCompRatio)
	if r.Clamped.Value != a.Value || r.Clamped.Value2 != a.Value2 {
		r.Warning = fmt.Sprintf("comp clamped: threshold %.1f ratio %.1f",
			r.Clamped.Value, r.Clamped.Value2)
	}
	return r
}

func (v *Validator) validateHpf(a Action) ValidationResult {
	r := ValidationResult{Valid: true, Clamped: a}
	freq := clampf(a.Value, v.limits.MinHpfHz, v.limits.MaxHpfHz)
	if freq != a.Value {
		r.Warning = fmt.Sprintf("HPF clamped: %.0fHz -> %.0fHz", a.Value, freq)
		v.logger.Warn("hpf clamped", "channel", a.Channel, "requested", a.Value, "clamped", freq)
	}
	r.Clamped.Value = freq
	return r
}

func (v *Validator) validateSend(a Action, model *console.Model) ValidationResult {
	r := ValidationResult{Valid: true, Clamped: a}
	if a.Channel < 1 || a.Channel > model.ChannelCount() {
		r.Valid = false
		r.Warning = fmt.Sprintf("invalid channel %d", a.Channel)
		return r
	}
	target := clampf(a.Value, 0, 1)
	if target != a.Value {
		r.Warning = fmt.Sprintf("send level clamped to %.2f", target)
	}
	r.Clamped.Value = target
	return r
}
