package action

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"mixagent/internal/console"
)

const (
	// Fader deltas below this are written in one step; anything larger
	// is ramped so the move is inaudible.
	rampThreshold = 0.02
	rampSteps     = 10
	rampStepSleep = 20 * time.Millisecond
)

// ExecutionResult reports what the executor actually did.
type ExecutionResult struct {
	Success     bool
	ActualValue float64
	Err         string
}

// Executor writes validated actions to the console. Fader moves ramp
// over ~200 ms; the 20 ms per-step sleep is also the cancellation
// latency bound for in-flight writes. The executor reads current
// fader positions from the model, never from its own bookkeeping.
type Executor struct {
	adapter console.Adapter
	model   *console.Model
	logger  *slog.Logger

	// onWrite, when set, is notified of every parameter the executor
	// writes. The agent uses it to distinguish its own echoed updates
	// from engineer moves on the console surface.
	onWrite func(ch int, param console.ChannelParam)
}

// NewExecutor creates an executor bound to an adapter and model.
func NewExecutor(adapter console.Adapter, model *console.Model, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		adapter: adapter,
		model:   model,
		logger:  logger.With("component", "executor"),
	}
}

// SetWriteHook installs the origin-tagging hook. Call before the agent
// loops start.
func (e *Executor) SetWriteHook(hook func(ch int, param console.ChannelParam)) {
	e.onWrite = hook
}

func (e *Executor) writeFloat(ch int, param console.ChannelParam, value float64) {
	if e.onWrite != nil {
		e.onWrite(ch, param)
	}
	e.adapter.SetChannelParamFloat(ch, param, value)
}

func (e *Executor) writeBool(ch int, param console.ChannelParam, value bool) {
	if e.onWrite != nil {
		e.onWrite(ch, param)
	}
	e.adapter.SetChannelParamBool(ch, param, value)
}

// Execute applies one validated action to the console.
func (e *Executor) Execute(a Action) ExecutionResult {
	switch a.Type {
	case SetFader:
		return e.executeFader(a)
	case SetPan:
		e.writeFloat(a.Channel, console.ParamPan, a.Value)
		e.logger.Info("executed pan", "channel", a.Channel, "pan", a.Value)
		return ExecutionResult{Success: true, ActualValue: a.Value}
	case SetEqBand:
		return e.executeEq(a)
	case SetCompressor:
		e.writeFloat(a.Channel, console.ParamCompThreshold, a.Value)
		e.writeFloat(a.Channel, console.ParamCompRatio, a.Value2)
		e.writeBool(a.Channel, console.ParamCompOn, true)
		e.logger.Info("executed comp", "channel", a.Channel,
			"threshold", a.Value, "ratio", a.Value2)
		return ExecutionResult{Success: true, ActualValue: a.Value}
	case SetGate:
		e.writeFloat(a.Channel, console.ParamGateThreshold, a.Value)
		e.writeBool(a.Channel, console.ParamGateOn, true)
		e.logger.Info("executed gate", "channel", a.Channel, "threshold", a.Value)
		return ExecutionResult{Success: true, ActualValue: a.Value}
	case SetHighPass:
		e.writeFloat(a.Channel, console.ParamHighPassFreq, a.Value)
		e.writeBool(a.Channel, console.ParamHighPassOn, true)
		e.logger.Info("executed hpf", "channel", a.Channel, "freq", a.Value)
		return ExecutionResult{Success: true, ActualValue: a.Value}
	case SetSendLevel:
		if e.onWrite != nil {
			e.onWrite(a.Channel, console.ParamSendLevel)
		}
		e.adapter.SetSendLevel(a.Channel, a.Aux, a.Value)
		e.logger.Info("executed send", "channel", a.Channel, "bus", a.Aux, "level", a.Value)
		return ExecutionResult{Success: true, ActualValue: a.Value}
	case MuteChannel:
		e.writeBool(a.Channel, console.ParamMute, true)
		e.logger.Info("executed mute", "channel", a.Channel)
		return ExecutionResult{Success: true, ActualValue: 1}
	case UnmuteChannel:
		e.writeBool(a.Channel, console.ParamMute, false)
		e.logger.Info("executed unmute", "channel", a.Channel)
		return ExecutionResult{Success: true, ActualValue: 0}
	case NoAction, Observation:
		return ExecutionResult{Success: true}
	}
	return ExecutionResult{Err: "unknown action type"}
}

func (e *Executor) executeFader(a Action) ExecutionResult {
	current := e.model.Channel(a.Channel).Fader
	target := a.Value
	delta := target - current

	if math.Abs(delta) < rampThreshold {
		e.writeFloat(a.Channel, console.ParamFader, target)
		e.logger.Info("executed fader", "channel", a.Channel,
			"from", current, "to", target)
		return ExecutionResult{Success: true, ActualValue: target}
	}

	step := delta / rampSteps
	val := current
	for i := 0; i < rampSteps; i++ {
		val += step
		e.writeFloat(a.Channel, console.ParamFader, val)
		time.Sleep(rampStepSleep)
	}
	// Final write lands on the exact target.
	e.writeFloat(a.Channel, console.ParamFader, target)

	e.logger.Info("executed fader", "channel", a.Channel,
		"from", current, "to", target, "ramped", true)
	return ExecutionResult{Success: true, ActualValue: target}
}

func (e *Executor) executeEq(a Action) ExecutionResult {
	freqParam, gainParam, qParam, ok := console.EqBandParams(a.Band)
	if !ok {
		return ExecutionResult{Err: fmt.Sprintf("invalid EQ band %d", a.Band)}
	}

	e.writeFloat(a.Channel, freqParam, a.Value)
	e.writeFloat(a.Channel, gainParam, a.Value2)
	e.writeFloat(a.Channel, qParam, a.Value3)

	e.logger.Info("executed eq", "channel", a.Channel, "band", a.Band,
		"freq", a.Value, "gain", a.Value2, "q", a.Value3)
	return ExecutionResult{Success: true, ActualValue: a.Value2}
}
