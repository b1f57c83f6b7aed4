// Package action defines the typed mix-action schema shared by the
// decision engine, the approval queue, the validator, and the
// executor, plus the lenient JSON codec for LLM responses.
package action

import (
	"encoding/json"
	"fmt"
)

// Type enumerates every action kind the decision engine can produce.
type Type int

const (
	SetFader Type = iota
	SetPan
	SetEqBand
	SetCompressor
	SetGate
	SetHighPass
	SetSendLevel
	MuteChannel
	UnmuteChannel
	NoAction    // LLM decided no change is needed
	Observation // LLM notes something but takes no action
)

var typeNames = map[Type]string{
	SetFader:      "set_fader",
	SetPan:        "set_pan",
	SetEqBand:     "set_eq",
	SetCompressor: "set_comp",
	SetGate:       "set_gate",
	SetHighPass:   "set_hpf",
	SetSendLevel:  "set_send",
	MuteChannel:   "mute",
	UnmuteChannel: "unmute",
	NoAction:      "no_action",
	Observation:   "observation",
}

// String returns the wire name.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "no_action"
}

// typeFromString maps a wire name back to a Type; anything
// unrecognised becomes NoAction.
func typeFromString(s string) Type {
	for t, name := range typeNames {
		if name == s {
			return t
		}
	}
	return NoAction
}

// Urgency orders how quickly an action should be applied.
type Urgency int

const (
	Immediate Urgency = iota // feedback, clipping — apply now
	Fast                     // audible issue — apply within a tick
	Normal                   // optimisation — can wait for approval
	Low                      // suggestion — apply when convenient
)

// String returns the wire name.
func (u Urgency) String() string {
	switch u {
	case Immediate:
		return "immediate"
	case Fast:
		return "fast"
	case Low:
		return "low"
	}
	return "normal"
}

func urgencyFromString(s string) Urgency {
	switch s {
	case "immediate":
		return Immediate
	case "fast":
		return Fast
	case "low":
		return Low
	}
	return Normal
}

// Action is one proposed console change. The numeric payload slots are
// interpreted per kind:
//
//	SetFader:      Value = fader 0..1
//	SetPan:        Value = -1..+1
//	SetEqBand:     Value = freq Hz, Value2 = gain dB, Value3 = Q, Band = 1..6
//	SetCompressor: Value = threshold dB, Value2 = ratio
//	SetGate:       Value = threshold dB
//	SetHighPass:   Value = freq Hz
//	SetSendLevel:  Value = 0..1, Aux = bus index
type Action struct {
	Type     Type
	Channel  int // 1-based
	Aux      int // for sends
	Band     int // EQ band number
	Value    float64
	Value2   float64
	Value3   float64
	Urgency  Urgency
	MaxDelta float64 // per-action safety override, 0 = global default
	Reason   string
	Role     string // "LeadVocal", "Kick", ...
}

// Describe renders the action for the approval UI and logs.
func (a Action) Describe() string {
	switch a.Type {
	case SetFader:
		return fmt.Sprintf("Set ch%d (%s) fader to %d%%", a.Channel, a.Role, int(a.Value*100))
	case SetPan:
		return fmt.Sprintf("Set ch%d pan to %d", a.Channel, int(a.Value*100))
	case SetEqBand:
		return fmt.Sprintf("Set ch%d EQ band %d: %.0fHz @ %.1fdB Q=%.1f",
			a.Channel, a.Band, a.Value, a.Value2, a.Value3)
	case SetCompressor:
		return fmt.Sprintf("Set ch%d comp threshold=%.0fdB ratio=%.1f:1",
			a.Channel, a.Value, a.Value2)
	case SetGate:
		return fmt.Sprintf("Set ch%d gate threshold=%.0fdB", a.Channel, a.Value)
	case SetHighPass:
		return fmt.Sprintf("Set ch%d HPF to %.0fHz", a.Channel, a.Value)
	case SetSendLevel:
		return fmt.Sprintf("Set ch%d send to bus %d level=%d%%",
			a.Channel, a.Aux, int(a.Value*100))
	case MuteChannel:
		return fmt.Sprintf("Mute ch%d (%s)", a.Channel, a.Role)
	case UnmuteChannel:
		return fmt.Sprintf("Unmute ch%d (%s)", a.Channel, a.Role)
	case NoAction:
		return "No action needed: " + a.Reason
	case Observation:
		return "Note: " + a.Reason
	}
	return "Unknown action"
}

// wireAction is the JSON shape of one action in the LLM response.
type wireAction struct {
	Action  string  `json:"action"`
	Channel int     `json:"channel"`
	Role    string  `json:"role,omitempty"`
	Value   float64 `json:"value"`
	Value2  float64 `json:"value2"`
	Value3  *float64 `json:"value3,omitempty"`
	Band    *int    `json:"band,omitempty"`
	Aux     int     `json:"aux"`
	Urgency string  `json:"urgency,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// ToJSON serialises the action in the wire schema.
func (a Action) ToJSON() map[string]any {
	return map[string]any{
		"action":      a.Type.String(),
		"channel":     a.Channel,
		"role":        a.Role,
		"value":       a.Value,
		"value2":      a.Value2,
		"value3":      a.Value3,
		"band":        a.Band,
		"aux":         a.Aux,
		"urgency":     a.Urgency.String(),
		"reason":      a.Reason,
		"description": a.Describe(),
	}
}

// FromJSON parses one action object leniently: unknown action names
// become NoAction, missing fields take defaults, and it never fails —
// garbage decodes to a harmless NoAction.
func FromJSON(raw json.RawMessage) Action {
	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return Action{Type: NoAction, Value3: 1, Band: 1}
	}

	a := Action{
		Type:    typeFromString(w.Action),
		Channel: w.Channel,
		Aux:     w.Aux,
		Value:   w.Value,
		Value2:  w.Value2,
		Value3:  1,
		Band:    1,
		Urgency: urgencyFromString(w.Urgency),
		Reason:  w.Reason,
		Role:    w.Role,
	}
	if w.Value3 != nil {
		a.Value3 = *w.Value3
	}
	if w.Band != nil {
		a.Band = *w.Band
	}
	return a
}
