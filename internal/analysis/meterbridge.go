package analysis

import (
	"math"

	"mixagent/internal/console"
	"mixagent/internal/discovery"
)

// MixState is the structured mix document handed to the LLM. It
// marshals to the wire schema via encoding/json.
type MixState = map[string]any

func roundTo(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

// BuildMixState serialises the current mix for the decision engine.
// Channels without signal and without a name are omitted, and inactive
// processing blocks are left out entirely, keeping the document small.
func BuildMixState(model *console.Model, channelMap *discovery.Map, issues []Issue) MixState {
	channels := make([]map[string]any, 0, channelMap.Count())

	for _, profile := range channelMap.All() {
		if !profile.Fingerprint.HasSignal && profile.ConsoleName == "" {
			continue
		}

		snap := model.Channel(profile.Index)

		ch := map[string]any{
			"index":      profile.Index,
			"name":       profile.ConsoleName,
			"role":       profile.Role.String(),
			"group":      profile.Group,
			"fader":      roundTo(snap.Fader, 2),
			"muted":      snap.Muted,
			"pan":        roundTo(snap.Pan, 2),
			"rms_db":     roundTo(snap.RmsDB, 1),
			"peak_db":    roundTo(snap.PeakDB, 1),
			"has_signal": snap.RmsDB > -60,
		}

		if profile.StereoPair > 0 {
			ch["stereo_pair"] = profile.StereoPair
		}

		if snap.EqOn {
			eq := make([]map[string]any, 0, len(snap.Eq))
			for b, band := range snap.Eq {
				if math.Abs(band.Gain) > 0.1 {
					eq = append(eq, map[string]any{
						"band": b + 1,
						"freq": band.Freq,
						"gain": roundTo(band.Gain, 1),
						"q":    roundTo(band.Q, 2),
					})
				}
			}
			if len(eq) > 0 {
				ch["eq"] = eq
			}
		}

		if snap.HpfOn && snap.HpfFreq > 20 {
			ch["hpf_hz"] = roundTo(snap.HpfFreq, 0)
		}

		if snap.Comp.On {
			ch["comp"] = map[string]any{
				"threshold": roundTo(snap.Comp.Threshold, 1),
				"ratio":     roundTo(snap.Comp.Ratio, 1),
				"attack":    roundTo(snap.Comp.Attack, 1),
				"release":   roundTo(snap.Comp.Release, 0),
			}
		}

		if snap.Gate.On {
			ch["gate"] = map[string]any{
				"threshold": roundTo(snap.Gate.Threshold, 1),
				"range":     roundTo(snap.Gate.Range, 1),
			}
		}

		channels = append(channels, ch)
	}

	state := MixState{"channels": channels}

	if len(issues) > 0 {
		out := make([]map[string]any, 0, len(issues))
		for _, issue := range issues {
			ij := map[string]any{
				"type":        issue.Type.String(),
				"channel":     issue.Channel,
				"severity":    roundTo(issue.Severity, 2),
				"description": issue.Description,
			}
			if issue.Channel2 > 0 {
				ij["channel2"] = issue.Channel2
			}
			if issue.FreqHz > 0 {
				ij["freq_hz"] = int(issue.FreqHz)
			}
			out = append(out, ij)
		}
		state["issues"] = out
	}

	return state
}

// BuildCompactState is the abbreviated form recorded in session
// snapshots: active channels only, five fields each.
func BuildCompactState(model *console.Model, channelMap *discovery.Map) MixState {
	chs := make([]map[string]any, 0)
	for _, profile := range channelMap.Active() {
		snap := model.Channel(profile.Index)
		chs = append(chs, map[string]any{
			"i":  profile.Index,
			"r":  profile.Role.String(),
			"f":  roundTo(snap.Fader, 2),
			"db": roundTo(snap.RmsDB, 0),
			"pk": roundTo(snap.PeakDB, 0),
		})
	}
	return MixState{"ch": chs}
}
