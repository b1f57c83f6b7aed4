package discovery

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const reviewSystemPrompt = `You are an experienced live sound engineer reviewing a channel map
that was automatically detected from a mixing console.

Your job is to:
1. Identify any channels that are probably misclassified
2. Spot likely stereo pairs that weren't detected
3. Identify the overall band/show type from the channel layout
4. Flag any channels with suspicious settings (e.g. phantom on a dynamic mic)

Respond ONLY with valid JSON:
{
  "show_type": "rock_band|jazz_quartet|musical_theatre|conference|dj_set|...",
  "show_confidence": 0.85,
  "observations": "brief overall assessment",
  "corrections": [
    {
      "channel": 5,
      "current_role": "Unknown",
      "suggested_role": "ElectricGuitar",
      "reason": "named 'GTR1', spectral profile matches guitar",
      "confidence": 0.9
    }
  ],
  "stereo_pairs": [
    { "left": 15, "right": 16, "reason": "named GTR L/R, same role" }
  ],
  "concerns": [
    {
      "channel": 3,
      "issue": "phantom_48v_on_dynamic",
      "detail": "channel named 'Snare' has 48V phantom — likely a mistake"
    }
  ]
}`

type reviewResponse struct {
	ShowType       string  `json:"show_type"`
	ShowConfidence float64 `json:"show_confidence"`
	Observations   string  `json:"observations"`
	Corrections    []struct {
		Channel       int     `json:"channel"`
		SuggestedRole string  `json:"suggested_role"`
		Reason        string  `json:"reason"`
		Confidence    float64 `json:"confidence"`
	} `json:"corrections"`
	StereoPairs []struct {
		Left  int `json:"left"`
		Right int `json:"right"`
	} `json:"stereo_pairs"`
	Concerns []struct {
		Channel int    `json:"channel"`
		Issue   string `json:"issue"`
		Detail  string `json:"detail"`
	} `json:"concerns"`
}

// Review asks the LLM to sanity-check the locally detected channel
// map. It returns the corrected profiles; manually-overridden profiles
// are never touched.
func Review(caller RawCaller, profiles []Profile, logger *slog.Logger) ([]Profile, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompt, err := json.Marshal(buildReviewPrompt(profiles))
	if err != nil {
		return nil, fmt.Errorf("marshal review prompt: %w", err)
	}

	response, err := caller.CallRaw(reviewSystemPrompt, string(prompt))
	if err != nil {
		return nil, err
	}

	return applyReview(response, profiles, logger)
}

func buildReviewPrompt(profiles []Profile) map[string]any {
	channels := make([]map[string]any, 0, len(profiles))
	for _, p := range profiles {
		if !p.Fingerprint.HasSignal && p.ConsoleName == "" {
			continue
		}
		channels = append(channels, map[string]any{
			"channel":       p.Index,
			"name":          p.ConsoleName,
			"inferred_role": p.Role.String(),
			"confidence":    p.Confidence.String(),
			"has_signal":    p.Fingerprint.HasSignal,
			"fader_norm":    p.FaderNorm,
			"muted":         p.Muted,
			"phantom_48v":   p.PhantomPower,
			"phase_invert":  p.PhaseInvert,
			"hpf_hz":        p.HighPassHz,
			"spectral": map[string]any{
				"dominant_hz":   p.Fingerprint.DominantFreqHz,
				"bass_energy":   p.Fingerprint.BassEnergy,
				"mid_energy":    p.Fingerprint.MidEnergy,
				"high_energy":   p.Fingerprint.PresenceEnergy,
				"crest_factor":  p.Fingerprint.CrestFactor,
				"is_percussive": p.Fingerprint.IsPercussive,
			},
		})
	}
	return map[string]any{"channels": channels}
}

// applyReview parses the review response and applies corrections and
// stereo pairs. The response may be wrapped in prose; the text from the
// first '{' to the last '}' is decoded as one JSON object.
func applyReview(response string, profiles []Profile, logger *slog.Logger) ([]Profile, error) {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("review response contains no JSON object")
	}

	var r reviewResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("parse review response: %w", err)
	}

	logger.Info("LLM identified show type",
		"show_type", r.ShowType,
		"confidence", r.ShowConfidence)
	if r.Observations != "" {
		logger.Info("LLM observations", "observations", r.Observations)
	}

	for _, c := range r.Corrections {
		if c.Channel < 1 || c.Channel > len(profiles) {
			continue
		}
		p := &profiles[c.Channel-1]
		if p.ManuallyOverridden {
			continue
		}
		p.Role = RoleFromString(c.SuggestedRole)
		p.Confidence = ConfidenceMedium
		p.LLMNotes = c.Reason
		logger.Info("LLM corrected channel",
			"channel", c.Channel,
			"name", p.ConsoleName,
			"role", c.SuggestedRole)
	}

	for _, pair := range r.StereoPairs {
		if pair.Left < 1 || pair.Left > len(profiles) {
			continue
		}
		if pair.Right < 1 || pair.Right > len(profiles) {
			continue
		}
		profiles[pair.Left-1].StereoPair = pair.Right
		profiles[pair.Right-1].StereoPair = pair.Left
		logger.Info("LLM detected stereo pair", "left", pair.Left, "right", pair.Right)
	}

	for _, concern := range r.Concerns {
		logger.Warn("discovery concern",
			"channel", concern.Channel,
			"issue", concern.Issue,
			"detail", concern.Detail)
	}

	return profiles, nil
}
