// Package analysis turns meters and FFT results into per-channel
// findings and a compact issue list for the decision loop. The heavy
// DSP happens locally; only conclusions reach the LLM.
package analysis

import (
	"fmt"
	"math"
	"sync"

	"mixagent/internal/audio"
	"mixagent/internal/console"
)

// ChannelAnalysis is the merged view of one channel: console meters
// plus the latest FFT result when audio capture is live. FFT data
// takes precedence over meter-derived figures.
type ChannelAnalysis struct {
	Channel        int
	RmsDB          float64
	PeakDB         float64
	CrestFactor    float64
	IsClipping     bool // peak > -0.5 dBFS
	IsFeedbackRisk bool
	DominantFreqHz float64
	Centroid       float64

	SubBass  float64
	Bass     float64
	LowMid   float64
	Mid      float64
	UpperMid float64
	Presence float64
	Air      float64

	HasFFTData bool
}

// MixAnalysis is one DSP tick's result across the whole console.
type MixAnalysis struct {
	Channels []ChannelAnalysis

	Warnings        []string
	HasFeedbackRisk bool
	HasClipping     bool
	ClippingChannel int
}

// IssueType classifies a detected mix problem.
type IssueType int

const (
	IssueClipping IssueType = iota
	IssueFeedbackRisk
	IssueMasking
	IssueBoomy
	IssueHarsh
	IssueThin
	IssueMuddy
	IssueNoHeadroom
)

// String returns the wire name used in the LLM mix-state document.
func (t IssueType) String() string {
	switch t {
	case IssueClipping:
		return "clipping"
	case IssueFeedbackRisk:
		return "feedback_risk"
	case IssueMasking:
		return "masking"
	case IssueBoomy:
		return "boomy"
	case IssueHarsh:
		return "harsh"
	case IssueThin:
		return "thin"
	case IssueMuddy:
		return "muddy"
	case IssueNoHeadroom:
		return "no_headroom"
	}
	return "unknown"
}

// Issue is one concise, actionable finding.
type Issue struct {
	Type        IssueType
	Channel     int
	Channel2    int // second channel for masking
	FreqHz      float64
	Severity    float64 // 0–1
	Description string
}

// Analyser merges console state with FFT results and detects issues.
// UpdateFFT is called from the DSP loop after draining capture rings;
// Analyse runs every DSP tick.
type Analyser struct {
	mu         sync.Mutex
	fftResults []audio.Result
	haveFFT    []bool
	hasFFTData bool
}

// NewAnalyser creates an empty analyser.
func NewAnalyser() *Analyser { return &Analyser{} }

// UpdateFFT stores the latest FFT result for a channel.
func (a *Analyser) UpdateFFT(ch int, result audio.Result) {
	if ch < 1 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch > len(a.fftResults) {
		a.fftResults = append(a.fftResults, audio.Result{})
		a.haveFFT = append(a.haveFFT, false)
	}
	a.fftResults[ch-1] = result
	a.haveFFT[ch-1] = true
	a.hasFFTData = true
}

// HasFFTData reports whether any real FFT result has arrived.
func (a *Analyser) HasFFTData() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasFFTData
}

func (a *Analyser) fftFor(ch int) (audio.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch >= 1 && ch <= len(a.fftResults) && a.haveFFT[ch-1] {
		return a.fftResults[ch-1], true
	}
	return audio.Result{}, false
}

// Analyse builds the per-channel view for the first channelCount
// channels of the model.
func (a *Analyser) Analyse(model *console.Model, channelCount int) MixAnalysis {
	var result MixAnalysis

	for ch := 1; ch <= channelCount; ch++ {
		snap := model.Channel(ch)
		ca := ChannelAnalysis{
			Channel:     ch,
			RmsDB:       snap.RmsDB,
			PeakDB:      snap.PeakDB,
			CrestFactor: snap.PeakDB - snap.RmsDB,
			IsClipping:  snap.PeakDB > -0.5,
			SubBass:     -96, Bass: -96, LowMid: -96, Mid: -96,
			UpperMid: -96, Presence: -96, Air: -96,
		}

		if fft, ok := a.fftFor(ch); ok {
			ca.HasFFTData = true
			ca.DominantFreqHz = fft.DominantFreqHz
			ca.Centroid = fft.SpectralCentroid
			ca.SubBass = fft.Bands.SubBass
			ca.Bass = fft.Bands.Bass
			ca.LowMid = fft.Bands.LowMid
			ca.Mid = fft.Bands.Mid
			ca.UpperMid = fft.Bands.UpperMid
			ca.Presence = fft.Bands.Presence
			ca.Air = fft.Bands.Air
			if fft.RmsDB > -95 {
				// FFT-derived levels are more accurate than the
				// console's meter approximation.
				ca.RmsDB = fft.RmsDB
				ca.PeakDB = fft.PeakDB
				ca.CrestFactor = fft.CrestFactor
				ca.IsClipping = fft.PeakDB > -0.5
			}
		} else {
			ca.DominantFreqHz = snap.Spectral.SpectralCentroid
			ca.Centroid = snap.Spectral.SpectralCentroid
			ca.Bass = snap.Spectral.Bass
			ca.Mid = snap.Spectral.Mid
			ca.Presence = snap.Spectral.Presence
		}

		// Sustained near-sinusoidal energy: low crest factor at high
		// level. The meter-only fallback uses a slightly stricter RMS
		// threshold.
		if ca.HasFFTData {
			if ca.RmsDB > -12 && ca.CrestFactor < 3 {
				ca.IsFeedbackRisk = true
				result.HasFeedbackRisk = true
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"Feedback risk ch%d @%.0fHz (crest=%.0fdB)",
					ch, ca.DominantFreqHz, ca.CrestFactor))
			}
		} else if snap.RmsDB > -10 && ca.CrestFactor < 3 {
			ca.IsFeedbackRisk = true
			result.HasFeedbackRisk = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Possible feedback ch%d", ch))
		}

		if ca.IsClipping {
			result.HasClipping = true
			result.ClippingChannel = ch
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Clipping ch%d (peak=%.0fdBFS)", ch, ca.PeakDB))
		}

		result.Channels = append(result.Channels, ca)
	}

	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DetectIssues distils an analysis into the issue list the LLM sees.
// Silent channels are skipped, and spectral categories require real
// FFT data.
func (a *Analyser) DetectIssues(analysis MixAnalysis) []Issue {
	var issues []Issue

	for _, ch := range analysis.Channels {
		if ch.RmsDB < -60 {
			continue
		}

		if ch.IsClipping {
			issues = append(issues, Issue{
				Type:        IssueClipping,
				Channel:     ch.Channel,
				Severity:    clamp01((ch.PeakDB + 3) / 3),
				Description: fmt.Sprintf("ch%d clipping (peak %.1fdB)", ch.Channel, ch.PeakDB),
			})
		}

		if ch.IsFeedbackRisk {
			issues = append(issues, Issue{
				Type:        IssueFeedbackRisk,
				Channel:     ch.Channel,
				FreqHz:      ch.DominantFreqHz,
				Severity:    clamp01((-ch.CrestFactor + 6) / 6),
				Description: fmt.Sprintf("ch%d feedback risk @%.0fHz", ch.Channel, ch.DominantFreqHz),
			})
		}

		if !ch.HasFFTData {
			continue
		}

		if ch.LowMid > -12 && ch.LowMid > ch.Mid+6 {
			issues = append(issues, Issue{
				Type:        IssueBoomy,
				Channel:     ch.Channel,
				FreqHz:      350,
				Severity:    clamp01((ch.LowMid + 6) / 12),
				Description: fmt.Sprintf("ch%d boomy (low-mid %.1fdB)", ch.Channel, ch.LowMid),
			})
		}

		if ch.UpperMid > -10 && ch.UpperMid > ch.Mid+4 {
			issues = append(issues, Issue{
				Type:        IssueHarsh,
				Channel:     ch.Channel,
				FreqHz:      3500,
				Severity:    clamp01((ch.UpperMid + 6) / 12),
				Description: fmt.Sprintf("ch%d harsh (upper-mid %.1fdB)", ch.Channel, ch.UpperMid),
			})
		}

		if ch.Presence < -30 && ch.Bass > -15 && ch.Bass-ch.Presence > 15 {
			issues = append(issues, Issue{
				Type:        IssueThin,
				Channel:     ch.Channel,
				FreqHz:      5000,
				Severity:    clamp01((ch.Bass - ch.Presence) / 20),
				Description: fmt.Sprintf("ch%d thin (presence %.1fdB)", ch.Channel, ch.Presence),
			})
		}
	}

	// Pairwise masking over active channels with FFT data.
	for i := 0; i < len(analysis.Channels); i++ {
		ca := analysis.Channels[i]
		if ca.RmsDB < -40 || !ca.HasFFTData {
			continue
		}
		for j := i + 1; j < len(analysis.Channels); j++ {
			cb := analysis.Channels[j]
			if cb.RmsDB < -40 || !cb.HasFFTData {
				continue
			}
			if m := checkMasking(ca, cb); m.IsMasking {
				issues = append(issues, Issue{
					Type:     IssueMasking,
					Channel:  ca.Channel,
					Channel2: cb.Channel,
					FreqHz:   m.SuggestedCutHz,
					Severity: clamp01((m.OverlapDB + 12) / 12),
					Description: fmt.Sprintf("ch%d & ch%d masking @%.0fHz",
						ca.Channel, cb.Channel, m.SuggestedCutHz),
				})
			}
		}
	}

	return issues
}

// MaskingResult reports band overlap between two channels and where to
// cut on the less important one.
type MaskingResult struct {
	IsMasking      bool
	OverlapDB      float64
	SuggestedCutHz float64
	SuggestedCutDB float64
}

// checkMasking compares the band energy overlap of two channels. Later
// checks overwrite earlier ones, so the highest matching band wins.
func checkMasking(a, b ChannelAnalysis) MaskingResult {
	var r MaskingResult

	// Bass overlap (the kick vs bass guitar problem).
	if overlap := min(a.Bass, b.Bass); overlap > -15 && math.Abs(a.Bass-b.Bass) < 6 {
		r = MaskingResult{true, overlap, 200, -3}
	}

	// Low-mid overlap (guitar vs keys).
	if overlap := min(a.LowMid, b.LowMid); overlap > -12 && math.Abs(a.LowMid-b.LowMid) < 5 {
		r = MaskingResult{true, overlap, 400, -2.5}
	}

	// Mid overlap (guitar vs vocal).
	if overlap := min(a.Mid, b.Mid); overlap > -12 && math.Abs(a.Mid-b.Mid) < 4 {
		r = MaskingResult{true, overlap, 2000, -2}
	}

	return r
}
