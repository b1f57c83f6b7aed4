package discovery

import (
	"math"
	"strings"
)

// StereoPair is a detected L/R channel pairing.
type StereoPair struct {
	Left, Right int
	Confidence  float64
}

// DetectStereoPairs finds L/R pairs among adjacent channels. Shared
// root names ("GTR L"/"GTR R", "OH 1"/"OH 2") carry most of the
// weight, reinforced by matching roles and similar spectra.
func DetectStereoPairs(channels []Profile) []StereoPair {
	var pairs []StereoPair

	for i := 0; i+1 < len(channels); i++ {
		a, b := channels[i], channels[i+1]
		if b.Index != a.Index+1 {
			continue
		}

		var score float64
		if nameImpliesPair(a.ConsoleName, b.ConsoleName) {
			score += 0.6
		}
		if a.Role == b.Role && a.Role != RoleUnknown {
			score += 0.2
		}
		score += spectralSimilarity(a.Fingerprint, b.Fingerprint) * 0.2

		if score > 0.5 {
			pairs = append(pairs, StereoPair{a.Index, b.Index, score})
		}
	}
	return pairs
}

func nameImpliesPair(a, b string) bool {
	na, nb := strings.ToLower(a), strings.ToLower(b)
	if na == "" || nb == "" {
		return false
	}
	rootA, rootB := stripPairSuffix(na), stripPairSuffix(nb)
	return rootA != "" && rootA == rootB
}

// stripPairSuffix removes a trailing L/R/1/2 plus separators, leaving
// the shared root name.
func stripPairSuffix(s string) string {
	trim := func(s string) string {
		return strings.TrimRight(s, " -/_")
	}
	s = trim(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case 'l', 'r', '1', '2':
		s = trim(s[:len(s)-1])
	}
	return s
}

func spectralSimilarity(a, b Fingerprint) float64 {
	if !a.HasSignal || !b.HasSignal {
		return 0
	}
	maxFreq := max(a.DominantFreqHz, b.DominantFreqHz)
	if maxFreq < 1 {
		return 0
	}
	diff := math.Abs(a.DominantFreqHz-b.DominantFreqHz) / maxFreq
	return max(0, 1-diff)
}
