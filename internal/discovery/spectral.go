package discovery

import "math"

// bandExpectation is the expected dB window for one band, with its
// weight in the overall score.
type bandExpectation struct {
	minDB, maxDB float64
	weight       float64
}

// spectralProfile is the energy template for one instrument.
type spectralProfile struct {
	role  InstrumentRole
	group string

	sub      bandExpectation // 20–80 Hz
	bass     bandExpectation // 80–250 Hz
	mid      bandExpectation // 500 Hz–2 kHz
	presence bandExpectation // 6–10 kHz

	minCrest, maxCrest float64
}

// SpectralClassifier template-matches a fingerprint's band energies
// and crest factor against known instrument profiles.
type SpectralClassifier struct {
	profiles []spectralProfile
}

// SpectralResult is the best template match for a fingerprint.
type SpectralResult struct {
	Role       InstrumentRole
	Group      string
	MatchScore float64 // 0–1
}

// Scores below acceptThreshold are treated as no match; scores at or
// above StrongMatch override a low-confidence name classification.
const (
	acceptThreshold = 0.4
	StrongMatch     = 0.6
)

// NewSpectralClassifier builds the instrument template set.
func NewSpectralClassifier() *SpectralClassifier {
	return &SpectralClassifier{profiles: []spectralProfile{
		// Kick: strong sub/bass, percussive, minimal high end.
		{
			role: RoleKick, group: "drums",
			sub:      bandExpectation{-10, 0, 2},
			bass:     bandExpectation{-10, 0, 2},
			mid:      bandExpectation{-30, -10, 1},
			presence: bandExpectation{-40, -15, 0.5},
			minCrest: 8, maxCrest: 30,
		},
		// Snare: strong mid, percussive.
		{
			role: RoleSnare, group: "drums",
			sub:      bandExpectation{-40, -20, 1},
			bass:     bandExpectation{-20, -5, 1},
			mid:      bandExpectation{-10, 2, 2},
			presence: bandExpectation{-20, -5, 1.5},
			minCrest: 10, maxCrest: 35,
		},
		// Hi-hat: mostly high-frequency energy.
		{
			role: RoleHiHat, group: "drums",
			sub:      bandExpectation{-70, -40, 1},
			bass:     bandExpectation{-60, -30, 1},
			mid:      bandExpectation{-30, -10, 1},
			presence: bandExpectation{-5, 5, 2.5},
			minCrest: 15, maxCrest: 40,
		},
		// Bass guitar: dominant bass, sustained.
		{
			role: RoleBassGuitar, group: "bass",
			sub:      bandExpectation{-5, 5, 1.5},
			bass:     bandExpectation{-5, 5, 2},
			mid:      bandExpectation{-20, -5, 1},
			presence: bandExpectation{-45, -20, 0.5},
			minCrest: 2, maxCrest: 8,
		},
		// Lead vocal: concentrated mid/upper-mid.
		{
			role: RoleLeadVocal, group: "vocals",
			sub:      bandExpectation{-50, -25, 0.5},
			bass:     bandExpectation{-25, -5, 1},
			mid:      bandExpectation{-10, 3, 2},
			presence: bandExpectation{-20, -5, 1.5},
			minCrest: 4, maxCrest: 12,
		},
		// Electric guitar: mid-heavy.
		{
			role: RoleElectricGuitar, group: "guitars",
			sub:      bandExpectation{-60, -30, 1},
			bass:     bandExpectation{-30, -10, 1},
			mid:      bandExpectation{-5, 5, 2},
			presence: bandExpectation{-20, -5, 1},
			minCrest: 3, maxCrest: 10,
		},
		// Acoustic guitar: broad midrange with string attack.
		{
			role: RoleAcousticGuitar, group: "guitars",
			sub:      bandExpectation{-50, -30, 1},
			bass:     bandExpectation{-20, -5, 1.5},
			mid:      bandExpectation{-10, 3, 2},
			presence: bandExpectation{-15, 0, 1.5},
			minCrest: 4, maxCrest: 12,
		},
		// Piano: broad, full range.
		{
			role: RolePiano, group: "keys",
			sub:      bandExpectation{-30, -10, 1},
			bass:     bandExpectation{-15, -5, 1.5},
			mid:      bandExpectation{-10, 0, 2},
			presence: bandExpectation{-15, -5, 1.5},
			minCrest: 5, maxCrest: 15,
		},
		// Overheads: broadband with cymbal energy.
		{
			role: RoleOverhead, group: "drums",
			sub:      bandExpectation{-30, -10, 1},
			bass:     bandExpectation{-25, -10, 1},
			mid:      bandExpectation{-15, -5, 1.5},
			presence: bandExpectation{-5, 5, 2},
			minCrest: 6, maxCrest: 20,
		},
		// Tom: like kick with more mid attack.
		{
			role: RoleTom, group: "drums",
			sub:      bandExpectation{-15, -5, 1.5},
			bass:     bandExpectation{-10, 0, 2},
			mid:      bandExpectation{-15, 0, 1.5},
			presence: bandExpectation{-30, -10, 0.5},
			minCrest: 8, maxCrest: 25,
		},
	}}
}

// Classify finds the best-scoring template for a fingerprint. Signals
// below the threshold classify as NoSignal; weak matches return
// Unknown with the best score for diagnostics.
func (c *SpectralClassifier) Classify(fp Fingerprint) SpectralResult {
	if !fp.HasSignal {
		return SpectralResult{RoleNoSignal, "inactive", 0}
	}

	var best *spectralProfile
	bestScore := 0.0
	for i := range c.profiles {
		if score := matchScore(fp, &c.profiles[i]); score > bestScore {
			bestScore = score
			best = &c.profiles[i]
		}
	}

	if best == nil || bestScore < acceptThreshold {
		return SpectralResult{RoleUnknown, "unknown", bestScore}
	}
	return SpectralResult{best.role, best.group, bestScore}
}

func matchScore(fp Fingerprint, p *spectralProfile) float64 {
	var totalWeight, weightedScore float64

	scoreBand := func(energy float64, exp bandExpectation) {
		if exp.weight == 0 {
			return
		}
		var score float64
		if energy >= exp.minDB && energy <= exp.maxDB {
			score = 1
		} else {
			dist := min(math.Abs(energy-exp.minDB), math.Abs(energy-exp.maxDB))
			score = max(0, 1-dist/12)
		}
		weightedScore += score * exp.weight
		totalWeight += exp.weight
	}

	scoreBand(fp.SubBassEnergy, p.sub)
	scoreBand(fp.BassEnergy, p.bass)
	scoreBand(fp.MidEnergy, p.mid)
	scoreBand(fp.PresenceEnergy, p.presence)

	if fp.CrestFactor >= p.minCrest && fp.CrestFactor <= p.maxCrest {
		weightedScore += 2
	}
	totalWeight += 2

	if totalWeight == 0 {
		return 0
	}
	return weightedScore / totalWeight
}
