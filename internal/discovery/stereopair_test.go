package discovery

import "testing"

func profileAt(index int, name string, role InstrumentRole, hasSignal bool, dominant float64) Profile {
	fp := newFingerprint()
	fp.HasSignal = hasSignal
	fp.DominantFreqHz = dominant
	return Profile{Index: index, ConsoleName: name, Role: role, Fingerprint: fp}
}

func TestDetectStereoPairsByName(t *testing.T) {
	channels := []Profile{
		profileAt(1, "Kick", RoleKick, true, 60),
		profileAt(2, "Snare", RoleSnare, true, 250),
		profileAt(3, "OH L", RoleOverhead, true, 5000),
		profileAt(4, "OH R", RoleOverhead, true, 5200),
	}

	pairs := DetectStereoPairs(channels)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v, want 1", pairs)
	}
	if pairs[0].Left != 3 || pairs[0].Right != 4 {
		t.Errorf("pair = %+v, want 3/4", pairs[0])
	}
	if pairs[0].Confidence <= 0.5 {
		t.Errorf("confidence = %v", pairs[0].Confidence)
	}
}

func TestDetectStereoPairsNumericSuffix(t *testing.T) {
	channels := []Profile{
		profileAt(7, "Keys 1", RoleKeys, true, 800),
		profileAt(8, "Keys 2", RoleKeys, true, 820),
	}
	pairs := DetectStereoPairs(channels)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v, want 1", pairs)
	}
}

func TestNoPairForUnrelatedNeighbours(t *testing.T) {
	channels := []Profile{
		profileAt(1, "Bass", RoleBassGuitar, true, 80),
		profileAt(2, "Vox", RoleLeadVocal, true, 1200),
	}
	if pairs := DetectStereoPairs(channels); len(pairs) != 0 {
		t.Errorf("pairs = %+v, want none", pairs)
	}
}

func TestNoPairAcrossGap(t *testing.T) {
	channels := []Profile{
		profileAt(3, "GTR L", RoleElectricGuitar, true, 900),
		profileAt(5, "GTR R", RoleElectricGuitar, true, 900),
	}
	if pairs := DetectStereoPairs(channels); len(pairs) != 0 {
		t.Errorf("non-adjacent channels paired: %+v", pairs)
	}
}

func TestStripPairSuffix(t *testing.T) {
	cases := map[string]string{
		"oh l":   "oh",
		"oh r":   "oh",
		"keys 1": "keys",
		"gtr-2":  "gtr",
		"":       "",
	}
	for in, want := range cases {
		if got := stripPairSuffix(in); got != want {
			t.Errorf("stripPairSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
