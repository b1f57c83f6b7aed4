package discovery

import (
	"regexp"
	"strings"
)

// nameRule binds a scribble pattern to a role. Patterns match the
// abbreviations sound engineers actually type into console scribble
// strips ("KK", "SN", "OH", "BV 1", "Ld Vx").
type nameRule struct {
	pattern    *regexp.Regexp
	role       InstrumentRole
	group      string
	confidence Confidence
}

// NameClassifier classifies channels from their console names.
type NameClassifier struct {
	rules []nameRule
}

// Classification is a single classifier verdict.
type Classification struct {
	Role       InstrumentRole
	Group      string
	Confidence Confidence
}

// NewNameClassifier builds the rule set. Rules are tried in order and
// the first match wins.
func NewNameClassifier() *NameClassifier {
	c := &NameClassifier{}
	add := func(pattern string, role InstrumentRole, group string, conf Confidence) {
		c.rules = append(c.rules, nameRule{
			pattern:    regexp.MustCompile("(?i)" + pattern),
			role:       role,
			group:      group,
			confidence: conf,
		})
	}

	// Drums
	add(`^k(ic)?k$|bd|bass.?drum`, RoleKick, "drums", ConfidenceHigh)
	add(`^sn(are)?$|snr`, RoleSnare, "drums", ConfidenceHigh)
	add(`h\.?h|hi.?hat|hihat|hh`, RoleHiHat, "drums", ConfidenceHigh)
	add(`^tom\s*[1-4]?$|t[1-4]$|rack.?tom|floor.?tom`, RoleTom, "drums", ConfidenceHigh)
	add(`^oh$|over.?head|cym(bal)?`, RoleOverhead, "drums", ConfidenceHigh)
	add(`room|amb(ience)?|kit.?mic`, RoleRoomMic, "drums", ConfidenceHigh)

	// Bass
	add(`^bass?\s*(d\.?i\.?|direct)?$|b\.d\.i\.?|bgtr`, RoleBassGuitar, "bass", ConfidenceHigh)
	add(`bass.?amp|b\.?amp`, RoleBassAmp, "bass", ConfidenceHigh)

	// Guitars
	add(`^e\.?gtr|elec.?git|e\.?guitar|gtr\s*[lr12]?$`, RoleElectricGuitar, "guitars", ConfidenceHigh)
	add(`ac.?git|acoustic|a\.?gtr`, RoleAcousticGuitar, "guitars", ConfidenceHigh)

	// Keys
	add(`^pno$|piano|grand`, RolePiano, "keys", ConfidenceHigh)
	add(`^keys?\s*[lr12]?$|keyboard`, RoleKeys, "keys", ConfidenceHigh)
	add(`organ|b3|hammond`, RoleOrgan, "keys", ConfidenceHigh)
	add(`synth|moog|arp|poly|pad|seq`, RoleSynth, "keys", ConfidenceHigh)

	// Vocals
	add(`^(lead\s*)?vox\s*(l|r|lr|1|2)?$|^(lead\s*)?vocal|^lv$|^ld\.?vx`, RoleLeadVocal, "vocals", ConfidenceHigh)
	add(`bv\s*[1-4lr]?|b\.?v\.|back.?voc|backing|harmony|bg\.?voc`, RoleBackingVocal, "vocals", ConfidenceHigh)
	add(`choir|chorus`, RoleChoir, "vocals", ConfidenceHigh)
	add(`presenter|speaker|announce|mc$|host`, RolePresenter, "vocals", ConfidenceHigh)
	add(`talk.?back|tb$|comm`, RoleTalkback, "talkback", ConfidenceHigh)

	// Brass / strings
	add(`tpt|trumpet|trp`, RoleTrumpet, "brass", ConfidenceHigh)
	add(`sax|alto|tenor|bari`, RoleSaxophone, "brass", ConfidenceHigh)
	add(`vln|violin|fiddle`, RoleViolin, "strings", ConfidenceHigh)

	// Playback / FX
	add(`playback|track[s]?|click|backing.?track|bt$`, RolePlayback, "playback", ConfidenceHigh)
	add(`^fx\s*ret|return|rev.?return|delay.?ret`, RoleFXReturn, "fx", ConfidenceHigh)
	add(`^d\.?i\.?$|direct`, RoleDI, "misc", ConfidenceMedium)

	// Generic console defaults carry no information.
	add(`^ch\s*\d+$|^input\s*\d+$|^mic\s*\d+$|^\d+$`, RoleUnknown, "unknown", ConfidenceLow)

	return c
}

// Classify maps a console channel name to a role. An empty name yields
// Unknown confidence; an unrecognised custom name yields Low.
func (c *NameClassifier) Classify(name string) Classification {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Classification{RoleUnknown, "unknown", ConfidenceUnknown}
	}

	for _, rule := range c.rules {
		if rule.pattern.MatchString(trimmed) {
			return Classification{rule.role, rule.group, rule.confidence}
		}
	}

	return Classification{RoleUnknown, "unknown", ConfidenceLow}
}
