// Package prefs learns the engineer's mixing taste from their
// approve/reject decisions and standing instructions, and renders it
// as a compact preferences document for the LLM context.
package prefs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"mixagent/internal/action"
)

const maxInstructions = 20

// RoleStats accumulates per-role decision counters.
type RoleStats struct {
	TotalApproved int `json:"approved"`
	TotalRejected int `json:"rejected"`

	EqBoostApprovals  int `json:"eq_boost_approved"`
	EqCutApprovals    int `json:"eq_cut_approved"`
	EqBoostRejections int `json:"eq_boost_rejected"`
	EqCutRejections   int `json:"eq_cut_rejected"`

	CompApprovals  int     `json:"comp_approved"`
	CompRejections int     `json:"comp_rejected"`
	CompRatioSum   float64 `json:"comp_ratio_sum"`

	FaderApprovals  []float64 `json:"fader_approvals,omitempty"`
	FaderRejections []float64 `json:"fader_rejections,omitempty"`
	// Positive when the engineer tends to approve pushes above unity
	// midpoint, negative below.
	FaderAdjustDirection int `json:"fader_direction"`

	HpfApprovals []float64 `json:"hpf_approvals,omitempty"`
}

// Learner tracks per-role statistics and standing instructions, with
// JSON persistence across sessions.
type Learner struct {
	mu           sync.Mutex
	roleStats    map[string]*RoleStats
	instructions []string
	dirty        bool
}

// NewLearner creates an empty learner.
func NewLearner() *Learner {
	return &Learner{roleStats: make(map[string]*RoleStats)}
}

func (l *Learner) stats(role string) *RoleStats {
	s, ok := l.roleStats[role]
	if !ok {
		s = &RoleStats{}
		l.roleStats[role] = s
	}
	return s
}

// RecordApproval notes that the engineer approved an action for a
// role.
func (l *Learner) RecordApproval(a action.Action, role string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats(role)
	s.TotalApproved++

	switch a.Type {
	case action.SetFader:
		s.FaderApprovals = append(s.FaderApprovals, a.Value)
		if a.Value > 0.5 {
			s.FaderAdjustDirection++
		} else {
			s.FaderAdjustDirection--
		}
	case action.SetEqBand:
		if a.Value2 > 0 {
			s.EqBoostApprovals++
		} else {
			s.EqCutApprovals++
		}
	case action.SetCompressor:
		s.CompApprovals++
		s.CompRatioSum += a.Value2
	case action.SetHighPass:
		s.HpfApprovals = append(s.HpfApprovals, a.Value)
	}
	l.dirty = true
}

// RecordRejection notes that the engineer rejected an action for a
// role.
func (l *Learner) RecordRejection(a action.Action, role string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats(role)
	s.TotalRejected++

	switch a.Type {
	case action.SetFader:
		s.FaderRejections = append(s.FaderRejections, a.Value)
	case action.SetEqBand:
		if a.Value2 > 0 {
			s.EqBoostRejections++
		} else {
			s.EqCutRejections++
		}
	case action.SetCompressor:
		s.CompRejections++
	}
	l.dirty = true
}

// RecordInstruction keeps a rolling list of standing instructions.
func (l *Learner) RecordInstruction(instruction string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instructions = append(l.instructions, instruction)
	if len(l.instructions) > maxInstructions {
		l.instructions = l.instructions[len(l.instructions)-maxInstructions:]
	}
	l.dirty = true
}

// TotalDecisions returns the number of recorded approvals and
// rejections across all roles.
func (l *Learner) TotalDecisions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, s := range l.roleStats {
		total += s.TotalApproved + s.TotalRejected
	}
	return total
}

func roundTo(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, f := range v {
		sum += f
	}
	return sum / float64(len(v))
}

// BuildPreferences renders the learned preferences for the LLM
// context. It returns nil until enough data has accumulated to say
// anything useful.
func (l *Learner) BuildPreferences() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buildPreferencesLocked()
}

func (l *Learner) buildPreferencesLocked() map[string]any {
	if len(l.roleStats) == 0 && len(l.instructions) == 0 {
		return nil
	}

	prefs := make(map[string]any)

	var totalApproved, totalRejected int
	var eqBoostApproved, eqCutApproved, eqBoostRejected, eqCutRejected int
	for _, s := range l.roleStats {
		totalApproved += s.TotalApproved
		totalRejected += s.TotalRejected
		eqBoostApproved += s.EqBoostApprovals
		eqCutApproved += s.EqCutApprovals
		eqBoostRejected += s.EqBoostRejections
		eqCutRejected += s.EqCutRejections
	}

	if totalApproved+totalRejected > 5 {
		rate := float64(totalApproved) / float64(totalApproved+totalRejected)
		prefs["overall_approval_rate"] = roundTo(rate, 2)
		if rate < 0.4 {
			prefs["note"] = "Engineer rejects many suggestions — be more conservative"
		} else if rate > 0.8 {
			prefs["note"] = "Engineer trusts AI suggestions — confidence is appropriate"
		}
	}

	if eqBoostApproved+eqCutApproved+eqBoostRejected+eqCutRejected > 3 {
		if eqBoostRejected > eqBoostApproved*2 {
			prefs["eq_tendency"] = "Engineer prefers cuts over boosts — use subtractive EQ"
		} else if eqBoostApproved > eqCutApproved {
			prefs["eq_tendency"] = "Engineer is comfortable with EQ boosts"
		}
	}

	rolePrefs := make(map[string]any)
	for role, s := range l.roleStats {
		decisions := s.TotalApproved + s.TotalRejected
		if decisions < 3 {
			continue
		}

		rp := make(map[string]any)
		rate := float64(s.TotalApproved) / float64(decisions)
		rp["approval_rate"] = roundTo(rate, 2)

		if len(s.FaderApprovals) > 0 {
			rp["preferred_fader_range"] = roundTo(average(s.FaderApprovals), 2)
		}
		if s.CompApprovals+s.CompRejections > 2 {
			if s.CompRejections > s.CompApprovals {
				rp["dynamics"] = "engineer prefers less compression on this"
			} else if s.CompApprovals > 0 {
				rp["preferred_comp_ratio"] = roundTo(s.CompRatioSum/float64(s.CompApprovals), 1)
			}
		}
		if len(s.HpfApprovals) > 0 {
			rp["preferred_hpf_hz"] = int(average(s.HpfApprovals))
		}
		if rate < 0.3 {
			rp["warning"] = "engineer frequently rejects changes to this — leave it alone unless asked"
		}

		rolePrefs[role] = rp
	}
	if len(rolePrefs) > 0 {
		prefs["role_preferences"] = rolePrefs
	}

	if len(prefs) == 0 {
		return nil
	}
	return prefs
}

// persistedState is the on-disk preferences file schema.
type persistedState struct {
	Instructions []string              `json:"instructions"`
	RoleStats    map[string]*RoleStats `json:"role_stats"`
}

// IsDirty reports whether there are unsaved changes.
func (l *Learner) IsDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// SaveFile writes the learner state to path and clears the dirty bit.
func (l *Learner) SaveFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(persistedState{
		Instructions: l.instructions,
		RoleStats:    l.roleStats,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	l.dirty = false
	return nil
}

// LoadFile replaces the learner state from path.
func (l *Learner) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read preferences: %w", err)
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse preferences: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.instructions = state.Instructions
	l.roleStats = state.RoleStats
	if l.roleStats == nil {
		l.roleStats = make(map[string]*RoleStats)
	}
	l.dirty = false
	return nil
}

// Instructions returns a copy of the standing instruction list.
func (l *Learner) Instructions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.instructions...)
}
