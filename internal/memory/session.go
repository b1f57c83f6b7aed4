// Package memory keeps the rolling session log the LLM sees as recent
// history, plus an optional sqlite archive for post-show review.
package memory

import (
	"strconv"
	"sync"
	"time"

	"mixagent/internal/action"
)

// EntryType classifies a session memory entry.
type EntryType int

const (
	ActionTaken EntryType = iota
	ActionRejected
	Observation
	EngineerOverride
	EngineerInstruction
	MixSnapshot
)

// wireName returns the tag used in the LLM context document.
func (t EntryType) wireName() string {
	switch t {
	case ActionTaken:
		return "action_taken"
	case ActionRejected:
		return "action_rejected"
	case Observation:
		return "observation"
	case EngineerOverride:
		return "engineer_override"
	case EngineerInstruction:
		return "engineer_instruction"
	case MixSnapshot:
		return "snapshot"
	}
	return "unknown"
}

// Entry is one session memory record.
type Entry struct {
	Timestamp time.Time
	Type      EntryType
	Action    action.Action
	MixState  map[string]any // context at time of entry, may be nil
	Note      string
}

// Session is a bounded FIFO of entries. When the cap is exceeded the
// oldest entries are evicted.
type Session struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int

	// sink, when set, additionally receives every entry (the archive).
	sink func(Entry)
}

// NewSession creates a session memory holding at most cap entries.
func NewSession(cap int) *Session {
	if cap < 1 {
		cap = 1
	}
	return &Session{cap: cap}
}

// SetSink installs a secondary consumer for every recorded entry.
func (s *Session) SetSink(sink func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Session) record(e Entry) {
	e.Timestamp = time.Now()

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if over := len(s.entries) - s.cap; over > 0 {
		s.entries = append(s.entries[:0], s.entries[over:]...)
	}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(e)
	}
}

// RecordAction logs an executed action with its mix context.
func (s *Session) RecordAction(a action.Action, context map[string]any) {
	s.record(Entry{Type: ActionTaken, Action: a, MixState: context, Note: a.Describe()})
}

// RecordRejection logs a rejected or failed-validation action.
func (s *Session) RecordRejection(a action.Action, reason string) {
	s.record(Entry{Type: ActionRejected, Action: a, Note: "Rejected: " + reason})
}

// RecordObservation logs an LLM observation.
func (s *Session) RecordObservation(note string) {
	s.record(Entry{
		Type:   Observation,
		Action: action.Action{Type: action.Observation, Reason: note},
		Note:   note,
	})
}

// RecordEngineerOverride logs a manual change made on the console
// surface.
func (s *Session) RecordEngineerOverride(channel int, what string) {
	s.record(Entry{
		Type:   EngineerOverride,
		Action: action.Action{Channel: channel, Reason: what},
		Note:   "Engineer override ch" + strconv.Itoa(channel) + ": " + what,
	})
}

// RecordInstruction logs a standing instruction from the engineer.
func (s *Session) RecordInstruction(instruction string) {
	s.record(Entry{
		Type:   EngineerInstruction,
		Action: action.Action{Type: action.Observation, Reason: instruction},
		Note:   instruction,
	})
}

// RecordSnapshot logs a periodic compact mix snapshot.
func (s *Session) RecordSnapshot(mixState map[string]any) {
	s.record(Entry{Type: MixSnapshot, MixState: mixState, Note: "Mix snapshot"})
}

// ActiveInstructions returns the most recent maxCount instructions in
// chronological order.
func (s *Session) ActiveInstructions(maxCount int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for i := len(s.entries) - 1; i >= 0 && len(out) < maxCount; i-- {
		if s.entries[i].Type == EngineerInstruction {
			out = append(out, s.entries[i].Note)
		}
	}
	// Collected newest-first; flip to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// BuildContext returns the last maxRecent entries as the LLM history
// document: chronological, tagged by type, each decorated with
// seconds_ago.
func (s *Session) BuildContext(maxRecent int) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.entries) - maxRecent
	if start < 0 {
		start = 0
	}

	now := time.Now()
	ctx := make([]map[string]any, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		entry := map[string]any{
			"seconds_ago": int(now.Sub(e.Timestamp).Seconds()),
			"note":        e.Note,
			"type":        e.Type.wireName(),
		}
		switch e.Type {
		case ActionTaken, ActionRejected:
			entry["action"] = e.Action.ToJSON()
		case EngineerOverride:
			entry["channel"] = e.Action.Channel
		case EngineerInstruction:
			entry["instruction"] = e.Note
		}
		ctx = append(ctx, entry)
	}
	return ctx
}

// Size returns the current entry count.
func (s *Session) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
