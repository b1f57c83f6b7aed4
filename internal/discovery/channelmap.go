package discovery

import "sync"

// Map is the thread-safe store of channel profiles. The adapter's
// receive goroutine triggers reclassification writes, so all write
// paths must stay cheap and non-blocking.
type Map struct {
	mu       sync.RWMutex
	channels []Profile
}

// NewMap creates a map with count channels.
func NewMap(count int) *Map {
	m := &Map{}
	m.Resize(count)
	return m
}

// Resize re-sizes the map, resetting all profiles.
func (m *Map) Resize(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make([]Profile, count)
	for i := range m.channels {
		m.channels[i] = Profile{
			Index:       i + 1,
			Fingerprint: newFingerprint(),
			FaderNorm:   0.75,
		}
	}
}

// UpdateProfile stores a profile. Out-of-range indices are ignored.
func (m *Map) UpdateProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Index < 1 || p.Index > len(m.channels) {
		return
	}
	m.channels[p.Index-1] = p
}

// Profile returns a copy of the 1-based channel's profile.
func (m *Map) Profile(ch int) Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ch < 1 || ch > len(m.channels) {
		return Profile{}
	}
	return m.channels[ch-1]
}

// ByRole returns all channels with the given role.
func (m *Map) ByRole(role InstrumentRole) []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Profile
	for _, c := range m.channels {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

// ByGroup returns all channels tagged with the given group.
func (m *Map) ByGroup(group string) []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Profile
	for _, c := range m.channels {
		if c.Group == group {
			out = append(out, c)
		}
	}
	return out
}

// Active returns all unmuted channels with signal.
func (m *Map) Active() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Profile
	for _, c := range m.channels {
		if c.Fingerprint.HasSignal && !c.Muted {
			out = append(out, c)
		}
	}
	return out
}

// All returns copies of every profile.
func (m *Map) All() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Profile(nil), m.channels...)
}

// Count returns the channel count.
func (m *Map) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}
