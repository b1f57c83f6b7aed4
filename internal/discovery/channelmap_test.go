package discovery

import "testing"

func TestMapUpdateAndQuery(t *testing.T) {
	m := NewMap(8)
	if m.Count() != 8 {
		t.Fatalf("Count = %d, want 8", m.Count())
	}

	p := m.Profile(3)
	p.ConsoleName = "Kick"
	p.Role = RoleKick
	p.Group = "drums"
	p.Fingerprint.HasSignal = true
	m.UpdateProfile(p)

	got := m.Profile(3)
	if got.Role != RoleKick || got.ConsoleName != "Kick" {
		t.Errorf("profile = %+v", got)
	}

	if byRole := m.ByRole(RoleKick); len(byRole) != 1 || byRole[0].Index != 3 {
		t.Errorf("ByRole = %+v", byRole)
	}
	if byGroup := m.ByGroup("drums"); len(byGroup) != 1 {
		t.Errorf("ByGroup = %+v", byGroup)
	}
}

func TestMapActiveExcludesMutedAndSilent(t *testing.T) {
	m := NewMap(4)

	active := m.Profile(1)
	active.Fingerprint.HasSignal = true
	m.UpdateProfile(active)

	muted := m.Profile(2)
	muted.Fingerprint.HasSignal = true
	muted.Muted = true
	m.UpdateProfile(muted)

	got := m.Active()
	if len(got) != 1 || got[0].Index != 1 {
		t.Errorf("Active = %+v", got)
	}
}

func TestMapOutOfRange(t *testing.T) {
	m := NewMap(4)

	m.UpdateProfile(Profile{Index: 0, ConsoleName: "x"})
	m.UpdateProfile(Profile{Index: 5, ConsoleName: "x"})
	for ch := 1; ch <= 4; ch++ {
		if m.Profile(ch).ConsoleName != "" {
			t.Errorf("out-of-range update landed on ch%d", ch)
		}
	}

	if p := m.Profile(0); p.Index != 0 {
		t.Errorf("Profile(0) = %+v", p)
	}
	if p := m.Profile(9); p.Index != 0 {
		t.Errorf("Profile(9) = %+v", p)
	}
}
