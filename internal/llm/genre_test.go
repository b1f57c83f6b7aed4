package llm

import (
	"os"
	"path/filepath"
	"testing"

	"mixagent/internal/discovery"
)

func TestBuiltinPresetsPresent(t *testing.T) {
	lib := NewGenrePresetLibrary()
	for _, name := range []string{"rock", "jazz", "worship", "edm", "acoustic"} {
		if lib.Get(name) == nil {
			t.Errorf("preset %q missing", name)
		}
	}
	if lib.Get("polka") != nil {
		t.Error("unexpected preset")
	}
	if len(lib.Available()) < 5 {
		t.Errorf("Available() = %v", lib.Available())
	}
}

func TestRockPresetVocalOnTop(t *testing.T) {
	lib := NewGenrePresetLibrary()
	rock := lib.Get("rock")

	vocal := rock.TargetForRole(discovery.RoleLeadVocal)
	if vocal == nil {
		t.Fatal("rock preset has no lead vocal target")
	}
	if vocal.TargetRmsRelative != 0 {
		t.Errorf("lead vocal target = %v, want 0 (top of mix)", vocal.TargetRmsRelative)
	}

	kick := rock.TargetForRole(discovery.RoleKick)
	if kick == nil || kick.TargetRmsRelative >= vocal.TargetRmsRelative {
		t.Errorf("kick target = %+v, want below vocal", kick)
	}

	if rock.TargetForRole(discovery.RoleCello) != nil {
		t.Error("rock preset has a cello target")
	}
}

func TestPresetToJSONOmitsEmpty(t *testing.T) {
	p := &GenrePreset{
		Name:        "test",
		Description: "d",
		Targets: []RoleMixTarget{
			{Role: discovery.RoleKick, TargetRmsRelative: -6},
		},
	}
	j := p.ToJSON()
	targets := j["targets"].([]map[string]any)
	if len(targets) != 1 {
		t.Fatalf("targets = %v", targets)
	}
	for _, key := range []string{"pan", "eq_character", "dynamics", "notes"} {
		if _, ok := targets[0][key]; ok {
			t.Errorf("empty field %q serialised", key)
		}
	}
}

func TestLoadCustomPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surf.json")
	content := `{
		"genre": "surf",
		"description": "Reverb-drenched guitars",
		"targets": [
			{"role": "ElectricGuitar", "target_db_relative": -2, "pan": -0.4, "eq_character": "drippy"},
			{"role": "NotARole", "target_db_relative": -4}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewGenrePresetLibrary()
	if err := lib.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	p := lib.Get("surf")
	if p == nil {
		t.Fatal("surf preset not loaded")
	}
	gtr := p.TargetForRole(discovery.RoleElectricGuitar)
	if gtr == nil || gtr.PanTarget != -0.4 {
		t.Errorf("guitar target = %+v", gtr)
	}
	// Unknown roles degrade to Unknown rather than failing the load.
	if unk := p.TargetForRole(discovery.RoleUnknown); unk == nil {
		t.Error("unknown role target dropped")
	}
}

func TestLoadPresetFileErrors(t *testing.T) {
	lib := NewGenrePresetLibrary()
	if err := lib.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile on missing path succeeded")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("not json"), 0o644)
	if err := lib.LoadFile(bad); err == nil {
		t.Error("LoadFile on garbage succeeded")
	}
}
