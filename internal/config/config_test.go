package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.json")
	content := `{
  "console_type": "wing",
  "console_ip": "10.0.0.5",
  "console_port": 2222,
  "approval_mode": "approve_all",
  "dsp_interval_ms": 25,
  "headless": true,
  "genre": "rock",
  "audio_channels": 16
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConsoleType != "wing" || cfg.ConsoleIP != "10.0.0.5" || cfg.ConsolePort != 2222 {
		t.Errorf("console = %+v", cfg)
	}
	if cfg.ApprovalMode != "approve_all" || !cfg.Headless {
		t.Errorf("modes = %+v", cfg)
	}
	if cfg.DspIntervalMs != 25 {
		t.Errorf("dsp interval = %d", cfg.DspIntervalMs)
	}
	// Unset keys keep their defaults.
	if cfg.LlmIntervalMs != 5000 || cfg.AudioFFTSize != 1024 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.AudioChannels != 16 {
		t.Errorf("audio channels = %d", cfg.AudioChannels)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CONSOLE_IP", "192.168.7.7")

	path := filepath.Join(t.TempDir(), "show.json")
	content := `{"console_ip": "${TEST_CONSOLE_IP}"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConsoleIP != "192.168.7.7" {
		t.Errorf("console_ip = %q", cfg.ConsoleIP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Load on missing file succeeded")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{console_type: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load on malformed file succeeded")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("unknown level accepted")
	}
}
