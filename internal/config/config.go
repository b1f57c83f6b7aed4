// Package config loads the show configuration document.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path argument is given.
const DefaultPath = "config/show.json"

// Config is the show configuration. The file is JSON by convention
// (config/show.json); YAML is a superset of JSON, so the same loader
// accepts either. Environment variables in the file are expanded
// before parsing.
type Config struct {
	ConsoleType string `yaml:"console_type"` // x32, m32, wing, avantis
	ConsoleIP   string `yaml:"console_ip"`
	ConsolePort int    `yaml:"console_port"` // 0 = protocol default

	ApprovalMode string `yaml:"approval_mode"` // approve_all, auto_urgent, auto_all, deny_all

	DspIntervalMs      int  `yaml:"dsp_interval_ms"`
	LlmIntervalMs      int  `yaml:"llm_interval_ms"`
	MeterRefreshMs     int  `yaml:"meter_refresh_ms"`
	SnapshotIntervalMs int  `yaml:"snapshot_interval_ms"`
	Headless           bool `yaml:"headless"`

	OllamaPrimary  bool    `yaml:"ollama_primary"`
	LlmTemperature float64 `yaml:"llm_temperature"`
	LlmMaxTokens   int     `yaml:"llm_max_tokens"`
	PromptDir      string  `yaml:"prompt_dir"`

	Genre           string `yaml:"genre"`
	PreferencesFile string `yaml:"preferences_file"`
	SessionDB       string `yaml:"session_db"`
	MemoryCap       int    `yaml:"memory_cap"`

	AudioDeviceID   int     `yaml:"audio_device_id"`
	AudioChannels   int     `yaml:"audio_channels"` // 0 disables capture
	AudioSampleRate float64 `yaml:"audio_sample_rate"`
	AudioFFTSize    int     `yaml:"audio_fft_size"`
}

// Default returns the configuration used when keys are absent.
func Default() Config {
	return Config{
		ConsoleType:        "x32",
		ConsoleIP:          "192.168.1.100",
		ApprovalMode:       "auto_urgent",
		DspIntervalMs:      50,
		LlmIntervalMs:      5000,
		MeterRefreshMs:     50,
		SnapshotIntervalMs: 60000,
		LlmTemperature:     0.3,
		LlmMaxTokens:       1024,
		MemoryCap:          200,
		AudioDeviceID:      -1,
		AudioSampleRate:    48000,
		AudioFFTSize:       1024,
	}
}

// Load reads, expands, and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
