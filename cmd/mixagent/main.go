// Command mixagent is an autonomous live-sound engineering agent: it
// connects to a digital mixing console, analyses the mix, and proposes
// safety-clamped adjustments through a human approval queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mixagent/internal/agent"
	"mixagent/internal/approval"
	"mixagent/internal/audio"
	"mixagent/internal/buildinfo"
	"mixagent/internal/config"
	"mixagent/internal/console"
	"mixagent/internal/llm"
	"mixagent/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env never overrides variables already in the environment.
	_ = godotenv.Load()

	flag.Parse()
	configPath := config.DefaultPath
	if flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}

	logger, err := setupLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger.Info(buildinfo.String())

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "error", err)
		return 1
	}
	logger.Info("loaded config", "path", configPath)

	adapter, port, err := buildAdapter(cfg, logger)
	if err != nil {
		logger.Error("adapter setup failed", "error", err)
		return 1
	}

	engine := llm.NewEngine(buildLLMConfig(cfg, logger), logger)

	a := agent.New(adapter, engine, buildAgentConfig(cfg), logger)

	if cfg.AudioChannels > 0 {
		a.SetCapture(audio.NewPortAudioCapture(logger))
	}
	if !cfg.Headless {
		a.SetUI(ui.New(a.Queue(), a.HandleChatMessage))
	}

	logger.Info("connecting to console",
		"type", cfg.ConsoleType, "ip", cfg.ConsoleIP, "port", port)
	if !adapter.Connect(cfg.ConsoleIP, port) {
		logger.Error("console connection failed")
		return 1
	}
	defer adapter.Disconnect()

	if !a.Start() {
		logger.Error("agent start failed")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("agent running, press Ctrl+C to stop")

	// Block until a signal arrives or the agent stops itself (the UI
	// quitting flips the running flag).
	for a.IsRunning() {
		select {
		case <-ctx.Done():
			a.Stop()
			logger.Info("mixagent exited cleanly")
			return 0
		case <-time.After(100 * time.Millisecond):
		}
	}

	a.Stop()
	logger.Info("mixagent exited cleanly")
	return 0
}

func setupLogging() (*slog.Logger, error) {
	level, err := config.ParseLogLevel(os.Getenv("MIXAGENT_LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

// buildAdapter selects the protocol implementation for the configured
// console and resolves the default port.
func buildAdapter(cfg config.Config, logger *slog.Logger) (console.Adapter, int, error) {
	port := cfg.ConsolePort
	switch cfg.ConsoleType {
	case "x32", "m32":
		if port == 0 {
			port = 10023
		}
		return console.NewX32Adapter(logger), port, nil
	case "wing":
		if port == 0 {
			port = 2222
		}
		return console.NewWingAdapter(logger), port, nil
	case "avantis":
		if port == 0 {
			port = 51325
		}
		return console.NewAvantisAdapter(logger), port, nil
	}
	return nil, 0, fmt.Errorf("unknown console type %q", cfg.ConsoleType)
}

func buildLLMConfig(cfg config.Config, logger *slog.Logger) llm.Config {
	llmCfg := llm.DefaultConfig()
	llmCfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if model := os.Getenv("MIXAGENT_MODEL"); model != "" {
		llmCfg.AnthropicModel = model
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		llmCfg.OllamaHost = host
	}
	if model := os.Getenv("MIXAGENT_FALLBACK_MODEL"); model != "" {
		llmCfg.OllamaModel = model
	}
	llmCfg.OllamaPrimary = cfg.OllamaPrimary
	llmCfg.Temperature = cfg.LlmTemperature
	llmCfg.MaxTokens = cfg.LlmMaxTokens
	llmCfg.PromptDir = cfg.PromptDir
	llmCfg.ActiveGenre = cfg.Genre

	// No API key means the cloud backend cannot work; go local-first.
	if llmCfg.AnthropicAPIKey == "" {
		llmCfg.OllamaPrimary = true
		logger.Info("no ANTHROPIC_API_KEY set, using Ollama as primary LLM")
	}
	if llmCfg.OllamaPrimary {
		logger.Info("LLM mode: ollama-primary", "model", llmCfg.OllamaModel)
	} else {
		logger.Info("LLM mode: anthropic-primary", "model", llmCfg.AnthropicModel)
	}
	return llmCfg
}

func buildAgentConfig(cfg config.Config) agent.Config {
	agentCfg := agent.DefaultConfig()
	agentCfg.DspInterval = time.Duration(cfg.DspIntervalMs) * time.Millisecond
	agentCfg.LlmInterval = time.Duration(cfg.LlmIntervalMs) * time.Millisecond
	agentCfg.SnapshotInterval = time.Duration(cfg.SnapshotIntervalMs) * time.Millisecond
	agentCfg.MeterRefreshMs = cfg.MeterRefreshMs
	agentCfg.Headless = cfg.Headless
	agentCfg.ApprovalMode = approval.ModeFromString(cfg.ApprovalMode)
	agentCfg.Genre = cfg.Genre
	agentCfg.PreferencesFile = cfg.PreferencesFile
	agentCfg.SessionDB = cfg.SessionDB
	agentCfg.MemoryCap = cfg.MemoryCap
	agentCfg.AudioDeviceID = cfg.AudioDeviceID
	agentCfg.AudioChannels = cfg.AudioChannels
	agentCfg.AudioSampleRate = cfg.AudioSampleRate
	agentCfg.AudioFFTSize = cfg.AudioFFTSize
	return agentCfg
}
