package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mixagent/internal/action"
)

// Engine is the decision layer: it assembles prompts, calls the
// primary backend with fallback, and parses the response into typed
// actions. It never panics on malformed responses — garbage degrades
// to zero actions.
type Engine struct {
	cfg Config

	anthropic Client // nil when no API key is configured
	ollama    Client // nil when no host is configured

	prompts promptSet

	mu           sync.Mutex
	totalCalls   int
	failedCalls  int
	totalLatency time.Duration

	logger *slog.Logger
}

// NewEngine builds the engine and loads prompt files when PromptDir is
// set.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "llm"),
	}
	if cfg.AnthropicAPIKey != "" {
		e.anthropic = NewAnthropicClient(cfg, logger)
	}
	if cfg.OllamaHost != "" {
		e.ollama = NewOllamaClient(cfg, logger)
	}
	e.LoadPromptFiles()
	return e
}

// DecideMixActions asks the LLM what to change given the current mix
// state and recent history.
func (e *Engine) DecideMixActions(mixState map[string]any, sessionContext []map[string]any) []action.Action {
	prompt, err := json.Marshal(map[string]any{
		"mix_state":      mixState,
		"recent_history": sessionContext,
	})
	if err != nil {
		e.logger.Error("marshal mix context failed", "error", err)
		return nil
	}

	response, err := e.CallRaw(e.mixSystemPrompt(), string(prompt))
	if err != nil {
		return nil
	}
	return ParseActions(response)
}

// CallRaw sends one prompt through the primary backend with fallback,
// tracking latency and failure counters. Used directly by the
// discovery review and the chat handler.
func (e *Engine) CallRaw(system, user string) (string, error) {
	e.mu.Lock()
	e.totalCalls++
	e.mu.Unlock()

	start := time.Now()
	response, err := e.callBackends(system, user)
	elapsed := time.Since(start)

	e.mu.Lock()
	e.totalLatency += elapsed
	if err != nil {
		e.failedCalls++
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("all LLM backends failed", "error", err)
		return "", err
	}
	e.logger.Debug("LLM response", "elapsed", elapsed, "chars", len(response))
	return response, nil
}

func (e *Engine) callBackends(system, user string) (string, error) {
	primary, fallback := e.anthropic, e.ollama
	if e.cfg.OllamaPrimary {
		primary, fallback = e.ollama, e.anthropic
	}
	if !e.cfg.OllamaPrimary && !e.cfg.UseFallback {
		fallback = nil
	}

	ctx, cancel := e.callContext()
	defer cancel()

	var firstErr error
	if primary != nil {
		response, err := primary.Complete(ctx, system, user)
		if err == nil {
			return response, nil
		}
		firstErr = err
		e.logger.Warn("primary LLM call failed", "error", err)
	}

	if fallback != nil {
		fbCtx, fbCancel := e.callContext()
		defer fbCancel()
		response, err := fallback.Complete(fbCtx, system, user)
		if err == nil {
			return response, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		e.logger.Error("fallback LLM call also failed", "error", err)
	}

	if firstErr == nil {
		firstErr = errNoBackend
	}
	return "", firstErr
}

var errNoBackend = &backendError{"no LLM backend configured"}

type backendError struct{ msg string }

func (e *backendError) Error() string { return e.msg }

func (e *Engine) callContext() (context.Context, context.CancelFunc) {
	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// TotalCalls returns how many raw calls were attempted.
func (e *Engine) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCalls
}

// FailedCalls returns how many raw calls failed on all backends.
func (e *Engine) FailedCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failedCalls
}

// AvgLatency returns the mean call duration.
func (e *Engine) AvgLatency() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.totalCalls == 0 {
		return 0
	}
	return e.totalLatency / time.Duration(e.totalCalls)
}

// ParseActions decodes the text from the first '[' to the last ']' of
// an LLM response as a JSON array and decodes each element. Prose before
// and after the array is tolerated; anything unparseable (including
// stray brackets in the surrounding prose) yields no actions.
func ParseActions(response string) []action.Action {
	start := strings.IndexByte(response, '[')
	end := strings.LastIndexByte(response, ']')
	if start < 0 || end < start {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(response[start:end+1]), &items); err != nil {
		return nil
	}

	actions := make([]action.Action, 0, len(items))
	for _, item := range items {
		actions = append(actions, action.FromJSON(item))
	}
	return actions
}
