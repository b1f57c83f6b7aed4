package llm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Prompt file names looked up in Config.PromptDir. The core file is
// required for file-backed prompts to take effect; the rest enrich it.
const (
	corePromptFile        = "mix_engineer_core.txt"
	balanceReferenceFile  = "mix_balance_reference.txt"
	troubleshootingFile   = "mix_troubleshooting.txt"
	genrePromptFilePrefix = "genre_"
)

type promptSet struct {
	mu              sync.RWMutex
	core            string
	balanceRef      string
	troubleshooting string
	genre           string
}

// LoadPromptFiles (re)loads prompt files from PromptDir. It returns
// true when a core prompt was loaded; a missing directory or core file
// silently falls back to the built-in prompt.
func (e *Engine) LoadPromptFiles() bool {
	e.prompts.mu.Lock()
	defer e.prompts.mu.Unlock()

	e.prompts.core = ""
	e.prompts.balanceRef = ""
	e.prompts.troubleshooting = ""
	e.prompts.genre = ""

	dir := e.cfg.PromptDir
	if dir == "" {
		return false
	}

	core, err := os.ReadFile(filepath.Join(dir, corePromptFile))
	if err != nil {
		return false
	}
	e.prompts.core = string(core)

	if b, err := os.ReadFile(filepath.Join(dir, balanceReferenceFile)); err == nil {
		e.prompts.balanceRef = string(b)
	}
	if b, err := os.ReadFile(filepath.Join(dir, troubleshootingFile)); err == nil {
		e.prompts.troubleshooting = string(b)
	}
	if e.cfg.ActiveGenre != "" {
		name := genrePromptFilePrefix + e.cfg.ActiveGenre + ".txt"
		if b, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			e.prompts.genre = string(b)
		}
	}

	e.logger.Info("loaded prompt files", "dir", dir, "genre", e.cfg.ActiveGenre)
	return true
}

// SetGenre switches the active genre and reloads prompt files.
func (e *Engine) SetGenre(genre string) {
	e.cfg.ActiveGenre = genre
	e.LoadPromptFiles()
}

// HasLoadedPrompts reports whether file-backed prompts are active.
func (e *Engine) HasLoadedPrompts() bool {
	e.prompts.mu.RLock()
	defer e.prompts.mu.RUnlock()
	return e.prompts.core != ""
}

// mixSystemPrompt returns the system prompt for mix decisions: the
// loaded file set when present, the built-in compact prompt otherwise.
func (e *Engine) mixSystemPrompt() string {
	e.prompts.mu.RLock()
	defer e.prompts.mu.RUnlock()

	if e.prompts.core == "" {
		return builtinMixPrompt
	}

	var b strings.Builder
	b.WriteString(e.prompts.core)
	for _, extra := range []string{e.prompts.balanceRef, e.prompts.troubleshooting, e.prompts.genre} {
		if extra != "" {
			b.WriteString("\n\n")
			b.WriteString(extra)
		}
	}
	return b.String()
}

const builtinMixPrompt = `You are an expert live sound engineer AI assistant.
You are given the current state of a live mixing console and recent history.
Analyse the mix and suggest specific, safe adjustments.

RULES:
- Never change faders by more than 6dB in a single step
- Never boost EQ by more than 3dB in a single step — cuts are safer than boosts
- For feedback risks, suggest CUTS, never boosts
- Always prioritize vocal clarity
- Lead vocals should sit 4-6dB above backing vocals in the mix
- If something sounds fine, respond with no_action
- Kick and bass should not mask each other — use HPF separation or EQ notching
- Be conservative — small changes that compound over time
- CRITICAL: If "engineer_instructions" are present in the mix state, those are
  direct instructions from the human engineer. Follow them. They take priority
  over your own analysis. If the engineer says "leave the drums alone", do not
  suggest any drum changes. If the engineer says "more vocals", prioritize that.

Respond with a JSON array of actions:
[
  {
    "action": "set_fader|set_pan|set_eq|set_comp|set_gate|set_hpf|set_send|mute|unmute|no_action|observation",
    "channel": 1,
    "role": "Kick",
    "value": 0.75,
    "value2": 0.0,
    "value3": 1.0,
    "band": 1,
    "aux": 0,
    "urgency": "immediate|fast|normal|low",
    "reason": "brief explanation"
  }
]

For set_eq: value=frequency_hz, value2=gain_db, value3=q_factor, band=1-6
For set_comp: value=threshold_db, value2=ratio
For set_hpf: value=frequency_hz
For set_fader: value=0.0-1.0 normalized`
