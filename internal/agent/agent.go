// Package agent owns the runtime: the console model, channel map,
// session memory, approval queue, and the four cooperating loops
// (DSP, LLM, execution, UI) that drive the mix.
package agent

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mixagent/internal/action"
	"mixagent/internal/analysis"
	"mixagent/internal/approval"
	"mixagent/internal/audio"
	"mixagent/internal/console"
	"mixagent/internal/discovery"
	"mixagent/internal/llm"
	"mixagent/internal/memory"
	"mixagent/internal/prefs"
)

// Config holds the agent's runtime settings.
type Config struct {
	DspInterval      time.Duration
	LlmInterval      time.Duration
	SnapshotInterval time.Duration
	MeterRefreshMs   int
	Headless         bool

	ApprovalMode approval.Mode
	Genre        string

	PreferencesFile string
	SessionDB       string
	MemoryCap       int

	AudioDeviceID   int
	AudioChannels   int // 0 disables capture
	AudioSampleRate float64
	AudioFFTSize    int

	// Discovery timing; zero values take the orchestrator defaults.
	DiscoverySyncTimeout time.Duration
	DiscoverySettle      time.Duration
}

// DefaultConfig returns the standard loop rates.
func DefaultConfig() Config {
	return Config{
		DspInterval:      50 * time.Millisecond,
		LlmInterval:      5 * time.Second,
		SnapshotInterval: time.Minute,
		MeterRefreshMs:   50,
		ApprovalMode:     approval.AutoUrgent,
		MemoryCap:        200,
		AudioDeviceID:    -1,
		AudioSampleRate:  48000,
		AudioFFTSize:     1024,
	}
}

// DecisionEngine is the slice of the LLM engine the agent drives.
// *llm.Engine satisfies it; tests substitute stubs.
type DecisionEngine interface {
	DecideMixActions(mixState map[string]any, sessionContext []map[string]any) []action.Action
	CallRaw(system, user string) (string, error)
}

// ConnectionStatus summarises the agent's external links for the UI.
type ConnectionStatus struct {
	ConsoleConnected bool
	ConsoleType      string
	AudioConnected   bool
	AudioBackend     string
	AudioChannels    int
	AudioSampleRate  float64
	LLMConnected     bool
}

// UI is the optional interactive surface. The agent drives it through
// this interface so headless runs skip it entirely.
type UI interface {
	Run() error // blocks until the user quits
	Stop()
	AddLog(line string)
	AddChatResponse(line string)
	SetStatus(status string)
	UpdateConnectionStatus(status ConnectionStatus)
}

// writeKey identifies one parameter write for origin tagging.
type writeKey struct {
	ch    int
	param console.ChannelParam
}

// Agent wires every component together and runs the loops.
type Agent struct {
	adapter    console.Adapter
	model      *console.Model
	channelMap *discovery.Map
	memory     *memory.Session
	archive    *memory.Archive
	prefs      *prefs.Learner
	validator  *action.Validator
	executor   *action.Executor
	queue      *approval.Queue
	analyser   *analysis.Analyser
	engine     DecisionEngine
	names      *discovery.NameClassifier
	capture    audio.Capture
	fft        *audio.FFTAnalyser

	genreLib     *llm.GenrePresetLibrary
	activePreset *llm.GenrePreset

	mu           sync.Mutex
	orchestrator *discovery.Orchestrator
	latestIssues []analysis.Issue
	ui           UI

	// Writes the executor made recently; console echoes of these are
	// not engineer overrides.
	recentWritesMu sync.Mutex
	recentWrites   map[writeKey]time.Time

	discoveryDone atomic.Bool
	running       atomic.Bool
	stopOnce      sync.Once
	wg            sync.WaitGroup

	cfg    Config
	logger *slog.Logger
}

// New assembles an agent around a connected (or connectable) adapter.
// It installs itself as the adapter's event sink.
func New(adapter console.Adapter, engine DecisionEngine, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent")

	a := &Agent{
		adapter:      adapter,
		model:        console.NewModel(),
		channelMap:   discovery.NewMap(0),
		memory:       memory.NewSession(cfg.MemoryCap),
		prefs:        prefs.NewLearner(),
		queue:        approval.NewQueue(cfg.ApprovalMode),
		analyser:     analysis.NewAnalyser(),
		engine:       engine,
		names:        discovery.NewNameClassifier(),
		capture:      audio.NullCapture{},
		genreLib:     llm.NewGenrePresetLibrary(),
		recentWrites: make(map[writeKey]time.Time),
		cfg:          cfg,
		logger:       logger,
	}

	a.validator = action.NewValidator(action.DefaultSafetyLimits(), logger)
	a.executor = action.NewExecutor(adapter, a.model, logger)
	a.executor.SetWriteHook(a.noteOwnWrite)

	if cfg.Genre != "" {
		if preset := a.genreLib.Get(cfg.Genre); preset != nil {
			a.activePreset = preset
			logger.Info("genre preset", "name", preset.Name, "description", preset.Description)
		} else if err := a.genreLib.LoadFile(cfg.Genre); err == nil {
			a.activePreset = a.genreLib.Get("custom")
			logger.Info("loaded custom genre preset", "path", cfg.Genre)
		} else {
			logger.Warn("unknown genre preset", "genre", cfg.Genre)
		}
	}

	if cfg.PreferencesFile != "" {
		if err := a.prefs.LoadFile(cfg.PreferencesFile); err == nil {
			logger.Info("loaded preferences",
				"decisions", a.prefs.TotalDecisions(),
				"path", cfg.PreferencesFile)
		}
	}

	// Rejections from the queue feed the preference learner.
	a.queue.OnRejected = func(rejected action.Action) {
		a.prefs.RecordRejection(rejected, rejected.Role)
	}

	adapter.SetSink(a)
	return a
}

// SetUI installs the interactive surface. Call before Start.
func (a *Agent) SetUI(ui UI) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ui = ui
}

// SetCapture injects an audio capture backend. Call before Start.
func (a *Agent) SetCapture(capture audio.Capture) {
	if capture != nil {
		a.capture = capture
	}
}

// Queue exposes the approval queue for external control (the UI).
func (a *Agent) Queue() *approval.Queue { return a.queue }

// ChannelMap exposes the channel map.
func (a *Agent) ChannelMap() *discovery.Map { return a.channelMap }

// Memory exposes the session memory.
func (a *Agent) Memory() *memory.Session { return a.memory }

// IsRunning reports whether the loops are live.
func (a *Agent) IsRunning() bool { return a.running.Load() }

// Start negotiates capabilities, initialises state, runs discovery,
// and spawns the loops. It returns false on a failure the process
// cannot recover from.
func (a *Agent) Start() bool {
	caps := a.adapter.Capabilities()
	if caps.ChannelCount <= 0 {
		a.logger.Error("console reported no channels")
		return false
	}

	a.model.Init(caps.ChannelCount, caps.BusCount)
	a.channelMap.Resize(caps.ChannelCount)

	a.logger.Info("agent starting",
		"console", caps.Model,
		"channels", caps.ChannelCount,
		"buses", caps.BusCount)

	if a.cfg.SessionDB != "" {
		arch, err := memory.OpenArchive(a.cfg.SessionDB, a.logger)
		if err != nil {
			a.logger.Warn("session archive unavailable", "error", err)
		} else {
			a.archive = arch
			a.memory.SetSink(arch.Append)
		}
	}

	a.adapter.SubscribeMeter(a.cfg.MeterRefreshMs)

	a.startCapture()

	orch := discovery.NewOrchestrator(a.adapter, a.model, a.channelMap, a.rawCaller(), a.logger)
	if a.cfg.DiscoverySyncTimeout > 0 {
		orch.SyncTimeout = a.cfg.DiscoverySyncTimeout
	}
	if a.cfg.DiscoverySettle > 0 {
		orch.SettleDelay = a.cfg.DiscoverySettle
	}
	a.mu.Lock()
	a.orchestrator = orch
	a.mu.Unlock()

	a.logger.Info("running channel discovery")
	orch.Run()
	a.discoveryDone.Store(true)

	a.running.Store(true)

	a.wg.Add(3)
	go a.dspLoop()
	go a.llmLoop()
	go a.executionLoop()

	a.mu.Lock()
	ui := a.ui
	a.mu.Unlock()
	if !a.cfg.Headless && ui != nil {
		a.wg.Add(1)
		go a.uiLoop(ui)
	}

	a.refreshConnectionStatus()
	a.setStatus("Running")

	a.logger.Info("agent running",
		"dsp_interval", a.cfg.DspInterval,
		"llm_interval", a.cfg.LlmInterval,
		"audio", a.capture.IsRunning())
	return true
}

// Stop flips the running flag, stops the UI and capture, and waits for
// the loops. Preferences are persisted when dirty. Safe to call more
// than once, and still effective when the UI already flipped the
// running flag.
func (a *Agent) Stop() {
	a.stopOnce.Do(a.stop)
}

func (a *Agent) stop() {
	a.running.Store(false)
	a.logger.Info("agent stopping")

	a.mu.Lock()
	ui := a.ui
	a.mu.Unlock()
	if ui != nil {
		ui.Stop()
	}

	a.adapter.UnsubscribeMeter()

	if a.capture.IsRunning() {
		a.capture.Stop()
	}

	a.wg.Wait()

	if a.cfg.PreferencesFile != "" && a.prefs.IsDirty() {
		if err := a.prefs.SaveFile(a.cfg.PreferencesFile); err != nil {
			a.logger.Warn("preference save failed", "error", err)
		} else {
			a.logger.Info("saved preferences", "path", a.cfg.PreferencesFile)
		}
	}

	if a.archive != nil {
		a.archive.Close()
	}

	a.logger.Info("agent stopped")
}

func (a *Agent) startCapture() {
	if a.cfg.AudioChannels <= 0 {
		a.logger.Info("audio capture disabled, using console meters only")
		return
	}

	opened := a.capture.Open(audio.CaptureConfig{
		DeviceID:       a.cfg.AudioDeviceID,
		ChannelCount:   a.cfg.AudioChannels,
		SampleRate:     a.cfg.AudioSampleRate,
		FramesPerBlock: a.cfg.AudioFFTSize,
	})
	if !opened || !a.capture.Start() {
		a.logger.Warn("audio capture unavailable, falling back to console meters")
		return
	}

	a.fft = audio.NewFFTAnalyser(a.cfg.AudioFFTSize)
	a.logger.Info("audio capture started",
		"backend", a.capture.BackendName(),
		"channels", a.cfg.AudioChannels,
		"sample_rate", a.cfg.AudioSampleRate,
		"fft_size", a.cfg.AudioFFTSize)
}

// rawCaller adapts the engine for the discovery orchestrator, which
// only needs CallRaw. A nil engine disables the review pass.
func (a *Agent) rawCaller() discovery.RawCaller {
	if a.engine == nil {
		return nil
	}
	return rawCallerFunc(a.engine.CallRaw)
}

type rawCallerFunc func(system, user string) (string, error)

func (f rawCallerFunc) CallRaw(system, user string) (string, error) {
	return f(system, user)
}

// ── Adapter event sink ───────────────────────────────────────────────

const ownWriteTTL = 2 * time.Second

func (a *Agent) noteOwnWrite(ch int, param console.ChannelParam) {
	a.recentWritesMu.Lock()
	a.recentWrites[writeKey{ch, param}] = time.Now()
	a.recentWritesMu.Unlock()
}

// wasOwnWrite reports whether the executor wrote this parameter
// recently; if so the incoming update is an echo, not an engineer
// move.
func (a *Agent) wasOwnWrite(ch int, param console.ChannelParam) bool {
	now := time.Now()
	a.recentWritesMu.Lock()
	defer a.recentWritesMu.Unlock()

	key := writeKey{ch, param}
	written, ok := a.recentWrites[key]
	if ok && now.Sub(written) < ownWriteTTL {
		return true
	}
	if ok {
		delete(a.recentWrites, key)
	}
	return false
}

// HandleParameterUpdate applies updates to the model and performs live
// reclassification and override detection. It runs on the adapter's
// receive goroutine, so everything here must stay non-blocking.
func (a *Agent) HandleParameterUpdate(u console.ParameterUpdate) {
	a.model.ApplyUpdate(u)

	a.mu.Lock()
	orch := a.orchestrator
	a.mu.Unlock()
	if orch != nil {
		orch.NoteParameterUpdate(u)
	}

	if u.Target != console.TargetChannel {
		return
	}

	switch u.Param {
	case console.ParamName:
		a.reclassify(u.Index, u.Value.AsString())
	case console.ParamFader:
		// A fader update the executor did not originate is the
		// engineer mixing on the surface.
		if a.discoveryDone.Load() && !a.wasOwnWrite(u.Index, console.ParamFader) {
			a.memory.RecordEngineerOverride(u.Index, "fader moved on console")
		}
	}
}

// HandleMeterUpdate stores meter readings.
func (a *Agent) HandleMeterUpdate(ch int, rmsDB, peakDB float64) {
	a.model.UpdateMeter(ch, rmsDB, peakDB)
}

// HandleConnectionChange surfaces connection state. The agent never
// reconnects on its own; an external restart recovers.
func (a *Agent) HandleConnectionChange(connected bool) {
	if connected {
		a.setStatus("Connected")
	} else {
		a.logger.Error("console disconnected")
		a.setStatus("DISCONNECTED")
	}
	a.refreshConnectionStatus()
}

// reclassify re-runs the name classifier after a rename, unless the
// engineer pinned the role manually.
func (a *Agent) reclassify(ch int, newName string) {
	profile := a.channelMap.Profile(ch)
	if profile.Index == 0 || profile.ManuallyOverridden {
		return
	}

	result := a.names.Classify(newName)
	profile.ConsoleName = newName
	profile.Role = result.Role
	profile.Group = result.Group
	profile.Confidence = result.Confidence
	profile.LastUpdated = time.Now()
	a.channelMap.UpdateProfile(profile)

	a.logger.Info("channel reclassified",
		"channel", ch, "name", newName, "role", result.Role.String())
	a.addLog("Reclassified ch" + itoa(ch) + " -> " + result.Role.String())
}

// ── UI plumbing ──────────────────────────────────────────────────────

func (a *Agent) currentUI() UI {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ui
}

func (a *Agent) addLog(line string) {
	if ui := a.currentUI(); ui != nil {
		ui.AddLog(line)
	}
}

func (a *Agent) addChatResponse(line string) {
	if ui := a.currentUI(); ui != nil {
		ui.AddChatResponse(line)
	}
}

func (a *Agent) setStatus(status string) {
	if ui := a.currentUI(); ui != nil {
		ui.SetStatus(status)
	}
}

func (a *Agent) refreshConnectionStatus() {
	ui := a.currentUI()
	if ui == nil {
		return
	}
	caps := a.adapter.Capabilities()
	ui.UpdateConnectionStatus(ConnectionStatus{
		ConsoleConnected: a.adapter.IsConnected(),
		ConsoleType:      caps.Model,
		AudioConnected:   a.capture.IsRunning(),
		AudioBackend:     a.capture.BackendName(),
		AudioChannels:    a.cfg.AudioChannels,
		AudioSampleRate:  a.cfg.AudioSampleRate,
		LLMConnected:     a.engine != nil,
	})
}

// ── Context building ─────────────────────────────────────────────────

// buildMixContext assembles the mix-state document: channels, issues,
// standing instructions, learned preferences, genre targets, and the
// analysis source marker.
func (a *Agent) buildMixContext() map[string]any {
	a.mu.Lock()
	issues := append([]analysis.Issue(nil), a.latestIssues...)
	a.mu.Unlock()

	state := analysis.BuildMixState(a.model, a.channelMap, issues)

	if instructions := a.memory.ActiveInstructions(10); len(instructions) > 0 {
		state["engineer_instructions"] = instructions
	}

	if a.analyser.HasFFTData() {
		state["analysis_source"] = "fft_audio"
	} else {
		state["analysis_source"] = "console_meters"
	}

	if a.activePreset != nil {
		state["genre_preset"] = a.activePreset.ToJSON()
	}

	if p := a.prefs.BuildPreferences(); p != nil {
		state["engineer_preferences"] = p
	}

	return state
}

func itoa(n int) string { return strconv.Itoa(n) }
