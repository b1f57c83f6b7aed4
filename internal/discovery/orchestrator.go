package discovery

import (
	"log/slog"
	"sync/atomic"
	"time"

	"mixagent/internal/console"
)

// RawCaller is the slice of the LLM engine discovery needs: one raw
// prompt in, one text response out.
type RawCaller interface {
	CallRaw(system, user string) (string, error)
}

// Orchestrator runs the startup discovery pass: full console sync,
// fingerprint capture, name and spectral classification, stereo-pair
// detection, and an asynchronous LLM review.
type Orchestrator struct {
	adapter    console.Adapter
	model      *console.Model
	channelMap *Map
	names      *NameClassifier
	spectral   *SpectralClassifier
	llm        RawCaller // nil disables the review pass
	logger     *slog.Logger

	syncExpected atomic.Int32
	syncCount    atomic.Int32
	syncDone     chan struct{}
	syncClosed   atomic.Bool

	// SyncTimeout bounds the wait for the full parameter dump.
	SyncTimeout time.Duration
	// SettleDelay lets meters and spectra stabilise after the sync
	// before fingerprints are captured.
	SettleDelay time.Duration
}

// NewOrchestrator wires a discovery pass over the given components.
func NewOrchestrator(adapter console.Adapter, model *console.Model, channelMap *Map, llm RawCaller, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapter:     adapter,
		model:       model,
		channelMap:  channelMap,
		names:       NewNameClassifier(),
		spectral:    NewSpectralClassifier(),
		llm:         llm,
		logger:      logger.With("component", "discovery"),
		syncDone:    make(chan struct{}),
		SyncTimeout: 10 * time.Second,
		SettleDelay: 500 * time.Millisecond,
	}
}

// NoteParameterUpdate must be called by the agent's sink for every
// incoming update; name updates count toward sync completion.
func (o *Orchestrator) NoteParameterUpdate(u console.ParameterUpdate) {
	if u.Param != console.ParamName {
		return
	}
	n := o.syncCount.Add(1)
	if expected := o.syncExpected.Load(); expected > 0 && n >= expected {
		if o.syncClosed.CompareAndSwap(false, true) {
			close(o.syncDone)
		}
	}
}

// Run performs discovery. It blocks for the sync and local
// classification; the LLM review continues in the background.
func (o *Orchestrator) Run() {
	caps := o.adapter.Capabilities()
	o.logger.Info("starting channel discovery",
		"console", caps.Model,
		"channels", caps.ChannelCount,
		"buses", caps.BusCount)

	if !o.performFullSync(caps) {
		o.logger.Warn("partial sync, some channels may be missing data")
	}

	time.Sleep(o.SettleDelay)

	profiles := o.buildProfiles(caps.ChannelCount)

	pairs := DetectStereoPairs(profiles)
	for _, pair := range pairs {
		profiles[pair.Left-1].StereoPair = pair.Right
		profiles[pair.Right-1].StereoPair = pair.Left
		o.logger.Info("detected stereo pair",
			"left", pair.Left, "right", pair.Right,
			"confidence", pair.Confidence)
	}

	for _, p := range profiles {
		o.channelMap.UpdateProfile(p)
	}
	o.logger.Info("discovery complete (local)")
	o.logChannelMap()

	if o.llm != nil {
		go o.reviewPass(profiles)
	}
}

func (o *Orchestrator) performFullSync(caps console.Capabilities) bool {
	o.syncExpected.Store(int32(caps.ChannelCount + caps.BusCount))
	o.syncCount.Store(0)

	o.adapter.RequestFullSync()

	select {
	case <-o.syncDone:
		o.logger.Info("full sync complete", "received", o.syncCount.Load())
		return true
	case <-time.After(o.SyncTimeout):
		o.logger.Warn("full sync timed out",
			"received", o.syncCount.Load(),
			"expected", o.syncExpected.Load())
		return false
	}
}

func (o *Orchestrator) buildProfiles(channelCount int) []Profile {
	now := time.Now()
	profiles := make([]Profile, 0, channelCount)

	for ch := 1; ch <= channelCount; ch++ {
		snap := o.model.Channel(ch)

		p := Profile{
			Index:        ch,
			ConsoleName:  snap.Name,
			FaderNorm:    snap.Fader,
			Muted:        snap.Muted,
			GainDB:       snap.GainDB,
			PhantomPower: snap.Phantom,
			PhaseInvert:  snap.Phase,
			HighPassHz:   snap.HpfFreq,
			Fingerprint:  fingerprintFromSnapshot(snap),
			DiscoveredAt: now,
		}

		nameResult := o.names.Classify(snap.Name)
		p.Role = nameResult.Role
		p.Group = nameResult.Group
		p.Confidence = nameResult.Confidence

		// Generic or unknown names get a second opinion from the
		// spectral templates when there is signal to look at.
		if p.Confidence <= ConfidenceLow && p.Fingerprint.HasSignal {
			spectralResult := o.spectral.Classify(p.Fingerprint)
			if spectralResult.MatchScore >= StrongMatch {
				p.Role = spectralResult.Role
				p.Group = spectralResult.Group
				p.Confidence = ConfidenceMedium
				o.logger.Debug("spectral classification",
					"channel", ch, "name", snap.Name,
					"role", spectralResult.Role.String(),
					"score", spectralResult.MatchScore)
			}
		}

		profiles = append(profiles, p)
	}
	return profiles
}

func fingerprintFromSnapshot(snap console.ChannelSnapshot) Fingerprint {
	fp := newFingerprint()
	fp.AverageRMS = snap.RmsDB
	fp.HasSignal = snap.RmsDB > -60
	fp.BassEnergy = snap.Spectral.Bass
	fp.MidEnergy = snap.Spectral.Mid
	fp.PresenceEnergy = snap.Spectral.Presence
	fp.CrestFactor = snap.Spectral.CrestFactor
	fp.IsPercussive = snap.Spectral.CrestFactor > 10
	fp.DominantFreqHz = snap.Spectral.SpectralCentroid
	fp.SpectralCentroid = snap.Spectral.SpectralCentroid
	return fp
}

func (o *Orchestrator) reviewPass(profiles []Profile) {
	o.logger.Info("starting LLM discovery review")
	reviewed, err := Review(o.llm, profiles, o.logger)
	if err != nil {
		o.logger.Warn("LLM discovery review failed, keeping local classification", "error", err)
		return
	}
	for _, p := range reviewed {
		o.channelMap.UpdateProfile(p)
	}
	o.logger.Info("LLM discovery review complete")
	o.logChannelMap()
}

func (o *Orchestrator) logChannelMap() {
	for _, p := range o.channelMap.All() {
		if p.ConsoleName == "" && !p.Fingerprint.HasSignal {
			continue
		}
		name := p.ConsoleName
		if name == "" {
			name = "(unnamed)"
		}
		o.logger.Info("channel map entry",
			"channel", p.Index,
			"name", name,
			"role", p.Role.String(),
			"confidence", p.Confidence.String(),
			"pair", p.StereoPair)
	}
}
