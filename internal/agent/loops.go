package agent

import (
	"time"

	"mixagent/internal/action"
	"mixagent/internal/analysis"
	"mixagent/internal/console"
)

// runSafely is the per-iteration recovery boundary: nothing that
// happens inside a loop body may take the loop down.
func (a *Agent) runSafely(loop string, body func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("loop iteration panicked", "loop", loop, "panic", r)
		}
	}()
	body()
}

// dspLoop runs the fast path: keepalive, capture draining, FFT, issue
// detection, and the clipping fast-path that bypasses the LLM.
func (a *Agent) dspLoop() {
	defer a.wg.Done()
	a.logger.Debug("dsp loop started")

	lastSnapshot := time.Now()
	lastStatusRefresh := time.Now()

	for a.running.Load() {
		start := time.Now()

		a.runSafely("dsp", func() {
			a.adapter.Tick()

			a.drainCapture()

			caps := a.adapter.Capabilities()
			mixAnalysis := a.analyser.Analyse(a.model, caps.ChannelCount)
			issues := a.analyser.DetectIssues(mixAnalysis)

			a.mu.Lock()
			a.latestIssues = issues
			a.mu.Unlock()

			if mixAnalysis.HasClipping {
				a.handleClipping(mixAnalysis.ClippingChannel)
			}
			if mixAnalysis.HasFeedbackRisk {
				for _, warning := range mixAnalysis.Warnings {
					a.addLog("!! " + warning)
				}
			}
			for _, issue := range issues {
				switch issue.Type {
				case analysis.IssueBoomy, analysis.IssueHarsh, analysis.IssueThin, analysis.IssueMasking:
					a.addLog("DSP: " + issue.Description)
				}
			}

			now := time.Now()
			if now.Sub(lastSnapshot) > a.cfg.SnapshotInterval {
				a.memory.RecordSnapshot(analysis.BuildCompactState(a.model, a.channelMap))
				lastSnapshot = now
			}
			if now.Sub(lastStatusRefresh) > 5*time.Second {
				a.refreshConnectionStatus()
				lastStatusRefresh = now
			}
		})

		a.sleepRemainder(start, a.cfg.DspInterval)
	}
	a.logger.Debug("dsp loop stopped")
}

// drainCapture pulls complete blocks from the capture rings, runs the
// FFT, and feeds results to the analyser and the model's spectral
// store.
func (a *Agent) drainCapture() {
	if a.fft == nil || !a.capture.IsRunning() {
		return
	}
	a.capture.Drain(func(ch int, samples []float32) {
		result := a.fft.Analyse(samples, a.cfg.AudioSampleRate)
		a.analyser.UpdateFFT(ch, result)
		a.model.UpdateSpectral(ch, console.SpectralData{
			Bass:             result.Bands.Bass,
			Mid:              result.Bands.Mid,
			Presence:         result.Bands.Presence,
			CrestFactor:      result.CrestFactor,
			SpectralCentroid: result.SpectralCentroid,
		})
	})
}

// handleClipping synthesises an Immediate fader reduction without
// waiting for the LLM. Roughly -1 dB per tick until the clip clears.
func (a *Agent) handleClipping(ch int) {
	snap := a.model.Channel(ch)
	fix := action.Action{
		Type:    action.SetFader,
		Channel: ch,
		Value:   snap.Fader * 0.9,
		Urgency: action.Immediate,
		Reason:  "Clipping detected — reducing level",
	}

	if !a.queue.Submit(fix) {
		return
	}
	vr := a.validator.Validate(fix, a.model)
	if vr.Valid {
		a.executor.Execute(vr.Clamped)
	}
}

// llmLoop runs the slow reasoning path.
func (a *Agent) llmLoop() {
	defer a.wg.Done()
	a.logger.Debug("llm loop started")

	// Give discovery's review pass a moment before the first decision.
	a.sleepWhileRunning(2 * time.Second)

	for a.running.Load() {
		start := time.Now()

		a.runSafely("llm", func() {
			if a.engine == nil {
				return
			}

			mixContext := a.buildMixContext()
			sessionContext := a.memory.BuildContext(20)

			actions := a.engine.DecideMixActions(mixContext, sessionContext)
			a.logger.Debug("llm returned actions", "count", len(actions))

			for _, proposed := range actions {
				a.dispatch(proposed, mixContext)
			}
		})

		a.sleepRemainder(start, a.cfg.LlmInterval)
	}
	a.logger.Debug("llm loop stopped")
}

// dispatch routes one LLM-proposed action: log, record, queue, or
// execute when auto-approved.
func (a *Agent) dispatch(proposed action.Action, mixContext map[string]any) {
	switch proposed.Type {
	case action.NoAction:
		a.logger.Debug("llm: no action needed", "reason", proposed.Reason)
		return
	case action.Observation:
		a.memory.RecordObservation(proposed.Reason)
		a.addLog("LLM: " + proposed.Reason)
		return
	}

	if !a.queue.Submit(proposed) {
		a.addLog("Queued: " + proposed.Describe())
		return
	}

	vr := a.validator.Validate(proposed, a.model)
	if !vr.Valid {
		a.logger.Warn("validation failed", "warning", vr.Warning)
		return
	}
	er := a.executor.Execute(vr.Clamped)
	if er.Success {
		a.memory.RecordAction(vr.Clamped, mixContext)
		a.addLog("Auto: " + vr.Clamped.Describe())
	}
}

// executionLoop drains the approval queue: validate again against
// current state, execute, record, learn.
func (a *Agent) executionLoop() {
	defer a.wg.Done()
	a.logger.Debug("execution loop started")

	for a.running.Load() {
		a.runSafely("execution", func() {
			approved, ok := a.queue.PopApproved(200 * time.Millisecond)
			if !ok {
				return
			}

			vr := a.validator.Validate(approved, a.model)
			if !vr.Valid {
				a.logger.Warn("validation failed for approved action", "warning", vr.Warning)
				a.memory.RecordRejection(approved, vr.Warning)
				return
			}

			er := a.executor.Execute(vr.Clamped)
			if !er.Success {
				a.logger.Warn("execution failed", "error", er.Err)
				a.addLog("Failed: " + er.Err)
				return
			}

			a.memory.RecordAction(vr.Clamped, analysis.BuildCompactState(a.model, a.channelMap))
			a.addLog("Approved: " + vr.Clamped.Describe())
			a.prefs.RecordApproval(vr.Clamped, vr.Clamped.Role)
		})
	}
	a.logger.Debug("execution loop stopped")
}

// uiLoop runs the interactive surface; when the user quits, the whole
// agent stops.
func (a *Agent) uiLoop(ui UI) {
	defer a.wg.Done()
	a.logger.Debug("ui loop started")

	if err := ui.Run(); err != nil {
		a.logger.Error("ui error", "error", err)
	}

	if a.running.Load() {
		a.logger.Info("ui exited, stopping agent")
		a.running.Store(false)
	}
	a.logger.Debug("ui loop stopped")
}

// sleepRemainder sleeps for what is left of the loop period, in short
// slices so Stop is observed promptly.
func (a *Agent) sleepRemainder(start time.Time, period time.Duration) {
	remaining := period - time.Since(start)
	if remaining > 0 {
		a.sleepWhileRunning(remaining)
	}
}

func (a *Agent) sleepWhileRunning(d time.Duration) {
	const slice = 50 * time.Millisecond
	deadline := time.Now().Add(d)
	for a.running.Load() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > slice {
			remaining = slice
		}
		time.Sleep(remaining)
	}
}

