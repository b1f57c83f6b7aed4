package audio

import (
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// PortAudioCapture captures multichannel input through PortAudio. The
// stream callback writes each channel into its own ring buffer and
// does nothing else; all analysis happens when the DSP loop drains.
type PortAudioCapture struct {
	cfg     CaptureConfig
	stream  *portaudio.Stream
	rings   []*Ring
	block   []float32
	running bool
	inited  bool
	logger  *slog.Logger
}

// NewPortAudioCapture initialises the PortAudio library. Callers must
// eventually Stop to release it.
func NewPortAudioCapture(logger *slog.Logger) *PortAudioCapture {
	if logger == nil {
		logger = slog.Default()
	}
	c := &PortAudioCapture{logger: logger.With("backend", "portaudio")}
	if err := portaudio.Initialize(); err != nil {
		c.logger.Error("portaudio init failed", "error", err)
		return c
	}
	c.inited = true
	return c
}

// Open prepares the stream. Each channel gets a two-second ring.
func (c *PortAudioCapture) Open(cfg CaptureConfig) bool {
	if !c.inited {
		return false
	}
	c.cfg = cfg

	dev, ok := c.inputDevice(cfg.DeviceID)
	if !ok {
		return false
	}

	if dev.MaxInputChannels < cfg.ChannelCount {
		c.logger.Warn("device has fewer inputs than requested",
			"device", dev.Name,
			"inputs", dev.MaxInputChannels,
			"requested", cfg.ChannelCount)
		c.cfg.ChannelCount = dev.MaxInputChannels
	}

	ringSize := int(cfg.SampleRate * 2)
	c.rings = make([]*Ring, c.cfg.ChannelCount)
	for i := range c.rings {
		c.rings[i] = NewRing(ringSize)
	}
	c.block = make([]float32, cfg.FramesPerBlock)

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = c.cfg.ChannelCount
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.FramesPerBlock

	stream, err := portaudio.OpenStream(params, c.callback)
	if err != nil {
		c.logger.Error("open stream failed", "error", err)
		return false
	}
	c.stream = stream

	c.logger.Info("audio device opened",
		"device", dev.Name,
		"channels", c.cfg.ChannelCount,
		"sample_rate", cfg.SampleRate,
		"frames_per_block", cfg.FramesPerBlock)
	return true
}

// Start begins capture.
func (c *PortAudioCapture) Start() bool {
	if c.stream == nil {
		return false
	}
	if err := c.stream.Start(); err != nil {
		c.logger.Error("start stream failed", "error", err)
		return false
	}
	c.running = true
	return true
}

// Stop halts capture and releases PortAudio.
func (c *PortAudioCapture) Stop() {
	c.running = false
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
		c.stream = nil
	}
	if c.inited {
		portaudio.Terminate()
		c.inited = false
	}
}

// IsRunning reports whether the stream is active.
func (c *PortAudioCapture) IsRunning() bool { return c.running }

// Drain pulls complete FFT-sized blocks out of each channel ring.
func (c *PortAudioCapture) Drain(handler BlockHandler) {
	if !c.running || handler == nil {
		return
	}
	for ch, ring := range c.rings {
		for ring.Available() >= c.cfg.FramesPerBlock {
			n := ring.Read(c.block)
			if n < c.cfg.FramesPerBlock {
				break
			}
			handler(ch+1, c.block)
		}
	}
}

// ListDevices enumerates input-capable devices.
func (c *PortAudioCapture) ListDevices() []DeviceInfo {
	if !c.inited {
		return nil
	}
	devs, err := portaudio.Devices()
	if err != nil {
		c.logger.Warn("device enumeration failed", "error", err)
		return nil
	}
	var out []DeviceInfo
	for i, d := range devs {
		if d.MaxInputChannels > 0 {
			out = append(out, DeviceInfo{
				ID:                i,
				Name:              d.Name,
				MaxInputChannels:  d.MaxInputChannels,
				DefaultSampleRate: d.DefaultSampleRate,
			})
		}
	}
	return out
}

// BackendName identifies the backend for logging.
func (c *PortAudioCapture) BackendName() string { return "portaudio" }

// callback runs on the real-time audio thread: per-channel ring writes
// only, no allocation, no locks, no logging.
func (c *PortAudioCapture) callback(in [][]float32) {
	for ch := range c.rings {
		if ch < len(in) {
			c.rings[ch].Write(in[ch])
		}
	}
}

func (c *PortAudioCapture) inputDevice(id int) (*portaudio.DeviceInfo, bool) {
	if id < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			c.logger.Error("no default input device", "error", err)
			return nil, false
		}
		return dev, true
	}
	devs, err := portaudio.Devices()
	if err != nil || id >= len(devs) {
		c.logger.Error("invalid audio device", "id", id, "error", err)
		return nil, false
	}
	return devs[id], true
}
