package audio

// DeviceInfo describes one capture-capable audio device.
type DeviceInfo struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// CaptureConfig configures a capture backend.
type CaptureConfig struct {
	DeviceID       int // -1 selects the default device
	ChannelCount   int
	SampleRate     float64
	FramesPerBlock int // matches the FFT size
}

// BlockHandler receives one block of de-interleaved samples per
// channel, called from the DSP thread while draining the capture
// rings — never from the real-time callback.
type BlockHandler func(channel int, samples []float32)

// Capture is the audio input boundary. The real-time callback writes
// into per-channel ring buffers; the DSP loop calls Drain to pull
// complete blocks out.
type Capture interface {
	Open(cfg CaptureConfig) bool
	Start() bool
	Stop()
	IsRunning() bool

	// Drain pulls every complete block out of the channel rings and
	// invokes the handler once per channel per block.
	Drain(handler BlockHandler)

	ListDevices() []DeviceInfo
	BackendName() string
}

// NullCapture is a no-op backend used when no audio device is
// configured; the system falls back to console meter data.
type NullCapture struct{}

func (NullCapture) Open(CaptureConfig) bool    { return true }
func (NullCapture) Start() bool                { return true }
func (NullCapture) Stop()                      {}
func (NullCapture) IsRunning() bool            { return false }
func (NullCapture) Drain(BlockHandler)         {}
func (NullCapture) ListDevices() []DeviceInfo  { return nil }
func (NullCapture) BackendName() string        { return "null" }
