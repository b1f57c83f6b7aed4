package audio

import "math"

// BandEnergy holds per-band spectral energy in dBFS, floored at -96.
type BandEnergy struct {
	SubBass  float64 // 20–80 Hz
	Bass     float64 // 80–250 Hz
	LowMid   float64 // 250–500 Hz
	Mid      float64 // 500 Hz–2 kHz
	UpperMid float64 // 2–6 kHz
	Presence float64 // 6–10 kHz
	Air      float64 // 10 kHz–Nyquist
}

// Result is one block's spectral analysis.
type Result struct {
	Bands            BandEnergy
	SpectralCentroid float64 // Hz
	DominantFreqHz   float64
	RmsDB            float64
	PeakDB           float64
	CrestFactor      float64 // peak - rms, dB
	HasSignal        bool    // rms > -60 dB
}

func defaultResult() Result {
	return Result{
		Bands: BandEnergy{
			SubBass: -96, Bass: -96, LowMid: -96, Mid: -96,
			UpperMid: -96, Presence: -96, Air: -96,
		},
		RmsDB:  -96,
		PeakDB: -96,
	}
}

// FFTAnalyser extracts band energies, spectral centroid, dominant
// frequency, and crest factor from real-valued audio blocks using an
// in-place radix-2 Cooley-Tukey transform. Construct once; the Hann
// window and work buffers are reused across calls, so an analyser is
// not safe for concurrent use.
type FFTAnalyser struct {
	size   int
	window []float64
	real   []float64
	imag   []float64
	mag    []float64
}

// NewFFTAnalyser creates an analyser for blocks of size samples. Size
// must be a power of two; it is rounded down to one otherwise.
func NewFFTAnalyser(size int) *FFTAnalyser {
	if size < 2 {
		size = 2
	}
	for size&(size-1) != 0 {
		size &= size - 1 // clear lowest set bit until a power of two remains
	}
	a := &FFTAnalyser{
		size:   size,
		window: make([]float64, size),
		real:   make([]float64, size),
		imag:   make([]float64, size),
		mag:    make([]float64, size/2),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return a
}

// Size returns the block size.
func (a *FFTAnalyser) Size() int { return a.size }

func toDBFS(linear float64) float64 {
	if linear < 1e-10 {
		return -96
	}
	db := 20 * math.Log10(linear)
	if db < -96 {
		return -96
	}
	return db
}

// Analyse processes one block. Blocks shorter than the FFT size, or
// below the signal threshold, return the default result with
// HasSignal false.
func (a *FFTAnalyser) Analyse(samples []float32, sampleRate float64) Result {
	r := defaultResult()

	if len(samples) < a.size || sampleRate <= 0 {
		return r
	}

	var sumSq, peak float64
	for _, s := range samples {
		f := float64(s)
		sumSq += f * f
		if af := math.Abs(f); af > peak {
			peak = af
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	r.RmsDB = toDBFS(rms)
	r.PeakDB = toDBFS(peak)
	r.CrestFactor = r.PeakDB - r.RmsDB
	r.HasSignal = r.RmsDB > -60

	if !r.HasSignal {
		return r
	}

	for i := 0; i < a.size; i++ {
		a.real[i] = float64(samples[i]) * a.window[i]
		a.imag[i] = 0
	}

	fft(a.real, a.imag)

	halfN := a.size / 2
	binWidth := sampleRate / float64(a.size)
	for i := 0; i < halfN; i++ {
		a.mag[i] = math.Hypot(a.real[i], a.imag[i]) / float64(halfN)
	}

	r.Bands.SubBass = a.bandEnergyDB(binWidth, 20, 80)
	r.Bands.Bass = a.bandEnergyDB(binWidth, 80, 250)
	r.Bands.LowMid = a.bandEnergyDB(binWidth, 250, 500)
	r.Bands.Mid = a.bandEnergyDB(binWidth, 500, 2000)
	r.Bands.UpperMid = a.bandEnergyDB(binWidth, 2000, 6000)
	r.Bands.Presence = a.bandEnergyDB(binWidth, 6000, 10000)
	r.Bands.Air = a.bandEnergyDB(binWidth, 10000, sampleRate/2)

	var weightedSum, totalMag float64
	for i := 1; i < halfN; i++ {
		freq := float64(i) * binWidth
		weightedSum += freq * a.mag[i]
		totalMag += a.mag[i]
	}
	if totalMag > 1e-12 {
		r.SpectralCentroid = weightedSum / totalMag
	}

	peakBin := 1
	for i := 2; i < halfN; i++ {
		if a.mag[i] > a.mag[peakBin] {
			peakBin = i
		}
	}
	r.DominantFreqHz = float64(peakBin) * binWidth

	return r
}

func (a *FFTAnalyser) bandEnergyDB(binWidth, loHz, hiHz float64) float64 {
	loBin := int(loHz / binWidth)
	if loBin < 1 {
		loBin = 1
	}
	hiBin := int(hiHz / binWidth)
	if hiBin > len(a.mag)-1 {
		hiBin = len(a.mag) - 1
	}
	if loBin > hiBin {
		return -96
	}

	var sumSq float64
	for i := loBin; i <= hiBin; i++ {
		sumSq += a.mag[i] * a.mag[i]
	}
	rms := math.Sqrt(sumSq / float64(hiBin-loBin+1))
	return toDBFS(rms)
}

// fft performs an in-place radix-2 Cooley-Tukey transform with
// bit-reversal permutation. len(real) must be a power of two.
func fft(real, imag []float64) {
	n := len(real)

	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			real[i], real[j] = real[j], real[i]
			imag[i], imag[j] = imag[j], imag[i]
		}
		m := n >> 1
		for m >= 1 && j >= m {
			j -= m
			m >>= 1
		}
		j += m
	}

	for step := 2; step <= n; step <<= 1 {
		halfStep := step >> 1
		angle := -2 * math.Pi / float64(step)

		for group := 0; group < n; group += step {
			for pair := 0; pair < halfStep; pair++ {
				wr := math.Cos(angle * float64(pair))
				wi := math.Sin(angle * float64(pair))

				even := group + pair
				odd := even + halfStep

				tr := wr*real[odd] - wi*imag[odd]
				ti := wr*imag[odd] + wi*real[odd]

				real[odd] = real[even] - tr
				imag[odd] = imag[even] - ti
				real[even] += tr
				imag[even] += ti
			}
		}
	}
}
