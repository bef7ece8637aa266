package spectrum

// Frame is a single windowed FFT frame: the magnitude spectrum and the
// sample offset it was taken from.
type Frame struct {
	Magnitudes []float64
	Offset     int
}

// Core is the shared spectral representation of one channel of audio,
// computed once per track and handed by pointer to every feature
// extractor that needs it. Extractors must never recompute their own
// FFT/STFT - that was the historical bug this package exists to
// preclude.
type Core struct {
	SampleRate int
	WindowSize int
	HopSize    int
	Frames     []Frame
	Window     []float64
}

// STFT computes the short-time Fourier transform of mono samples using
// a Hann window of windowSize with the given hop between frames.
func STFT(mono []float64, sampleRate, windowSize, hopSize int) *Core {
	window := HannWindow(windowSize)

	var frames []Frame
	for start := 0; start+windowSize <= len(mono); start += hopSize {
		mags := FFTSpectrum(mono[start:start+windowSize], window)
		frames = append(frames, Frame{Magnitudes: mags, Offset: start})
	}

	// A track shorter than one window still gets a single zero-padded
	// frame so downstream extractors never have to special-case "no
	// frames" separately from "silent frame".
	if len(frames) == 0 && len(mono) > 0 {
		padded := make([]float64, windowSize)
		copy(padded, mono)
		mags := FFTSpectrum(padded, window)
		frames = append(frames, Frame{Magnitudes: mags, Offset: 0})
	}

	return &Core{
		SampleRate: sampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
		Frames:     frames,
		Window:     window,
	}
}

// BinHz returns the center frequency in Hz of the given FFT bin.
func (c *Core) BinHz(bin int) float64 {
	return float64(bin) * float64(c.SampleRate) / float64(c.WindowSize)
}

// NumBins is the number of positive-frequency bins per frame.
func (c *Core) NumBins() int {
	if len(c.Frames) == 0 {
		return 0
	}
	return len(c.Frames[0].Magnitudes)
}

// FrameDuration is the time span of each STFT frame, in seconds.
func (c *Core) FrameDuration() float64 {
	return float64(c.WindowSize) / float64(c.SampleRate)
}

// HopDuration is the time span between consecutive frame starts, in
// seconds.
func (c *Core) HopDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}

// DefaultWindowHop returns the window and hop size proportional to the
// reference 4096/1024 @ 44.1kHz configuration (~93ms window / ~23ms
// hop), scaled to the given sample rate and rounded to a power of two.
func DefaultWindowHop(sampleRate int) (windowSize, hopSize int) {
	const refRate = 44100
	const refWindow = 4096
	const refHop = 1024

	ratio := float64(sampleRate) / float64(refRate)
	windowSize = nextPow2(int(float64(refWindow) * ratio))
	hopSize = windowSize / 4
	return windowSize, hopSize
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
