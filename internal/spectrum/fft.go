// Package spectrum computes the FFT/STFT representation shared by every
// feature extractor. It is computed exactly once per track and passed
// by reference, never recomputed per-extractor.
package spectrum

import (
	"math"
	"math/cmplx"
)

// HannWindow returns a Hann window of the given size.
func HannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// FFT computes the Fast Fourier Transform of x using an iterative
// Cooley-Tukey algorithm. If len(x) is not a power of two, x is
// zero-padded up to the next power of two.
func FFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		out := make([]complex128, n)
		copy(out, x)
		return out
	}

	if n&(n-1) != 0 {
		nextPow2 := 1
		for nextPow2 < n {
			nextPow2 <<= 1
		}
		padded := make([]complex128, nextPow2)
		copy(padded, x)
		x = padded
		n = nextPow2
	}

	result := make([]complex128, n)
	bits := int(math.Log2(float64(n)))
	for i := 0; i < n; i++ {
		result[reverseBits(i, bits)] = x[i]
	}

	for s := 1; s <= bits; s++ {
		m := 1 << s
		wm := cmplx.Exp(complex(0, -2*math.Pi/float64(m)))

		for k := 0; k < n; k += m {
			w := complex(1.0, 0.0)
			for j := 0; j < m/2; j++ {
				t := w * result[k+j+m/2]
				u := result[k+j]
				result[k+j] = u + t
				result[k+j+m/2] = u - t
				w *= wm
			}
		}
	}

	return result
}

func reverseBits(num, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (num & 1)
		num >>= 1
	}
	return result
}

// Magnitude computes the magnitude of the positive-frequency half of an
// FFT output (bins [0, n/2)).
func Magnitude(spectrum []complex128) []float64 {
	numBins := len(spectrum) / 2
	mags := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags
}

// FFTSpectrum applies a window to mono samples and returns the
// magnitude spectrum of a single frame. The samples slice must already
// be exactly len(window) long.
func FFTSpectrum(mono []float64, window []float64) []float64 {
	n := len(window)
	windowed := make([]complex128, n)
	for i := 0; i < n && i < len(mono); i++ {
		windowed[i] = complex(mono[i]*window[i], 0)
	}
	spectrum := FFT(windowed)
	return Magnitude(spectrum)
}
