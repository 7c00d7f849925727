// Package dsp holds the short-time spectral helpers shared by the analyzers.
package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// HannWindow returns n Hann window coefficients.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}

// FrameCount returns how many full frames of frameSize fit in n samples at hop spacing.
func FrameCount(n, frameSize, hop int) int {
	if frameSize <= 0 || hop <= 0 || n < frameSize {
		return 0
	}
	return (n-frameSize)/hop + 1
}

// ForEachSpectrum computes the magnitude spectrum of every Hann-windowed
// frame of samples and passes it to fn. The mag slice has frameSize/2+1 bins
// and is reused between calls.
func ForEachSpectrum(samples []float64, frameSize, hop int, fn func(i int, mag []float64)) {
	n := FrameCount(len(samples), frameSize, hop)
	if n == 0 {
		return
	}

	fft := fourier.NewFFT(frameSize)
	win := HannWindow(frameSize)
	frame := make([]float64, frameSize)
	coeffs := make([]complex128, frameSize/2+1)
	mag := make([]float64, frameSize/2+1)

	for i := 0; i < n; i++ {
		start := i * hop
		for j := range frame {
			frame[j] = samples[start+j] * win[j]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}
		fn(i, mag)
	}
}

// BinFrequency returns the center frequency in Hz of FFT bin k.
func BinFrequency(k, frameSize, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(frameSize)
}
