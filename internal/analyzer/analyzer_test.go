package analyzer

import (
	"math"
	"testing"

	"github.com/matiaszanolli/auralis/internal/audio"
	"github.com/matiaszanolli/auralis/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate, numSamples int) []float64 {
	samples := make([]float64, numSamples)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return samples
}

func TestAnalyzeMonoSineWave(t *testing.T) {
	sampleRate := audio.AnalysisSampleRate
	samples := sineWave(440, sampleRate, sampleRate*2)

	decoded := &audio.Audio{
		Channels:   [][]float64{samples},
		SampleRate: sampleRate,
		Duration:   2.0,
	}

	a := New()
	fp := a.analyze(decoded)

	assert.False(t, math.IsNaN(fp.SpectralCentroid))
	assert.Greater(t, fp.SpectralCentroid, 0.0)
	assert.Equal(t, 0.0, fp.StereoWidth)
	assert.Equal(t, 1.0, fp.PhaseCorrelation)
	assert.GreaterOrEqual(t, fp.HarmonicRatio, 0.0)
	assert.LessOrEqual(t, fp.HarmonicRatio, 1.0)
}

func TestAnalyzeStereoDecorrelated(t *testing.T) {
	sampleRate := audio.AnalysisSampleRate
	left := sineWave(440, sampleRate, sampleRate)
	right := sineWave(880, sampleRate, sampleRate)

	decoded := &audio.Audio{
		Channels:   [][]float64{left, right},
		SampleRate: sampleRate,
		Duration:   1.0,
	}

	a := New()
	fp := a.analyze(decoded)

	require.True(t, decoded.IsStereo())
	assert.Greater(t, fp.StereoWidth, 0.0)
}

func TestAnalyzeSilence(t *testing.T) {
	sampleRate := audio.AnalysisSampleRate
	samples := make([]float64, sampleRate)

	decoded := &audio.Audio{
		Channels:   [][]float64{samples},
		SampleRate: sampleRate,
		Duration:   1.0,
	}

	a := New()
	fp := a.analyze(decoded)

	assert.Equal(t, 1.0, fp.SilenceRatio)
	assert.Equal(t, features.DefaultTempoBPM, fp.TempoBPM)
}
