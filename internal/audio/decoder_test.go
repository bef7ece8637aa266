package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os/exec"
	"testing"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeF32LE(t *testing.T, samples ...float32) []byte {
	t.Helper()
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func TestDeinterleaveMono(t *testing.T) {
	raw := encodeF32LE(t, 0.1, 0.2, 0.3)

	channels := deinterleave(raw, 1)

	require.Len(t, channels, 1)
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, channels[0], 1e-6)
}

func TestDeinterleaveStereo(t *testing.T) {
	// L0, R0, L1, R1
	raw := encodeF32LE(t, 1.0, -1.0, 0.5, -0.5)

	channels := deinterleave(raw, 2)

	require.Len(t, channels, 2)
	assert.InDeltaSlice(t, []float64{1.0, 0.5}, channels[0], 1e-6)
	assert.InDeltaSlice(t, []float64{-1.0, -0.5}, channels[1], 1e-6)
}

func TestAudioMonoFromStereo(t *testing.T) {
	a := &Audio{
		Channels:   [][]float64{{1.0, 0.5}, {-1.0, -0.5}},
		SampleRate: AnalysisSampleRate,
	}

	mono := a.Mono()

	assert.InDeltaSlice(t, []float64{0.0, 0.0}, mono, 1e-9)
	assert.True(t, a.IsStereo())
}

func TestAudioMonoFromMono(t *testing.T) {
	a := &Audio{Channels: [][]float64{{0.25, 0.5}}, SampleRate: AnalysisSampleRate}

	assert.Equal(t, a.Channels[0], a.Mono())
	assert.False(t, a.IsStereo())
}

func TestDeinterleaveEmpty(t *testing.T) {
	channels := deinterleave([]byte{}, 2)

	require.Len(t, channels, 2)
	assert.Empty(t, channels[0])
	assert.Empty(t, channels[1])
}

func TestClassifyDecodeErrorCorrupt(t *testing.T) {
	var exitErr *exec.ExitError
	err := exec.Command("false").Run()
	require.True(t, errors.As(err, &exitErr), "exec.Command(\"false\") must produce an *exec.ExitError")

	got := classifyDecodeError("failed to decode x.mp3", err, "Invalid data found when processing input")

	apiErr, ok := got.(*apierrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrCorrupt, apiErr.Code)
}

func TestClassifyDecodeErrorUnsupportedFormat(t *testing.T) {
	err := exec.Command("false").Run()

	got := classifyDecodeError("failed to probe x.xyz", err, "Unknown format")

	apiErr, ok := got.(*apierrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrUnsupportedFormat, apiErr.Code)
}

func TestClassifyDecodeErrorIOWhenCommandNeverRan(t *testing.T) {
	err := exec.Command("/no/such/binary-xyz").Run()
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.False(t, errors.As(err, &exitErr), "a missing binary must not produce an *exec.ExitError")

	got := classifyDecodeError("failed to probe x.mp3", err, "")

	apiErr, ok := got.(*apierrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apierrors.ErrIO, apiErr.Code)
}
