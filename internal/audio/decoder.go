// Package audio decodes arbitrary audio files into raw PCM samples
// using the system's ffmpeg/ffprobe binaries, exactly the way the rest
// of the stack already shells out to ffmpeg for transcoding.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
)

// AnalysisSampleRate is the sample rate all decoded audio is resampled
// to before feature extraction. Every extractor assumes this rate.
const AnalysisSampleRate = 44100

// MinDurationSeconds is the shortest clip the analyzer will accept.
// Anything shorter is an AnalysisError, not a DecodeError - the file
// decoded fine, there just isn't enough signal to extract from.
const MinDurationSeconds = 1.0

// Audio is raw, decoded PCM: float64 samples held as one slice per
// channel (already de-interleaved) at a fixed sample rate.
type Audio struct {
	Channels   [][]float64 // Channels[0] = left/mono, Channels[1] = right if stereo
	SampleRate int
	Duration   float64
}

// Mono returns a single mono channel, averaging L+R when the source is
// stereo. Used by extractors that don't care about stereo image.
func (a *Audio) Mono() []float64 {
	if len(a.Channels) == 1 {
		return a.Channels[0]
	}
	l, r := a.Channels[0], a.Channels[1]
	n := len(l)
	if len(r) < n {
		n = len(r)
	}
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		mono[i] = (l[i] + r[i]) / 2
	}
	return mono
}

// IsStereo reports whether the source had two or more channels.
func (a *Audio) IsStereo() bool {
	return len(a.Channels) >= 2
}

// Decode extracts raw PCM samples from an audio file via ffmpeg,
// resampled to AnalysisSampleRate and downmixed to at most stereo.
// Every ffmpeg/ffprobe failure is classified into one of three typed,
// always-permanent errors (UnsupportedFormat, Corrupt, IO) so the
// dead-letter record says why, not just that decode failed.
func Decode(ctx context.Context, path string) (*Audio, error) {
	probe, probeErr, probeStderr := probeWithStderr(ctx, path)
	if probeErr != nil {
		if apiErr, ok := probeErr.(*apierrors.APIError); ok {
			return nil, apiErr
		}
		return nil, classifyDecodeError(fmt.Sprintf("failed to probe %s", path), probeErr, probeStderr)
	}

	channels := probe.channels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}

	raw, extractErr, extractStderr := extractPCMWithStderr(ctx, path, channels)
	if extractErr != nil {
		return nil, classifyDecodeError(fmt.Sprintf("failed to decode %s", path), extractErr, extractStderr)
	}

	deinterleaved := deinterleave(raw, channels)
	if len(deinterleaved) == 0 || len(deinterleaved[0]) == 0 {
		return nil, apierrors.Corrupt(fmt.Sprintf("%s decoded to zero samples - no audio stream found", path))
	}

	duration := float64(len(deinterleaved[0])) / float64(AnalysisSampleRate)

	return &Audio{
		Channels:   deinterleaved,
		SampleRate: AnalysisSampleRate,
		Duration:   duration,
	}, nil
}

type probeResult struct {
	duration float64
	channels int
}

// probeWithStderr runs ffprobe to determine the channel count, returning
// its stderr alongside any error so the caller can classify the failure.
// We prefer a real probe over trusting the decoded byte count, since
// some containers report channel layouts ffmpeg's default decode
// resolves differently.
func probeWithStderr(ctx context.Context, path string) (*probeResult, error, string) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, err, stderr.String()
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Channels  int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, apierrors.Corrupt(fmt.Sprintf("ffprobe produced unparseable output for %s: %v", path, err)), ""
	}

	channels := 2
	found := false
	for _, s := range parsed.Streams {
		if s.CodecType == "audio" {
			channels = s.Channels
			found = true
			break
		}
	}
	if !found {
		return nil, apierrors.Corrupt(fmt.Sprintf("%s has no audio stream", path)), ""
	}

	var duration float64
	fmt.Sscanf(parsed.Format.Duration, "%f", &duration)

	return &probeResult{duration: duration, channels: channels}, nil, ""
}

// extractPCMWithStderr shells out to ffmpeg to decode path into raw
// interleaved 32-bit float PCM at AnalysisSampleRate with the given
// channel count, returning its stderr alongside any error.
func extractPCMWithStderr(ctx context.Context, path string, channels int) ([]byte, error, string) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", AnalysisSampleRate),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, err, stderr.String()
	}

	return stdout.Bytes(), nil, ""
}

// classifyDecodeError turns a raw ffmpeg/ffprobe failure into one of the
// three typed decode errors. An error the command itself couldn't run
// (missing binary, missing file, context cancellation) is IO; an error
// the command reported via exit status is UnsupportedFormat or Corrupt,
// distinguished by ffmpeg's own stderr wording.
func classifyDecodeError(context string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return apierrors.IO(fmt.Sprintf("%s: %v", context, err))
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "moov atom not found"),
		strings.Contains(lower, "error while decoding"),
		strings.Contains(lower, "truncated"):
		return apierrors.Corrupt(fmt.Sprintf("%s: %s", context, stderr))
	case strings.Contains(lower, "unknown format"),
		strings.Contains(lower, "unable to find a suitable output format"),
		strings.Contains(lower, "decoder not found"):
		return apierrors.UnsupportedFormat(fmt.Sprintf("%s: %s", context, stderr))
	default:
		return apierrors.Corrupt(fmt.Sprintf("%s: %s", context, stderr))
	}
}

// deinterleave converts raw little-endian float32 PCM bytes into one
// []float64 slice per channel.
func deinterleave(raw []byte, channels int) [][]float64 {
	bytesPerFrame := 4 * channels
	numFrames := len(raw) / bytesPerFrame

	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, numFrames)
	}

	for i := 0; i < numFrames; i++ {
		base := i * bytesPerFrame
		for c := 0; c < channels; c++ {
			bits := binary.LittleEndian.Uint32(raw[base+c*4 : base+c*4+4])
			out[c][i] = float64(math.Float32frombits(bits))
		}
	}

	return out
}

// CheckFFmpegAvailable verifies ffmpeg and ffprobe are installed.
func CheckFFmpegAvailable() error {
	if err := exec.Command("ffmpeg", "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found - please install FFmpeg: %w", err)
	}
	if err := exec.Command("ffprobe", "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found - please install FFmpeg: %w", err)
	}
	return nil
}
