package sidecar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matiaszanolli/auralis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFingerprint() models.Fingerprint {
	return models.FromDims([25]float64{
		10, 20, 15, 25, 10, 12, 8,
		-14, 8, 2,
		120, 0.8, 0.3, 0.1,
		2000, 6000, 0.4,
		0.7, 0.6, 0.5,
		0.2, 1.5, 0.9,
		0.1, 0.95,
	}, models.SchemaVersion)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake audio bytes"), 0o644))

	identity, err := IdentityFromFile(audioPath)
	require.NoError(t, err)

	fp := testFingerprint()
	require.NoError(t, Write(audioPath, identity, fp))

	rec, err := Read(audioPath)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, fp.Dims(), rec.Fingerprint.Dims())
	assert.Equal(t, identity.Size, rec.Identity.Size)
	assert.Equal(t, identity.ModTimeNanos, rec.Identity.ModTimeNanos)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, 5*time.Second)
}

func TestReadMissingSidecarIsNilNotError(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "missing.wav")

	rec, err := Read(audioPath)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIsValidDetectsStaleSidecar(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("version one"), 0o644))

	identity, err := IdentityFromFile(audioPath)
	require.NoError(t, err)
	require.NoError(t, Write(audioPath, identity, testFingerprint()))

	rec, err := Read(audioPath)
	require.NoError(t, err)

	valid, err := IsValid(rec, audioPath)
	require.NoError(t, err)
	assert.True(t, valid)

	// Overwrite with different content/size - identity must no longer match.
	require.NoError(t, os.WriteFile(audioPath, []byte("a completely different and longer body"), 0o644))

	valid, err = IsValid(rec, audioPath)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsValidRejectsOldSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake audio bytes"), 0o644))

	identity, err := IdentityFromFile(audioPath)
	require.NoError(t, err)

	staleFP := models.FromDims(testFingerprint().Dims(), models.SchemaVersion-1)
	require.NoError(t, Write(audioPath, identity, staleFP))

	rec, err := Read(audioPath)
	require.NoError(t, err)
	require.NotNil(t, rec)

	valid, err := IsValid(rec, audioPath)
	require.NoError(t, err)
	assert.False(t, valid, "a sidecar written under an older schema version must never be valid")
}

func TestInvalidateRemovesSidecar(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake"), 0o644))

	identity, err := IdentityFromFile(audioPath)
	require.NoError(t, err)
	require.NoError(t, Write(audioPath, identity, testFingerprint()))

	require.NoError(t, Invalidate(audioPath))

	rec, err := Read(audioPath)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDecodeRejectsCorruptData(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "track.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake"), 0o644))

	identity, err := IdentityFromFile(audioPath)
	require.NoError(t, err)
	require.NoError(t, Write(audioPath, identity, testFingerprint()))

	// Flip a byte of the header's audio_mtime_ns field to break the checksum.
	raw, err := os.ReadFile(Path(audioPath))
	require.NoError(t, err)
	raw[20] ^= 0xFF
	require.NoError(t, os.WriteFile(Path(audioPath), raw, 0o644))

	_, err = Read(audioPath)
	assert.Error(t, err)
}
