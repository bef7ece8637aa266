// Package sidecar implements the fastest cache tier: a small binary file
// written next to the source audio file, carrying one Fingerprint plus
// the identity of the audio it was computed from. Reads never lock;
// writes take a per-path advisory lock and land atomically via
// write-temp-fsync-rename, the same pattern the rest of the stack uses
// for anything that must never leave a half-written file on disk.
package sidecar

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	apierrors "github.com/matiaszanolli/auralis/internal/errors"
	"github.com/matiaszanolli/auralis/internal/models"
)

// magic identifies an auralis sidecar file. "A25D" for the 25-dimension
// fixed-shape payload.
var magic = [4]byte{'A', '2', '5', 'D'}

// FormatVersion is the sidecar binary layout version, independent of
// models.SchemaVersion (the fingerprint schema). Bump this if the
// container format itself changes shape.
const FormatVersion = 1

// Extension is the suffix appended to an audio file's path to get its
// sidecar path.
const Extension = ".25d"

// recordSize is the fixed byte length of a sidecar file:
//
//	4  magic
//	2  format_version
//	2  fingerprint_version
//	8  audio_size
//	8  audio_mtime_ns
//	32 sha256 (zero when the identity carries no content hash)
//	8  created_at (unix nanos)
//	200 payload (25 x float64)
//	4  crc32
const recordSize = 4 + 2 + 2 + 8 + 8 + 32 + 8 + 25*8 + 4

// Identity pins a sidecar to the exact audio file it describes.
// Size+ModTimeNanos is always checked on read. SHA256 is checked only
// when non-zero; IdentityFromFile leaves it zero, and nothing in this
// package computes it.
type Identity struct {
	Size         int64
	ModTimeNanos int64
	SHA256       [32]byte
}

// Record is a decoded sidecar file: the fingerprint plus the identity of
// the audio it was computed from.
type Record struct {
	Identity    Identity
	Fingerprint models.Fingerprint
	CreatedAt   time.Time
}

// Path returns the sidecar path for an audio file.
func Path(audioPath string) string {
	return audioPath + Extension
}

// Write atomically writes a sidecar file for audioPath. Takes a
// per-path advisory lock so two workers racing to analyze the same
// track don't interleave writes; readers never block on this lock.
func Write(audioPath string, identity Identity, fp models.Fingerprint) error {
	lockPath := Path(audioPath) + ".lock"
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return apierrors.Cache(fmt.Sprintf("failed to lock sidecar for %s: %v", audioPath, err))
	}
	defer lock.Unlock()
	defer os.Remove(lockPath)

	buf, err := encode(identity, fp)
	if err != nil {
		return apierrors.Cache(fmt.Sprintf("failed to encode sidecar for %s: %v", audioPath, err))
	}

	sidecarPath := Path(audioPath)
	tmpPath := sidecarPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return apierrors.Cache(fmt.Sprintf("failed to create temp sidecar for %s: %v", audioPath, err))
	}

	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return apierrors.Cache(fmt.Sprintf("failed to write temp sidecar for %s: %v", audioPath, err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return apierrors.Cache(fmt.Sprintf("failed to fsync temp sidecar for %s: %v", audioPath, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return apierrors.Cache(fmt.Sprintf("failed to close temp sidecar for %s: %v", audioPath, err))
	}

	if err := os.Rename(tmpPath, sidecarPath); err != nil {
		os.Remove(tmpPath)
		return apierrors.Cache(fmt.Sprintf("failed to rename temp sidecar for %s: %v", audioPath, err))
	}

	return nil
}

// Read decodes the sidecar file for audioPath, if one exists. Returns
// (nil, nil) when there is no sidecar - that's a normal cache miss, not
// an error. Returns an error only for a corrupt or unreadable file.
func Read(audioPath string) (*Record, error) {
	data, err := os.ReadFile(Path(audioPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierrors.Cache(fmt.Sprintf("failed to read sidecar for %s: %v", audioPath, err))
	}
	return decode(data)
}

// IsValid reports whether a decoded Record still matches the current
// on-disk audio file: exact SHA256 match if the sidecar has been
// upgraded, otherwise (size, mtime) match. A sidecar written under an
// older FingerprintVersion than models.SchemaVersion is never valid, so
// bumping the schema invalidates every sidecar on next access.
func IsValid(rec *Record, audioPath string) (bool, error) {
	if rec.Fingerprint.FingerprintVersion != models.SchemaVersion {
		return false, nil
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return false, apierrors.Cache(fmt.Sprintf("failed to stat %s: %v", audioPath, err))
	}

	var zero [32]byte
	if rec.Identity.SHA256 != zero {
		sum, err := sha256File(audioPath)
		if err != nil {
			return false, err
		}
		return sum == rec.Identity.SHA256, nil
	}

	return info.Size() == rec.Identity.Size && info.ModTime().UnixNano() == rec.Identity.ModTimeNanos, nil
}

// Invalidate removes the sidecar for audioPath, if any. Not an error if
// none exists.
func Invalidate(audioPath string) error {
	err := os.Remove(Path(audioPath))
	if err != nil && !os.IsNotExist(err) {
		return apierrors.Cache(fmt.Sprintf("failed to remove sidecar for %s: %v", audioPath, err))
	}
	return nil
}

// IdentityFromFile stats audioPath and builds its (size, mtime) identity
// without hashing the file - the cheap path used on every write.
func IdentityFromFile(audioPath string) (Identity, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return Identity{}, apierrors.Cache(fmt.Sprintf("failed to stat %s: %v", audioPath, err))
	}
	return Identity{Size: info.Size(), ModTimeNanos: info.ModTime().UnixNano()}, nil
}

func sha256File(path string) ([32]byte, error) {
	var zero [32]byte
	f, err := os.Open(path)
	if err != nil {
		return zero, apierrors.Cache(fmt.Sprintf("failed to open %s for hashing: %v", path, err))
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return zero, apierrors.Cache(fmt.Sprintf("failed to hash %s: %v", path, err))
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func encode(identity Identity, fp models.Fingerprint) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(magic[:])

	if err := binary.Write(buf, binary.LittleEndian, uint16(FormatVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(fp.FingerprintVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(identity.Size)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(identity.ModTimeNanos)); err != nil {
		return nil, err
	}
	buf.Write(identity.SHA256[:])
	if err := binary.Write(buf, binary.LittleEndian, int64(time.Now().UnixNano())); err != nil {
		return nil, err
	}

	dims := fp.Dims()
	for _, d := range dims {
		if err := binary.Write(buf, binary.LittleEndian, d); err != nil {
			return nil, err
		}
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(buf, binary.LittleEndian, sum); err != nil {
		return nil, err
	}

	if buf.Len() != recordSize {
		return nil, fmt.Errorf("sidecar encode produced %d bytes, want %d", buf.Len(), recordSize)
	}

	return buf.Bytes(), nil
}

func decode(data []byte) (*Record, error) {
	if len(data) != recordSize {
		return nil, apierrors.Cache(fmt.Sprintf("sidecar is %d bytes, want %d", len(data), recordSize))
	}

	body := data[:len(data)-4]
	wantCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, apierrors.Cache("sidecar checksum mismatch")
	}

	r := bytes.NewReader(data)

	var fileMagic [4]byte
	io.ReadFull(r, fileMagic[:])
	if fileMagic != magic {
		return nil, apierrors.Cache("sidecar magic mismatch")
	}

	var formatVersion, fingerprintVersion uint16
	binary.Read(r, binary.LittleEndian, &formatVersion)
	if formatVersion != FormatVersion {
		return nil, apierrors.Cache(fmt.Sprintf("sidecar format version %d unsupported", formatVersion))
	}
	binary.Read(r, binary.LittleEndian, &fingerprintVersion)

	var size, mtimeNanos uint64
	binary.Read(r, binary.LittleEndian, &size)
	binary.Read(r, binary.LittleEndian, &mtimeNanos)

	var sha [32]byte
	io.ReadFull(r, sha[:])

	var createdAtNanos int64
	binary.Read(r, binary.LittleEndian, &createdAtNanos)

	var dims [25]float64
	for i := range dims {
		binary.Read(r, binary.LittleEndian, &dims[i])
	}

	return &Record{
		Identity: Identity{
			Size:         int64(size),
			ModTimeNanos: int64(mtimeNanos),
			SHA256:       sha,
		},
		Fingerprint: models.FromDims(dims, int(fingerprintVersion)),
		CreatedAt:   time.Unix(0, createdAtNanos),
	}, nil
}
