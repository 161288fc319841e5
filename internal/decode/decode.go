// Package decode probes audio containers and exposes their default
// track as a stream of normalized interleaved samples. Format support
// is fixed at compile time: MP3, WAV, and FLAC, each behind a shared
// Reader contract so the measurement code never touches codec
// libraries directly.
package decode

import (
	"errors"
	"fmt"
	"io"
)

// Track describes the stream a reader decodes.
type Track struct {
	Codec      string
	Channels   int
	SampleRate int
}

// Reader yields interleaved sample blocks from one audio stream.
type Reader interface {
	// Track returns the selected default track. The second return is
	// false when the container holds no playable audio stream.
	Track() (Track, bool)
	// Next returns the next block of interleaved samples normalized
	// to [-1, 1]. It returns io.EOF at the end of the stream. Errors
	// satisfying IsRecoverable permit continuing with the next block.
	Next() ([]float32, error)
	Close() error
}

var (
	// ErrUnknownFormat reports that the leading bytes match no
	// supported container.
	ErrUnknownFormat = errors.New("unknown audio format")
	// ErrDecoderInit reports that a recognized container could not be
	// opened for decoding.
	ErrDecoderInit = errors.New("decoder init failed")
)

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string { return e.err.Error() }

func (e *recoverableError) Unwrap() error { return e.err }

// Recoverable marks err as a malformed-block condition the caller may
// log and skip.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// IsRecoverable reports whether a decode error permits continuing with
// the next block.
func IsRecoverable(err error) bool {
	var rec *recoverableError
	return errors.As(err, &rec)
}

const headerLen = 12

// Probe sniffs the container magic and constructs the matching format
// reader. The seeker is rewound before the reader takes over; callers
// keep ownership of the underlying file.
func Probe(rs io.ReadSeeker) (Reader, error) {
	var header [headerLen]byte
	n, err := io.ReadFull(rs, header[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read container header: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind container: %w", err)
	}

	magic := header[:n]
	switch {
	case isWAV(magic):
		return newWAVReader(rs)
	case isFLAC(magic):
		return newFLACReader(rs)
	case isMP3(magic):
		return newMP3Reader(rs)
	default:
		return nil, fmt.Errorf("%w: unrecognized header", ErrUnknownFormat)
	}
}

func isWAV(magic []byte) bool {
	return len(magic) >= 12 && string(magic[0:4]) == "RIFF" && string(magic[8:12]) == "WAVE"
}

func isFLAC(magic []byte) bool {
	return len(magic) >= 4 && string(magic[0:4]) == "fLaC"
}

// isMP3 accepts an ID3v2 tag or a raw MPEG audio sync word. MP3 has no
// container magic, so this is the loosest match and runs last.
func isMP3(magic []byte) bool {
	if len(magic) >= 3 && string(magic[0:3]) == "ID3" {
		return true
	}
	return len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0
}
