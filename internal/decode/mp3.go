package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3BlockBytes sizes the raw PCM read buffer. The decoder emits
// 16-bit little-endian stereo, 4 bytes per frame.
const mp3BlockBytes = 32 * 1024

type mp3Reader struct {
	dec      *mp3.Decoder
	track    Track
	buf      []byte
	carry    [4]byte
	carryLen int
	done     bool
}

func newMP3Reader(rs io.ReadSeeker) (Reader, error) {
	dec, err := mp3.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoderInit, err)
	}
	return &mp3Reader{
		dec: dec,
		track: Track{
			Codec:      "mp3",
			Channels:   2,
			SampleRate: dec.SampleRate(),
		},
		buf: make([]byte, mp3BlockBytes),
	}, nil
}

func (r *mp3Reader) Track() (Track, bool) {
	if r.track.SampleRate == 0 {
		return Track{}, false
	}
	return r.track, true
}

func (r *mp3Reader) Next() ([]float32, error) {
	if r.done {
		return nil, io.EOF
	}

	// Reads are not frame aligned; trailing partial frame bytes carry
	// over to the next block.
	copy(r.buf, r.carry[:r.carryLen])
	n, err := r.dec.Read(r.buf[r.carryLen:])
	total := r.carryLen + n
	usable := total &^ 3
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode mp3 block: %w", err)
		}
		r.done = true
	}
	if usable == 0 {
		if r.done {
			return nil, io.EOF
		}
		return nil, nil
	}
	r.carryLen = copy(r.carry[:], r.buf[usable:total])

	out := make([]float32, usable/2)
	for i := 0; i < usable; i += 2 {
		out[i/2] = float32(int16(binary.LittleEndian.Uint16(r.buf[i:]))) / 32768
	}
	return out, nil
}

func (r *mp3Reader) Close() error {
	r.done = true
	return nil
}
