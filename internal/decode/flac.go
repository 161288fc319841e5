package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tphakala/flac"
)

type flacReader struct {
	dec   *flac.Decoder
	track Track
	depth int
	scale float32
	done  bool
}

func newFLACReader(rs io.ReadSeeker) (Reader, error) {
	dec, err := flac.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoderInit, err)
	}

	depth := dec.BitsPerSample
	divisor, err := pcmDivisor(depth)
	if err != nil || depth == 8 {
		return nil, fmt.Errorf("%w: flac bit depth %d", ErrDecoderInit, depth)
	}
	return &flacReader{
		dec: dec,
		track: Track{
			Codec:      "flac",
			Channels:   dec.NChannels,
			SampleRate: dec.SampleRate,
		},
		depth: depth,
		scale: 1 / divisor,
	}, nil
}

func (r *flacReader) Track() (Track, bool) {
	if r.track.Channels == 0 && r.track.SampleRate == 0 {
		return Track{}, false
	}
	return r.track, true
}

func (r *flacReader) Next() ([]float32, error) {
	if r.done {
		return nil, io.EOF
	}

	frame, err := r.dec.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		// Frames carry sync codes, so a corrupted frame can be
		// skipped without abandoning the stream.
		return nil, Recoverable(fmt.Errorf("decode flac frame: %w", err))
	}

	bytesPerSample := r.depth / 8
	count := len(frame) / bytesPerSample
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		off := i * bytesPerSample
		var sample int32
		switch r.depth {
		case 16:
			sample = int32(int16(binary.LittleEndian.Uint16(frame[off:])))
		case 24:
			sample = int32(frame[off]) | int32(frame[off+1])<<8 | int32(frame[off+2])<<16
			if sample&0x800000 != 0 {
				sample |= -1 << 24
			}
		case 32:
			sample = int32(binary.LittleEndian.Uint32(frame[off:]))
		}
		out[i] = float32(sample) * r.scale
	}
	return out, nil
}

func (r *flacReader) Close() error {
	r.done = true
	return nil
}
