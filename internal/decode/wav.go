package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavBlockFrames is the number of frames requested per Next call.
const wavBlockFrames = 8192

type wavReader struct {
	dec   *wav.Decoder
	track Track
	buf   *audio.IntBuffer
	depth int
	scale float32
	done  bool
}

func newWAVReader(rs io.ReadSeeker) (Reader, error) {
	dec := wav.NewDecoder(rs)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrDecoderInit)
	}

	depth := int(dec.BitDepth)
	divisor, err := pcmDivisor(depth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoderInit, err)
	}

	channels := int(dec.NumChans)
	bufLen := wavBlockFrames
	if channels > 0 {
		bufLen *= channels
	}
	return &wavReader{
		dec: dec,
		track: Track{
			Codec:      "pcm",
			Channels:   channels,
			SampleRate: int(dec.SampleRate),
		},
		buf: &audio.IntBuffer{
			Data:   make([]int, bufLen),
			Format: &audio.Format{SampleRate: int(dec.SampleRate), NumChannels: channels},
		},
		depth: depth,
		scale: 1 / divisor,
	}, nil
}

func (r *wavReader) Track() (Track, bool) {
	if r.track.Channels == 0 && r.track.SampleRate == 0 {
		return Track{}, false
	}
	return r.track, true
}

func (r *wavReader) Next() ([]float32, error) {
	if r.done {
		return nil, io.EOF
	}

	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		// A short data chunk ends the stream rather than failing it.
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read pcm block: %w", err)
		}
		r.done = true
	}
	// A truncated file can leave a partial trailing frame; drop it.
	if r.track.Channels > 0 {
		n -= n % r.track.Channels
	}
	if n == 0 {
		return nil, io.EOF
	}

	out := make([]float32, n)
	if r.depth == 8 {
		// 8-bit WAV is unsigned.
		for i := 0; i < n; i++ {
			out[i] = (float32(r.buf.Data[i]) - 128) * r.scale
		}
		return out, nil
	}
	for i := 0; i < n; i++ {
		out[i] = float32(r.buf.Data[i]) * r.scale
	}
	return out, nil
}

func (r *wavReader) Close() error {
	r.done = true
	return nil
}
