// Package measure turns one audio file into a loudness measurement.
//
// The per-file pipeline is open, probe the container, select the
// default track, stream decoded blocks into the loudness accumulator,
// and finalize with gating. Every failure mode carries a sentinel
// error so batch processing can classify outcomes with errors.Is
// instead of string matching.
package measure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"loudscan/internal/decode"
	"loudscan/internal/ebur128"
	"loudscan/internal/logging"
)

// Measurement holds the two values persisted per file.
type Measurement struct {
	// Loudness is the integrated loudness in LUFS.
	Loudness float64 `json:"loudness"`
	// Energy is the summed weighted energy of the gated blocks.
	Energy float64 `json:"energy"`
}

// Per-file failure taxonomy. None of these aborts a batch.
var (
	ErrOpen          = errors.New("open failure")
	ErrProbe         = errors.New("probe failure")
	ErrNoTrack       = errors.New("no default track")
	ErrNoChannelInfo = errors.New("no channel info")
	ErrNoSampleRate  = errors.New("no sample rate")
	ErrDecoder       = errors.New("decoder construction failure")
	ErrNoEnergyData  = errors.New("no energy data")
)

var probeContainer = decode.Probe

// File measures the integrated loudness and gated energy sum of the
// audio file at path. Per-block decode problems are logged and never
// fail the file; the sentinels above cover everything that does.
func File(ctx context.Context, path string, logger *slog.Logger) (Measurement, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	reader, err := probeContainer(f)
	if err != nil {
		if errors.Is(err, decode.ErrDecoderInit) {
			return Measurement{}, fmt.Errorf("%w: %w", ErrDecoder, err)
		}
		return Measurement{}, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	defer reader.Close()

	track, ok := reader.Track()
	if !ok {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNoTrack, path)
	}
	if track.Channels <= 0 {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNoChannelInfo, path)
	}
	if track.SampleRate <= 0 {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNoSampleRate, path)
	}

	acc, err := ebur128.New(track.Channels, track.SampleRate)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %w", ErrDecoder, err)
	}

	if err := measureStream(ctx, reader, acc, logger); err != nil {
		return Measurement{}, err
	}

	_, energy, ok := acc.GatedBlockStats()
	if !ok {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNoEnergyData, path)
	}
	return Measurement{Loudness: acc.GlobalLoudness(), Energy: energy}, nil
}

// measureStream drains the reader into the accumulator. End of stream
// and fatal decode errors both end the loop with the audio accumulated
// so far; recoverable block errors and empty blocks are skipped.
func measureStream(ctx context.Context, reader decode.Reader, acc *ebur128.Accumulator, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := reader.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case decode.IsRecoverable(err):
				logger.Debug("skipping undecodable block", logging.Error(err))
				continue
			default:
				logger.Warn("decode ended early", logging.Error(err))
				return nil
			}
		}
		if len(block) == 0 {
			logger.Debug("skipping empty block")
			continue
		}
		if err := acc.AddFrames(block); err != nil {
			logger.Warn("decode ended early", logging.Error(err))
			return nil
		}
	}
}
