// Package ebur128 measures integrated loudness per ITU-R BS.1770-4 and
// EBU R 128.
//
// Interleaved sample frames are K-weighted per channel, accumulated into
// 400 ms gating blocks at 75% overlap, and gated twice at finalization:
// an absolute gate at -70 LUFS drops silence, then a relative gate 10 LU
// below the mean of the surviving blocks drops quiet passages. The
// integrated loudness is derived from the mean energy of the blocks that
// pass both gates; the same block set feeds the accumulated energy
// statistic stored alongside each measurement.
package ebur128

import (
	"errors"
	"fmt"
	"math"
)

const (
	// absoluteGate is the block loudness below which audio counts as
	// silence (LUFS).
	absoluteGate = -70.0
	// relativeGateOffset is subtracted from the abs-gated mean loudness
	// to form the second gate (LU).
	relativeGateOffset = 10.0
	// loudnessOffset cancels the K-weighting gain at 1 kHz so a 997 Hz
	// reference tone reads at its true level.
	loudnessOffset = -0.691

	minSampleRate = 16
	maxSampleRate = 2822400

	subBlocksPerBlock = 4
)

// Accumulator folds interleaved PCM frames into gating blocks and
// reports integrated loudness. It is not safe for concurrent use; each
// decoded stream owns one instance.
type Accumulator struct {
	channels int
	rate     int
	weights  []float64
	filters  []chain

	subLen   int       // samples per 100 ms sub-block
	subPos   int       // frames into the current sub-block
	subCount int       // completed sub-blocks
	current  []float64 // per-channel running sum of squares
	ring     [][subBlocksPerBlock]float64

	blocks []float64 // weighted mean-square energy per 400 ms block
}

// New returns an accumulator for a stream with the given channel count
// and sample rate.
func New(channels, rate int) (*Accumulator, error) {
	if channels < 1 {
		return nil, errors.New("ebur128: channel count must be positive")
	}
	if rate < minSampleRate || rate > maxSampleRate {
		return nil, fmt.Errorf("ebur128: sample rate %d out of range [%d, %d]", rate, minSampleRate, maxSampleRate)
	}

	a := &Accumulator{
		channels: channels,
		rate:     rate,
		weights:  channelWeights(channels),
		filters:  make([]chain, channels),
		subLen:   (rate + 5) / 10,
		current:  make([]float64, channels),
		ring:     make([][subBlocksPerBlock]float64, channels),
	}
	for c := range a.filters {
		a.filters[c] = newChain(rate)
	}
	return a, nil
}

// Channels returns the channel count the accumulator was built for.
func (a *Accumulator) Channels() int { return a.channels }

// AddFrames feeds interleaved samples in [-1, 1]. The slice length must
// be a multiple of the channel count.
func (a *Accumulator) AddFrames(samples []float32) error {
	if len(samples)%a.channels != 0 {
		return fmt.Errorf("ebur128: %d samples not divisible by %d channels", len(samples), a.channels)
	}
	for i := 0; i < len(samples); i += a.channels {
		for c := 0; c < a.channels; c++ {
			y := a.filters[c].process(float64(samples[i+c]))
			a.current[c] += y * y
		}
		a.subPos++
		if a.subPos == a.subLen {
			a.completeSubBlock()
		}
	}
	return nil
}

// completeSubBlock rolls the finished 100 ms sums into the ring and,
// once four sub-blocks exist, emits one 400 ms gating block energy.
func (a *Accumulator) completeSubBlock() {
	idx := a.subCount % subBlocksPerBlock
	for c := range a.current {
		a.ring[c][idx] = a.current[c]
		a.current[c] = 0
	}
	a.subCount++
	a.subPos = 0

	if a.subCount < subBlocksPerBlock {
		return
	}
	denom := float64(subBlocksPerBlock * a.subLen)
	var z float64
	for c := 0; c < a.channels; c++ {
		sum := a.ring[c][0] + a.ring[c][1] + a.ring[c][2] + a.ring[c][3]
		z += a.weights[c] * (sum / denom)
	}
	a.blocks = append(a.blocks, z)
}

// GlobalLoudness returns the integrated loudness in LUFS of everything
// fed so far, or negative infinity when no block passes the gates.
// Trailing audio shorter than a full block is ignored.
func (a *Accumulator) GlobalLoudness() float64 {
	count, sum, ok := a.gatedBlocks()
	if !ok {
		return math.Inf(-1)
	}
	return blockLoudness(sum / float64(count))
}

// GatedBlockStats returns the number of blocks passing both gates and
// the sum of their weighted energies. ok is false when no block passed,
// which callers treat as "no energy data".
func (a *Accumulator) GatedBlockStats() (count uint64, energy float64, ok bool) {
	return a.gatedBlocks()
}

func (a *Accumulator) gatedBlocks() (uint64, float64, bool) {
	var absCount uint64
	var absSum float64
	for _, z := range a.blocks {
		if blockLoudness(z) > absoluteGate {
			absSum += z
			absCount++
		}
	}
	if absCount == 0 {
		return 0, 0, false
	}

	relativeGate := blockLoudness(absSum/float64(absCount)) - relativeGateOffset

	var count uint64
	var sum float64
	for _, z := range a.blocks {
		if l := blockLoudness(z); l > absoluteGate && l > relativeGate {
			sum += z
			count++
		}
	}
	if count == 0 {
		return 0, 0, false
	}
	return count, sum, true
}

// blockLoudness converts a weighted mean-square energy into LUFS.
// Zero energy yields negative infinity, which every gate rejects.
func blockLoudness(z float64) float64 {
	return loudnessOffset + 10*math.Log10(z)
}

// channelWeights returns the BS.1770-4 weights for the default channel
// ordering. Front channels contribute at unity, surrounds at +1.5 dB,
// and the fourth slot of layouts wider than five channels is treated as
// LFE and excluded.
func channelWeights(channels int) []float64 {
	switch channels {
	case 4:
		return []float64{1, 1, 1.41, 1.41}
	case 5:
		return []float64{1, 1, 1, 1.41, 1.41}
	}
	weights := make([]float64, channels)
	for i := range weights {
		switch {
		case i < 3:
			weights[i] = 1
		case i == 3:
			weights[i] = 0
		case i == 4 || i == 5:
			weights[i] = 1.41
		}
	}
	return weights
}
