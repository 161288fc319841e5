package ebur128_test

import (
	"math"
	"testing"

	"loudscan/internal/ebur128"
)

// sineFrames generates an interleaved sine tone with the same value on
// every channel.
func sineFrames(freq float64, rate int, seconds float64, amplitude float64, channels int) []float32 {
	total := int(float64(rate) * seconds)
	out := make([]float32, 0, total*channels)
	for i := 0; i < total; i++ {
		v := float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			out = append(out, v)
		}
	}
	return out
}

// dbfs converts a decibel level to linear amplitude.
func dbfs(db float64) float64 {
	return math.Pow(10, db/20)
}

func measureTone(t *testing.T, rate, channels int, frames []float32) *ebur128.Accumulator {
	t.Helper()
	acc, err := ebur128.New(channels, rate)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := acc.AddFrames(frames); err != nil {
		t.Fatalf("AddFrames returned error: %v", err)
	}
	return acc
}

// EBU Tech 3341 case 1: a 997 Hz stereo sine at -23 dBFS per channel
// must read -23.0 LUFS.
func TestStereoSineCalibration(t *testing.T) {
	acc := measureTone(t, 48000, 2, sineFrames(997, 48000, 5, dbfs(-23), 2))
	if got := acc.GlobalLoudness(); math.Abs(got-(-23.0)) > 0.1 {
		t.Fatalf("integrated loudness = %.4f, want -23.0 +/- 0.1", got)
	}
}

func TestCalibrationHoldsAcrossSampleRates(t *testing.T) {
	for _, rate := range []int{44100, 32000, 22050} {
		acc := measureTone(t, rate, 2, sineFrames(997, rate, 5, dbfs(-23), 2))
		if got := acc.GlobalLoudness(); math.Abs(got-(-23.0)) > 0.1 {
			t.Errorf("rate %d: integrated loudness = %.4f, want -23.0 +/- 0.1", rate, got)
		}
	}
}

func TestMonoReadsThreeDecibelsLower(t *testing.T) {
	acc := measureTone(t, 48000, 1, sineFrames(997, 48000, 5, dbfs(-23), 1))
	if got := acc.GlobalLoudness(); math.Abs(got-(-26.01)) > 0.1 {
		t.Fatalf("mono loudness = %.4f, want about -26.01", got)
	}
}

func TestSurroundWeightingExcludesLFE(t *testing.T) {
	// Six channels: three front at unity, slot 3 dropped as LFE, two
	// surrounds at 1.41. Energy sum 5.82x the per-channel mean square.
	acc := measureTone(t, 48000, 6, sineFrames(997, 48000, 2, dbfs(-23), 6))
	want := -23.0 + 10*math.Log10(3+2*1.41)
	if got := acc.GlobalLoudness(); math.Abs(got-want) > 0.2 {
		t.Fatalf("6ch loudness = %.4f, want %.4f +/- 0.2", got, want)
	}
}

func TestSilenceYieldsNoGatedBlocks(t *testing.T) {
	acc := measureTone(t, 48000, 2, make([]float32, 48000*2*2))
	if _, _, ok := acc.GatedBlockStats(); ok {
		t.Fatal("expected no gated blocks for silence")
	}
	if got := acc.GlobalLoudness(); !math.IsInf(got, -1) {
		t.Fatalf("expected -Inf loudness for silence, got %v", got)
	}
}

func TestInputShorterThanOneBlockYieldsNoStats(t *testing.T) {
	acc := measureTone(t, 48000, 2, sineFrames(997, 48000, 0.3, dbfs(-23), 2))
	if _, _, ok := acc.GatedBlockStats(); ok {
		t.Fatal("expected no blocks for 300ms of audio")
	}
}

func TestAbsoluteGateDropsSilentPassages(t *testing.T) {
	frames := sineFrames(997, 48000, 2, dbfs(-23), 2)
	frames = append(frames, make([]float32, 48000*2*2)...)
	frames = append(frames, sineFrames(997, 48000, 2, dbfs(-23), 2)...)

	acc := measureTone(t, 48000, 2, frames)
	if got := acc.GlobalLoudness(); math.Abs(got-(-23.0)) > 0.5 {
		t.Fatalf("gapped loudness = %.4f, want close to -23.0", got)
	}
}

func TestRelativeGateDropsQuietPassages(t *testing.T) {
	frames := sineFrames(997, 48000, 3, dbfs(-23), 2)
	frames = append(frames, sineFrames(997, 48000, 6, dbfs(-60), 2)...)

	acc := measureTone(t, 48000, 2, frames)
	got := acc.GlobalLoudness()
	if math.Abs(got-(-23.0)) > 0.5 {
		t.Fatalf("gated loudness = %.4f, want close to -23.0 despite quiet tail", got)
	}
}

func TestGatedBlockStatsCountAndGrowth(t *testing.T) {
	two := measureTone(t, 48000, 2, sineFrames(997, 48000, 2, dbfs(-23), 2))
	count, energy, ok := two.GatedBlockStats()
	if !ok {
		t.Fatal("expected gated blocks for steady tone")
	}
	// 20 sub-blocks of 100ms yield 17 overlapping 400ms blocks.
	if count != 17 {
		t.Fatalf("block count = %d, want 17", count)
	}

	four := measureTone(t, 48000, 2, sineFrames(997, 48000, 4, dbfs(-23), 2))
	_, energy4, ok := four.GatedBlockStats()
	if !ok {
		t.Fatal("expected gated blocks for longer tone")
	}
	if energy4 <= energy*1.5 {
		t.Fatalf("energy should accumulate with duration: 2s=%v 4s=%v", energy, energy4)
	}
}

func TestAddFramesRejectsRaggedSlice(t *testing.T) {
	acc, err := ebur128.New(2, 48000)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := acc.AddFrames(make([]float32, 3)); err == nil {
		t.Fatal("expected error for slice not divisible by channel count")
	}
}

func TestNewRejectsInvalidStreams(t *testing.T) {
	if _, err := ebur128.New(0, 48000); err == nil {
		t.Fatal("expected error for zero channels")
	}
	if _, err := ebur128.New(2, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := ebur128.New(2, 4000000); err == nil {
		t.Fatal("expected error for absurd sample rate")
	}
}

func TestAddFramesAcrossManySmallChunks(t *testing.T) {
	frames := sineFrames(997, 48000, 5, dbfs(-23), 2)
	acc, err := ebur128.New(2, 48000)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	// Feed in uneven chunks to cross sub-block boundaries mid-call.
	for len(frames) > 0 {
		n := 1234
		if n > len(frames) {
			n = len(frames)
		}
		if n%2 != 0 {
			n--
		}
		if err := acc.AddFrames(frames[:n]); err != nil {
			t.Fatalf("AddFrames returned error: %v", err)
		}
		frames = frames[n:]
	}
	if got := acc.GlobalLoudness(); math.Abs(got-(-23.0)) > 0.1 {
		t.Fatalf("chunked loudness = %.4f, want -23.0 +/- 0.1", got)
	}
}
