package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tone describes a test signal rendered by WriteToneWAV.
type Tone struct {
	// Freq is the sine frequency in Hz. Zero renders silence.
	Freq float64
	// DBFS is the peak amplitude relative to full scale; 0 is full scale.
	DBFS float64
	// Seconds is the signal duration. Zero defaults to one second.
	Seconds float64
	// SampleRate defaults to 44100 when zero.
	SampleRate int
	// Channels defaults to stereo when zero. All channels carry the
	// same signal.
	Channels int
}

func (tone Tone) withDefaults() Tone {
	if tone.Seconds == 0 {
		tone.Seconds = 1
	}
	if tone.SampleRate == 0 {
		tone.SampleRate = 44100
	}
	if tone.Channels == 0 {
		tone.Channels = 2
	}
	return tone
}

// WriteToneWAV renders the tone as a 16-bit PCM WAV file at path.
func WriteToneWAV(t testing.TB, path string, tone Tone) {
	t.Helper()

	tone = tone.withDefaults()
	frames := int(tone.Seconds * float64(tone.SampleRate))
	amplitude := 0.0
	if tone.Freq > 0 {
		amplitude = math.Pow(10, tone.DBFS/20)
	}

	samples := make([]int, 0, frames*tone.Channels)
	for i := 0; i < frames; i++ {
		value := amplitude * math.Sin(2*math.Pi*tone.Freq*float64(i)/float64(tone.SampleRate))
		sample := int(math.Round(value * 32767))
		for ch := 0; ch < tone.Channels; ch++ {
			samples = append(samples, sample)
		}
	}

	writePCMWAV(t, path, samples, tone.SampleRate, tone.Channels)
}

// WriteSilenceWAV writes a silent 16-bit PCM WAV file.
func WriteSilenceWAV(t testing.TB, path string, seconds float64, sampleRate, channels int) {
	t.Helper()

	WriteToneWAV(t, path, Tone{Seconds: seconds, SampleRate: sampleRate, Channels: channels})
}

// WriteTruncatedWAV renders the tone and then cuts the file partway through
// the data chunk so decoding ends early.
func WriteTruncatedWAV(t testing.TB, path string, tone Tone) {
	t.Helper()

	WriteToneWAV(t, path, tone)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	Truncate(t, path, info.Size()/2)
}

func writePCMWAV(t testing.TB, path string, samples []int, sampleRate, channels int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
}
