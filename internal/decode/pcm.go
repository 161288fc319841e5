package decode

import "fmt"

// pcmDivisor returns the normalization divisor for a signed PCM bit
// depth. Unsigned 8-bit WAV samples are recentered by the WAV reader
// before this scale applies.
func pcmDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}
