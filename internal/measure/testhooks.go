package measure

import (
	"io"

	"loudscan/internal/decode"
)

// SetProbeForTests overrides the container probe during tests.
func SetProbeForTests(fn func(io.ReadSeeker) (decode.Reader, error)) func() {
	previous := probeContainer
	probeContainer = fn
	return func() {
		probeContainer = previous
	}
}
