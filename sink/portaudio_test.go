package sink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// These exercise only the paths that don't require an actual PortAudio
// device or host driver; Open/Write/Drain need real hardware and are
// left to integration testing.

func TestPortAudioSinkHasNoSoftwareVolume(t *testing.T) {
	s := NewPortAudioSink("")
	require.False(t, s.HasVolume())
	require.Error(t, s.SetVolume(0.5))
}

func TestPortAudioSinkDelayAndCloseAreNoOpsBeforeOpen(t *testing.T) {
	s := NewPortAudioSink("nonexistent-device")
	d, err := s.GetDelay()
	require.NoError(t, err)
	require.Zero(t, d)
	require.NoError(t, s.Close())
}
