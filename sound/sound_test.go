package sound

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixIntoAddsAndAdvancesCursor(t *testing.T) {
	snd := New("click", []float32{1, 1, 0.5, 0.5}, 2, 48000)
	pb := NewPlayback(snd)

	dst := make([]float32, 4)
	n := pb.MixInto(dst, 2, 2)
	require.Equal(t, 2, n)
	require.Equal(t, []float32{1, 1, 0.5, 0.5}, dst)
	require.True(t, pb.Done())
	require.Equal(t, 0, pb.Remaining())
}

func TestMixIntoSumsOntoExistingContent(t *testing.T) {
	snd := New("click", []float32{1, 1}, 2, 48000)
	pb := NewPlayback(snd)

	dst := []float32{0.25, 0.25}
	pb.MixInto(dst, 1, 2)
	require.Equal(t, []float32{1.25, 1.25}, dst)
}

func TestMixIntoClampsToRemaining(t *testing.T) {
	snd := New("click", []float32{1, 1, 1, 1}, 2, 48000)
	pb := NewPlayback(snd)

	dst := make([]float32, 10)
	n := pb.MixInto(dst, 5, 2)
	require.Equal(t, 2, n) // only 2 frames available
	require.True(t, pb.Done())
}

func TestFrameCountDividesByChannels(t *testing.T) {
	snd := New("click", make([]float32, 12), 3, 48000)
	require.Equal(t, 4, snd.FrameCount())
}
