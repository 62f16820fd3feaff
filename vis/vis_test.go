package vis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishSnapshotRoundTrip(t *testing.T) {
	b := NewBuffer()
	require.Empty(t, b.Snapshot())

	b.Publish([]float32{1, 2, 3})
	require.Equal(t, []float32{1, 2, 3}, b.Snapshot())
}

func TestPublishTruncatesAtMaxSamples(t *testing.T) {
	b := NewBuffer()
	big := make([]float32, MaxSamples+100)
	for i := range big {
		big[i] = float32(i)
	}
	b.Publish(big)
	require.Len(t, b.Snapshot(), MaxSamples)
}

func TestSpectrumOfSilenceIsZero(t *testing.T) {
	b := NewBuffer()
	b.Publish(make([]float32, MaxSamples))

	mags := b.Spectrum()
	require.Len(t, mags, MaxSamples/2+1)
	for _, m := range mags {
		require.InDelta(t, 0, m, 1e-9)
	}
}

func TestSpectrumEmptyBeforeAnyPublish(t *testing.T) {
	b := NewBuffer()
	require.Nil(t, b.Spectrum())
}

// TestSnapshotNeverTornByConcurrentPublish guards the double-buffering
// design note: a reader's Snapshot always reflects one complete publish,
// never a mix of two.
func TestSnapshotNeverTornByConcurrentPublish(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v := float32(i % 7)
			b.Publish([]float32{v, v, v, v})
		}
	}()

	for i := 0; i < 1000; i++ {
		s := b.Snapshot()
		if len(s) == 0 {
			continue
		}
		first := s[0]
		for _, v := range s {
			require.Equal(t, first, v)
		}
	}
	wg.Wait()
}
