package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWriteReadFIFO(t *testing.T) {
	r := New(8)
	n := r.Write([]float32{1, 2, 3})
	require.Equal(t, 3, n)
	require.Equal(t, 3, r.Len())
	require.Equal(t, 5, r.Free())

	dst := make([]float32, 3)
	n = r.Read(dst)
	require.Equal(t, 3, n)
	require.Equal(t, []float32{1, 2, 3}, dst)
	require.Equal(t, 0, r.Len())
}

func TestWriteTruncatesAtCapacity(t *testing.T) {
	r := New(4)
	n := r.Write([]float32{1, 2, 3, 4, 5, 6})
	require.Equal(t, 4, n)
	require.Equal(t, 4, r.Len())
}

func TestFlushEmptiesRing(t *testing.T) {
	r := New(4)
	r.Write([]float32{1, 2, 3})
	r.Flush()
	require.Equal(t, 0, r.Len())
	require.Equal(t, 4, r.Free())
}

func TestWrapsAroundCapacity(t *testing.T) {
	r := New(4)
	r.Write([]float32{1, 2, 3})
	out := make([]float32, 2)
	r.Read(out)
	r.Write([]float32{4, 5})

	dst := make([]float32, 3)
	n := r.Read(dst)
	require.Equal(t, 3, n)
	require.Equal(t, []float32{3, 4, 5}, dst)
}

// TestRapidFIFOOrderPreserved is Testable Property 3 in spirit: every
// byte written per iteration is eventually read back, in order, never
// duplicated or dropped, across arbitrary write/read chunk sizes.
func TestRapidFIFOOrderPreserved(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(4, 64).Draw(rt, "capacity")
		r := New(capacity)

		var written, read []float32
		next := float32(0)
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "doWrite") {
				chunk := rapid.IntRange(0, capacity).Draw(rt, "writeLen")
				src := make([]float32, chunk)
				for j := range src {
					src[j] = next
					next++
				}
				n := r.Write(src)
				written = append(written, src[:n]...)
			} else {
				chunk := rapid.IntRange(0, capacity).Draw(rt, "readLen")
				dst := make([]float32, chunk)
				n := r.Read(dst)
				read = append(read, dst[:n]...)
			}
		}
		// Drain whatever remains so `read` covers everything accepted.
		remaining := make([]float32, r.Len())
		r.Read(remaining)
		read = append(read, remaining...)

		require.Equal(t, written, read)
	})
}
