// Package remap builds and applies the static channel mixing matrix used
// to downmix or pass through between an input and output channel layout.
package remap

import "github.com/s3verian/softae/audioformat"

// Matrix is a rectangular mixing matrix: Matrix[out][in] is the weight
// applied to input channel `in` when summing into output channel `out`.
type Matrix [][]float32

// Identity reports whether m is a pass-through (square identity) matrix.
func (m Matrix) Identity() bool {
	for out := range m {
		for in := range m[out] {
			want := float32(0)
			if out == in {
				want = 1
			}
			if m[out][in] != want {
				return false
			}
		}
	}
	return true
}

// Build derives a static mixing matrix from an input and output layout.
// Pass-through when the layouts match; otherwise a small set of named
// downmix rules (ITU-R BS.775 for 5.1->stereo, simple averaging for
// stereo->mono) with an even-split fallback for layouts this table does
// not recognize by name.
func Build(in, out audioformat.Layout) Matrix {
	if sameLayout(in, out) {
		return identityMatrix(len(out))
	}

	if equalSet(in, audioformat.StereoLayout) && equalSet(out, audioformat.MonoLayout) {
		return Matrix{{0.5, 0.5}}
	}

	if equalSet(in, audioformat.Layout51) && equalSet(out, audioformat.StereoLayout) {
		// ITU-R BS.775 downmix coefficients.
		const (
			center = 0.7071068 // 1/sqrt(2)
			surr   = 0.7071068
		)
		// order: FL FR FC LFE BL BR
		return Matrix{
			{1, 0, center, 0, surr, 0},
			{0, 1, center, 0, 0, surr},
		}
	}

	return evenSplit(len(in), len(out))
}

// Apply mixes frameCount frames of src (len(in) channels, interleaved)
// into dst (len(out) channels, interleaved) using m. In-place operation
// (src == dst) is only valid when channels_in == channels_out.
func Apply(m Matrix, src, dst []float32, frameCount int) {
	chIn := 0
	if len(m) > 0 {
		chIn = len(m[0])
	}
	chOut := len(m)
	for f := 0; f < frameCount; f++ {
		srcOff := f * chIn
		dstOff := f * chOut
		for o := 0; o < chOut; o++ {
			var acc float32
			for i := 0; i < chIn; i++ {
				acc += m[o][i] * src[srcOff+i]
			}
			dst[dstOff+o] = acc
		}
	}
}

func identityMatrix(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float32, n)
		m[i][i] = 1
	}
	return m
}

// evenSplit is the fallback for layout pairs this table does not name:
// when the channel counts differ, each output channel receives the
// average of all input channels (weight 1/chIn, or 1 for a mono input);
// when they are equal, channels pass through one-to-one. No particular
// spatial intent is expressed, and total power is not preserved.
// Channel count changes (e.g. mono->stereo, stereo->5.1) funnel through
// here.
func evenSplit(chIn, chOut int) Matrix {
	m := make(Matrix, chOut)
	weight := float32(1)
	if chIn > 1 {
		weight = 1.0 / float32(chIn)
	}
	for o := 0; o < chOut; o++ {
		m[o] = make([]float32, chIn)
		for i := 0; i < chIn; i++ {
			if chOut == chIn {
				if o == i {
					m[o][i] = 1
				}
			} else {
				m[o][i] = weight
			}
		}
	}
	return m
}

func sameLayout(a, b audioformat.Layout) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalSet(a, b audioformat.Layout) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[audioformat.Channel]bool, len(a))
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if !seen[c] {
			return false
		}
	}
	return true
}
