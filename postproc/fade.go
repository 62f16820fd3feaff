package postproc

import "time"

// Fade is a linear gain ramp from StartGain to EndGain over Duration,
// applied as a per-frame scalar multiply. DoneCB fires exactly once, on
// the call to Process that emits the last ramped frame; the player uses
// this to mark the owning decoder ended and drain the Stream, which is
// how crossfade-out terminates the tail stream.
type Fade struct {
	StartGain float32
	EndGain   float32
	DoneCB    func()

	totalFrames   int64
	elapsedFrames int64
	done          bool
}

// NewFade builds a Fade ramping from start to end over duration, at the
// given sample rate. A duration shorter than one frame (including zero or
// negative) becomes a one-frame ramp: the first frame is scaled by
// StartGain, every later frame by EndGain, and DoneCB fires on the first
// Process call.
func NewFade(sampleRate int, duration time.Duration, start, end float32, doneCB func()) *Fade {
	total := int64(duration.Seconds() * float64(sampleRate))
	if total <= 0 {
		total = 1
	}
	return &Fade{
		StartGain:   start,
		EndGain:     end,
		DoneCB:      doneCB,
		totalFrames: total,
	}
}

// Process applies the ramp in place and fires DoneCB on completion.
func (f *Fade) Process(frames []float32, frameCount, channels int) {
	for i := 0; i < frameCount; i++ {
		if f.elapsedFrames >= f.totalFrames {
			f.applyGain(frames, i, channels, f.EndGain)
			continue
		}
		t := float32(f.elapsedFrames) / float32(f.totalFrames)
		gain := f.StartGain + (f.EndGain-f.StartGain)*t
		f.applyGain(frames, i, channels, gain)
		f.elapsedFrames++
		if f.elapsedFrames >= f.totalFrames && !f.done {
			f.done = true
			if f.DoneCB != nil {
				f.DoneCB()
			}
		}
	}
}

func (f *Fade) applyGain(frames []float32, frameIdx, channels int, gain float32) {
	off := frameIdx * channels
	for c := 0; c < channels; c++ {
		frames[off+c] *= gain
	}
}

// Done reports whether the ramp has completed and fired DoneCB.
func (f *Fade) Done() bool {
	return f.done
}
