package decoder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/s3verian/softae/audioformat"
)

// FFmpeg decodes a real media file by piping raw f32le PCM out of an
// ffmpeg subprocess: a pull-based Codec that buffers decoded samples
// into a slice for Data/DataSize.
type FFmpeg struct {
	mu sync.Mutex

	path       string
	sampleRate int
	channels   int
	totalMs    int
	gainLinear float32

	cmd        *exec.Cmd
	pipeReader io.ReadCloser
	readBuf    []byte
	buffered   []float32
	posFrame   int
	status     Status
}

// NewFFmpeg builds a decoder targeting the given output format; ffmpeg
// performs the resample/remix itself via the "ar"/"ac" output args.
func NewFFmpeg(sampleRate, channels int) *FFmpeg {
	return &FFmpeg{
		sampleRate: sampleRate,
		channels:   channels,
		gainLinear: 1.0,
		status:     StatusNoFile,
	}
}

func (d *FFmpeg) Create(file string, startMs int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = file
	if probed, err := probeDurationMs(file); err == nil {
		d.totalMs = probed
	}
	if err := d.startLocked(startMs); err != nil {
		d.status = StatusError
		return fmt.Errorf("decoder: ffmpeg start: %w", err)
	}
	d.status = StatusPlaying
	return nil
}

func (d *FFmpeg) startLocked(startMs int) error {
	if d.cmd != nil {
		d.stopLocked()
	}

	inputArgs := ffmpeg.KwArgs{}
	if startMs > 0 {
		inputArgs["ss"] = fmt.Sprintf("%.3f", float64(startMs)/1000.0)
	}
	outputArgs := ffmpeg.KwArgs{
		"f":   "f32le",
		"c:a": "pcm_f32le",
		"ar":  strconv.Itoa(d.sampleRate),
		"ac":  strconv.Itoa(d.channels),
	}

	pipeReader, pipeWriter := io.Pipe()
	d.pipeReader = pipeReader

	node := ffmpeg.Input(d.path, inputArgs)
	built := node.Output("pipe:", outputArgs).WithOutput(pipeWriter).ErrorToStdOut()
	d.cmd = built.Compile()

	if err := d.cmd.Start(); err != nil {
		return err
	}
	go func() {
		d.cmd.Wait()
		pipeWriter.Close()
	}()
	d.posFrame = startMs * d.sampleRate / 1000
	return nil
}

func (d *FFmpeg) stopLocked() {
	if d.cmd != nil && d.cmd.Process != nil {
		if err := d.cmd.Process.Signal(syscall.SIGINT); err != nil {
			d.cmd.Process.Kill()
		}
	}
	if d.pipeReader != nil {
		d.pipeReader.Close()
	}
	d.cmd = nil
	d.pipeReader = nil
}

func (d *FFmpeg) DataFormat() (channels, sampleRate int, format audioformat.DataFormat) {
	return d.channels, d.sampleRate, audioformat.FLOAT
}

// ReadSamples pulls packetSize samples worth of bytes (4 bytes/sample,
// f32le) off the ffmpeg pipe via a fixed-size io.ReadFull loop.
func (d *FFmpeg) ReadSamples(packetSize int) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipeReader == nil {
		return StatusEnded, nil
	}

	needBytes := packetSize * 4
	if cap(d.readBuf) < needBytes {
		d.readBuf = make([]byte, needBytes)
	}
	buf := d.readBuf[:needBytes]
	n, err := io.ReadFull(d.pipeReader, buf)
	if n > 0 {
		chunk := make([]float32, n/4)
		for i := range chunk {
			bits := binary.LittleEndian.Uint32(buf[i*4:])
			chunk[i] = math.Float32frombits(bits)
		}
		d.buffered = append(d.buffered, chunk...)
		d.posFrame += (n / 4) / d.channels
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		d.status = StatusEnded
		return StatusEnded, nil
	}
	if err != nil {
		d.status = StatusError
		return StatusError, fmt.Errorf("decoder: ffmpeg read: %w", err)
	}
	d.status = StatusPlaying
	return StatusPlaying, nil
}

func (d *FFmpeg) Data(n int) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > len(d.buffered) {
		n = len(d.buffered)
	}
	out := make([]float32, n)
	copy(out, d.buffered[:n])
	d.buffered = d.buffered[n:]
	return out
}

func (d *FFmpeg) DataSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffered)
}

// Seek restarts the ffmpeg process with an "-ss" input seek, since a
// pipe-fed subprocess decoder has no random-access position to rewind.
func (d *FFmpeg) Seek(ms int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffered = d.buffered[:0]
	if err := d.startLocked(ms); err != nil {
		d.status = StatusError
	}
}

func (d *FFmpeg) TotalTime() int { return d.totalMs }
func (d *FFmpeg) CanSeek() bool  { return true }

func (d *FFmpeg) ReplayGain() float32 { return d.gainLinear }

func (d *FFmpeg) SkipNext() {}

// CacheLevel has no meaningful notion of readahead for a live subprocess
// pipe; report full once streaming has started.
func (d *FFmpeg) CacheLevel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipeReader == nil {
		return 0
	}
	return 100
}

func (d *FFmpeg) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *FFmpeg) SetStatus(st Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = st
}

func (d *FFmpeg) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

// probeDurationMs shells out to ffprobe via ffmpeg-go's Probe helper and
// reads format.duration (seconds, as a string) out of the JSON result.
func probeDurationMs(file string) (int, error) {
	raw, err := ffmpeg.Probe(file)
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, err
	}
	return int(seconds * 1000), nil
}

var _ Codec = (*FFmpeg)(nil)
