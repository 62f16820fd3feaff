package pulsewire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Connection represents a connection to the PulseAudio server.
type Connection struct {
	conn          net.Conn
	mu            sync.Mutex
	nextTag       uint32
	serverVersion uint32
}

// Connect connects to the PulseAudio server and performs the handshake.
func Connect(appName string) (*Connection, error) {
	socketPath := findSocket()
	if socketPath == "" {
		return nil, fmt.Errorf("pulsewire: could not find PulseAudio socket")
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("pulsewire: dial %s: %w", socketPath, err)
	}

	c := &Connection{conn: conn}

	if err := c.auth(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.setClientName(appName); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) ServerVersion() uint32 {
	return c.serverVersion
}

func findSocket() string {
	if server := os.Getenv("PULSE_SERVER"); server != "" {
		if len(server) > 5 && server[:5] == "unix:" {
			return server[5:]
		}
		if server[0] == '/' {
			return server
		}
	}

	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		path := filepath.Join(runtimeDir, "pulse", "native")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	uid := strconv.Itoa(os.Getuid())
	path := filepath.Join("/run", "user", uid, "pulse", "native")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func (c *Connection) auth() error {
	cookie := ReadCookie()

	tb := NewTagBuilder()
	tb.AddU32(ProtocolVersion)
	tb.AddArbitrary(cookie)

	tag := c.nextTag
	c.nextTag++
	frame := BuildCommand(CmdAuth, tag, tb.Bytes())

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("pulsewire: auth write: %w", err)
	}

	replyCmd, _, tp, err := c.readReply()
	if err != nil {
		return fmt.Errorf("pulsewire: auth read: %w", err)
	}
	if replyCmd == CmdError {
		code, _ := tp.ReadU32()
		return fmt.Errorf("pulsewire: auth rejected (error code %d)", code)
	}
	if replyCmd != CmdReply {
		return fmt.Errorf("pulsewire: auth unexpected response %d", replyCmd)
	}

	serverVersion, err := tp.ReadU32()
	if err != nil {
		return fmt.Errorf("pulsewire: auth parse version: %w", err)
	}
	c.serverVersion = serverVersion
	return nil
}

func (c *Connection) setClientName(appName string) error {
	tb := NewTagBuilder()
	tb.AddPropList(map[string]string{"application.name": appName})

	tag := c.nextTag
	c.nextTag++
	frame := BuildCommand(CmdSetClientName, tag, tb.Bytes())

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("pulsewire: set_client_name write: %w", err)
	}

	replyCmd, _, _, err := c.readReply()
	if err != nil {
		return fmt.Errorf("pulsewire: set_client_name read: %w", err)
	}
	if replyCmd != CmdReply {
		return fmt.Errorf("pulsewire: set_client_name rejected")
	}
	return nil
}

// WriteData writes raw PCM data on a stream channel.
func (c *Connection) WriteData(channel uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const maxChunk = 65536
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxChunk {
			chunk = data[:maxChunk]
		}
		data = data[len(chunk):]

		desc := BuildDescriptor(uint32(len(chunk)), channel)
		if _, err := c.conn.Write(desc); err != nil {
			return fmt.Errorf("pulsewire: write data descriptor: %w", err)
		}
		if _, err := c.conn.Write(chunk); err != nil {
			return fmt.Errorf("pulsewire: write data payload: %w", err)
		}
	}
	return nil
}

func (c *Connection) readReply() (cmd uint32, tag uint32, tp *TagParser, err error) {
	desc := make([]byte, DescriptorSize)
	if _, err = io.ReadFull(c.conn, desc); err != nil {
		return 0, 0, nil, fmt.Errorf("pulsewire: read descriptor: %w", err)
	}

	length := binary.BigEndian.Uint32(desc[0:4])
	channel := binary.BigEndian.Uint32(desc[4:8])
	if length == 0 {
		return 0, 0, NewTagParser(nil), nil
	}

	payload := make([]byte, length)
	if _, err = io.ReadFull(c.conn, payload); err != nil {
		return 0, 0, nil, fmt.Errorf("pulsewire: read payload (%d bytes): %w", length, err)
	}

	if channel != ControlChannel {
		return 0, 0, NewTagParser(nil), nil
	}

	tp = NewTagParser(payload)
	cmd, err = tp.ReadU32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pulsewire: parse command: %w", err)
	}
	tag, err = tp.ReadU32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pulsewire: parse tag: %w", err)
	}
	return cmd, tag, tp, nil
}

// DrainReplies reads and discards frames until a REPLY or ERROR control
// message arrives, skipping interleaved async notifications.
func (c *Connection) DrainReplies() (cmd uint32, tag uint32, tp *TagParser, err error) {
	for {
		desc := make([]byte, DescriptorSize)
		if _, err = io.ReadFull(c.conn, desc); err != nil {
			return 0, 0, nil, fmt.Errorf("pulsewire: drain read descriptor: %w", err)
		}

		length := binary.BigEndian.Uint32(desc[0:4])
		channel := binary.BigEndian.Uint32(desc[4:8])
		if length == 0 {
			continue
		}

		payload := make([]byte, length)
		if _, err = io.ReadFull(c.conn, payload); err != nil {
			return 0, 0, nil, fmt.Errorf("pulsewire: drain read payload: %w", err)
		}
		if channel != ControlChannel {
			continue
		}

		tp = NewTagParser(payload)
		cmd, err = tp.ReadU32()
		if err != nil {
			return 0, 0, nil, err
		}
		tag, err = tp.ReadU32()
		if err != nil {
			return 0, 0, nil, err
		}
		if cmd == CmdReply || cmd == CmdError {
			return cmd, tag, tp, nil
		}
	}
}

// CreatePlaybackStream creates a new playback stream for the given
// sample spec and returns its server-assigned channel id.
func (c *Connection) CreatePlaybackStream(format uint8, channels uint8, rate uint32) (channel uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := c.nextTag
	c.nextTag++

	positions := make([]uint8, channels)
	if channels == 1 {
		positions[0] = ChannelMono
	} else if channels >= 2 {
		positions[0] = ChannelFrontLeft
		positions[1] = ChannelFrontRight
	}

	tb := NewTagBuilder()
	tb.AddSampleSpec(format, channels, rate)
	tb.AddChannelMap(channels, positions)
	tb.AddU32(0xFFFFFFFF) // sink_index: default
	tb.AddStringNull()    // sink_name: default

	tb.AddU32(0xFFFFFFFF) // maxlength
	tb.AddBool(false)     // corked
	tb.AddU32(0xFFFFFFFF) // tlength
	tb.AddU32(0)          // prebuf
	tb.AddU32(0xFFFFFFFF) // minreq

	tb.AddU32(0) // sync_id
	tb.AddCVolume(channels, 0x10000)

	tb.AddBool(false) // no_remap
	tb.AddBool(false) // no_remix
	tb.AddBool(false) // fix_format
	tb.AddBool(false) // fix_rate
	tb.AddBool(false) // fix_channels
	tb.AddBool(false) // no_move
	tb.AddBool(false) // variable_rate

	tb.AddBool(false) // muted
	tb.AddBool(true)  // adjust_latency
	tb.AddPropList(map[string]string{"media.name": "softae"})

	tb.AddBool(true)  // volume_set
	tb.AddBool(false) // early_requests

	tb.AddBool(false) // muted_set
	tb.AddBool(false) // dont_inhibit_auto_suspend
	tb.AddBool(false) // fail_on_suspend
	tb.AddBool(false) // relative_volume
	tb.AddBool(false) // passthrough

	tb.AddU8(1) // n_formats
	tb.buf = append(tb.buf, TagFormatInfo)
	tb.buf = append(tb.buf, TagU8, 1) // encoding = PA_ENCODING_PCM
	tb.AddPropList(map[string]string{})

	frame := BuildCommand(CmdCreatePlaybackStream, tag, tb.Bytes())
	if _, err := c.conn.Write(frame); err != nil {
		return 0, fmt.Errorf("pulsewire: create_playback_stream write: %w", err)
	}

	replyCmd, _, tp, err := c.DrainReplies()
	if err != nil {
		return 0, fmt.Errorf("pulsewire: create_playback_stream read: %w", err)
	}
	if replyCmd == CmdError {
		code, _ := tp.ReadU32()
		return 0, fmt.Errorf("pulsewire: create_playback_stream error (code %d)", code)
	}

	streamIndex, err := tp.ReadU32()
	if err != nil {
		return 0, fmt.Errorf("pulsewire: parse stream_index: %w", err)
	}
	if _, err := tp.ReadU32(); err != nil { // sink_input_index
		return 0, fmt.Errorf("pulsewire: parse sink_input_index: %w", err)
	}
	if _, err := tp.ReadU32(); err != nil { // missing
		return 0, fmt.Errorf("pulsewire: parse missing: %w", err)
	}
	return streamIndex, nil
}
