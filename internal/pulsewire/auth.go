package pulsewire

import (
	"os"
	"path/filepath"
)

const cookieSize = 256

// ReadCookie reads the PulseAudio authentication cookie. Search order:
// $PULSE_COOKIE -> ~/.config/pulse/cookie -> ~/.pulse-cookie. Falls back
// to 256 zero bytes (PipeWire accepts anonymous connections).
func ReadCookie() []byte {
	if path := os.Getenv("PULSE_COOKIE"); path != "" {
		if data, err := os.ReadFile(path); err == nil && len(data) >= cookieSize {
			return data[:cookieSize]
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return make([]byte, cookieSize)
	}

	path := filepath.Join(home, ".config", "pulse", "cookie")
	if data, err := os.ReadFile(path); err == nil && len(data) >= cookieSize {
		return data[:cookieSize]
	}

	path = filepath.Join(home, ".pulse-cookie")
	if data, err := os.ReadFile(path); err == nil && len(data) >= cookieSize {
		return data[:cookieSize]
	}

	return make([]byte, cookieSize)
}
