// Package config loads Settings from a YAML file and CLI flags, and
// applies them to a running engine.Engine, following the one-flag-per-field
// pattern common across the rest of this stack, bound with pflag/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/engine"
)

// Settings is the on-disk/CLI configuration surface: sample rate,
// period size, crossfade duration, and seek step.
type Settings struct {
	SampleRate      int           `yaml:"sample_rate"`
	Channels        int           `yaml:"channels"`
	FramesPerPeriod int           `yaml:"frames_per_period"`
	Crossfade       time.Duration `yaml:"crossfade"`
	SeekForward     time.Duration `yaml:"seek_forward"`
	SeekBack        time.Duration `yaml:"seek_back"`
	Sink            string        `yaml:"sink"` // "portaudio", "pulse", "null"
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the out-of-the-box settings a standalone player would
// start with.
func Default() Settings {
	return Settings{
		SampleRate:      48000,
		Channels:        2,
		FramesPerPeriod: 1024,
		Crossfade:       0,
		SeekForward:     10 * time.Second,
		SeekBack:        10 * time.Second,
		Sink:            "null",
		LogLevel:        "info",
	}
}

// Load reads path as YAML into Default()'s base, returning the base
// unchanged (and no error) if path is empty.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// FlagSet registers one pflag per Settings field, bound directly into s.
func FlagSet(s *Settings) *pflag.FlagSet {
	fs := pflag.NewFlagSet("softaed", pflag.ContinueOnError)
	fs.IntVar(&s.SampleRate, "sample-rate", s.SampleRate, "output sample rate, Hz")
	fs.IntVar(&s.Channels, "channels", s.Channels, "output channel count")
	fs.IntVar(&s.FramesPerPeriod, "frames-per-period", s.FramesPerPeriod, "engine mix period size, frames")
	fs.DurationVar(&s.Crossfade, "crossfade", s.Crossfade, "crossfade duration between tracks")
	fs.DurationVar(&s.SeekForward, "seek-forward", s.SeekForward, "seek-forward step")
	fs.DurationVar(&s.SeekBack, "seek-back", s.SeekBack, "seek-back step")
	fs.StringVar(&s.Sink, "sink", s.Sink, "output backend: portaudio, pulse, null")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "log level: debug, info, warn, error")
	return fs
}

// DesiredFormat builds the AudioFormat engine.Config expects from s.
func (s Settings) DesiredFormat() audioformat.Format {
	return audioformat.Format{
		SampleRate:      s.SampleRate,
		Channels:        s.Channels,
		ChannelLayout:   audioformat.DefaultLayout(s.Channels),
		DataFormat:      audioformat.FLOAT,
		FramesPerPeriod: s.FramesPerPeriod,
	}
}

// ApplyTo pushes a reconfigure request derived from s at an already
// running engine, e.g. after a settings file reload.
func (s Settings) ApplyTo(e *engine.Engine) {
	e.RequestReconfigure(s.DesiredFormat())
}
