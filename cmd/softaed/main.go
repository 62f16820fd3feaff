// softaed is a demo CLI wiring SoftAE (engine.Engine) and PAPlayer
// (player.Player) over a real or null audio sink.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/s3verian/softae/config"
	"github.com/s3verian/softae/decoder"
	"github.com/s3verian/softae/engine"
	"github.com/s3verian/softae/player"
	"github.com/s3verian/softae/sink"
)

type cliCallback struct {
	log *log.Logger
	pl  *player.Player
}

func (c *cliCallback) OnPlaybackStarted() { c.log.Info("playback started") }
func (c *cliCallback) OnPlaybackStopped() { c.log.Info("playback stopped") }
func (c *cliCallback) OnPlaybackPaused()  { c.log.Info("playback paused") }
func (c *cliCallback) OnPlaybackResumed() { c.log.Info("playback resumed") }
func (c *cliCallback) OnPlaybackSeek(newMs, deltaMs int) {
	c.log.Info("seek", "new_ms", newMs, "delta_ms", deltaMs)
}
func (c *cliCallback) OnPlaybackSpeedChanged(speed float64) {
	c.log.Info("speed changed", "speed", speed)
}
func (c *cliCallback) OnQueueNextItem() {
	// A real host looks up the next playlist entry here; this demo has
	// none queued, so it always reports queue failure.
	c.pl.OnNothingToQueueNotify()
}

func main() {
	settings := config.Default()
	fs := config.FlagSet(&settings)
	configPath := fs.String("config", "", "path to a YAML settings file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		settings = loaded
		// CLI flags override the file when both are given: re-parse
		// over the loaded settings.
		fs = config.FlagSet(&settings)
		fs.Parse(os.Args[1:])
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if len(fs.Args()) == 0 {
		logger.Fatal("usage: softaed [flags] <file> [file...]")
	}

	var sk sink.Sink
	switch settings.Sink {
	case "portaudio":
		sk = sink.NewPortAudioSink("")
	case "pulse":
		sk = sink.NewPulseSink()
	default:
		sk = sink.NewNullSink()
	}

	eng := engine.New(engine.Config{
		Sink:            sk,
		Desired:         settings.DesiredFormat(),
		FramesPerPeriod: settings.FramesPerPeriod,
		Logger:          logger.WithPrefix("engine"),
	})
	if err := eng.Open(); err != nil {
		logger.Fatal("open sink", "err", err)
	}
	go eng.Run()
	defer eng.Stop()

	factory := func(file string) decoder.Codec {
		return decoder.NewFFmpeg(eng.ActualFormat().SampleRate, eng.ActualFormat().Channels)
	}

	cb := &cliCallback{log: logger.WithPrefix("player")}
	pl := player.New(eng, factory, cb)
	cb.pl = pl
	pl.SetCrossfade(settings.Crossfade)

	files := fs.Args()
	if err := pl.OpenFile(files[0]); err != nil {
		logger.Fatal("open file", "file", files[0], "err", err)
	}
	for _, f := range files[1:] {
		if err := pl.QueueNextFile(f); err != nil {
			logger.Error("queue file", "file", f, "err", err)
		}
	}

	// Demo CLI: block for a fixed five minutes, whatever the length of
	// the queued files. A real host would drive this off OnPlaybackStopped
	// instead.
	time.Sleep(5 * time.Minute)
}
