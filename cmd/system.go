package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/zjrosen/chime/internal/audio"
	"github.com/zjrosen/chime/internal/audio/beepbackend"
	"github.com/zjrosen/chime/internal/log"
	"github.com/zjrosen/chime/internal/resolver"
	"github.com/zjrosen/chime/internal/sound"
	"github.com/zjrosen/chime/internal/telemetry"
)

// closeTimeout bounds how long shutdown waits for queued commands.
const closeTimeout = 5 * time.Second

// openOutput is replaced in tests to avoid touching the audio device.
var openOutput = func(rate beep.SampleRate, buffer time.Duration) (beepbackend.Output, func(), error) {
	out, err := beepbackend.OpenSpeaker(rate, buffer)
	if err != nil {
		return nil, nil, err
	}
	return out, beepbackend.CloseSpeaker, nil
}

// startSystem builds and starts the audio subsystem described by cfg.
// The returned stop function drains the queue and releases the device.
func startSystem(ctx context.Context, sink audio.EventSink) (*audio.System, func(), error) {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Options{})
	if err != nil {
		return nil, nil, err
	}

	bundle, err := sound.Open(cfg.Resources.BundleDir)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, nil, err
	}

	rate := beep.SampleRate(cfg.Audio.SampleRate)
	out, closeOutput, err := openOutput(rate, cfg.Audio.Buffer)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, nil, fmt.Errorf("opening audio output: %w", err)
	}
	backend := beepbackend.New(beepbackend.Config{
		Output:      out,
		SampleRate:  rate,
		Bundle:      bundle,
		MaxChannels: cfg.Audio.MaxChannels,
		Quality:     cfg.Audio.ResampleQuality,
	})

	var res audio.Resolver
	if cfg.Resources.Root != "" {
		fr := resolver.NewFileResolver(cfg.Resources.Root, cfg.Resources.ResolveTTL)
		if cfg.Resources.Watch {
			if err := resolver.Watch(ctx, fr); err != nil {
				log.Warn(log.CatResolver, "Not watching resource root", "root", cfg.Resources.Root, "error", err)
			}
		}
		res = fr
	}

	sys := audio.New(audio.Config{
		Resolver:        res,
		Backend:         backend,
		Sink:            sink,
		LoadingSound:    cfg.LoadingSound,
		SyncLoadTimeout: cfg.Loader.SyncTimeout,
		WarnDepth:       cfg.Queue.WarnDepth,
	})
	if err := sys.Start(ctx); err != nil {
		closeOutput()
		_ = shutdownTracing(ctx)
		return nil, nil, err
	}

	stop := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		sys.Close(closeCtx)
		if err := backend.Close(); err != nil {
			log.Debug(log.CatAudio, "Backend close", "error", err)
		}
		closeOutput()
		if err := shutdownTracing(closeCtx); err != nil {
			log.ErrorErr(log.CatTelemetry, "Flushing traces failed", err)
		}
	}
	return sys, stop, nil
}
