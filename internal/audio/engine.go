package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/chime/internal/log"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Cache resolves pooled effects. Required.
	Cache *Cache

	// Backend plays effects and streams. Required.
	Backend Backend

	// Resolver locates background music files. If nil, music is read from
	// the packaged bundle.
	Resolver Resolver

	// LoadingSound is the raw resource name played for LoadingSoundURL.
	// Defaults to LoadingSoundURL.
	LoadingSound string

	// SyncLoadTimeout bounds how long a play command waits for its sound to
	// load. Zero waits indefinitely.
	SyncLoadTimeout time.Duration
}

// Engine is the playback state machine. All methods must be called from a
// single goroutine, normally the Queue worker.
type Engine struct {
	cache       *Cache
	backend     Backend
	syncTimeout time.Duration

	music     *MusicSlot
	indicator *MusicSlot

	// explicitPaused holds effects paused by a pause command.
	// appPaused holds effects paused because the app went to the background.
	explicitPaused map[string]struct{}
	appPaused      map[string]struct{}
}

// NewEngine creates an engine with empty music and loading slots.
func NewEngine(cfg EngineConfig) *Engine {
	loading := cfg.LoadingSound
	if loading == "" {
		loading = LoadingSoundURL
	}
	resolver := cfg.Resolver
	return &Engine{
		cache:       cfg.Cache,
		backend:     cfg.Backend,
		syncTimeout: cfg.SyncLoadTimeout,
		music: newMusicSlot("music", cfg.Backend, func(url string) Source {
			return locate(resolver, url)
		}),
		indicator: newMusicSlot("loading", cfg.Backend, func(string) Source {
			return rawSource(loading)
		}),
		explicitPaused: make(map[string]struct{}),
		appPaused:      make(map[string]struct{}),
	}
}

// Music returns the background music slot.
func (e *Engine) Music() *MusicSlot { return e.music }

// Indicator returns the loading-indicator slot.
func (e *Engine) Indicator() *MusicSlot { return e.indicator }

// LoadSound starts loading url in the background.
func (e *Engine) LoadSound(url string) {
	e.cache.RequestAsync(url)
}

// PlaySound plays url on a pooled channel, loading it first if needed.
// LoadingSoundURL plays the looping loading indicator instead.
func (e *Engine) PlaySound(ctx context.Context, url string, volume float64, loop bool) error {
	if url == LoadingSoundURL {
		return e.indicator.Play(url, volume, true)
	}

	a, err := e.resolve(ctx, url)
	if err != nil {
		return err
	}
	h, _ := a.Handle()
	ch, err := e.backend.PlayChannel(h, volume, loop)
	if err != nil {
		return &LoadError{URL: url, Err: err}
	}
	a.channel = ch
	a.hasChannel = true
	a.volume = volume
	delete(e.explicitPaused, url)
	delete(e.appPaused, url)
	log.Debug(log.CatAudio, "Sound playing", "url", url, "channel", int(ch), "volume", volume, "loop", loop)
	return nil
}

// PlayBackgroundMusic plays url in the music slot, resuming rather than
// reloading when the slot already holds it.
func (e *Engine) PlayBackgroundMusic(url string, volume float64, loop bool) error {
	return e.music.Play(url, volume, loop)
}

// LoadBackgroundMusic prepares url in the music slot without playing it.
func (e *Engine) LoadBackgroundMusic(url string) error {
	return e.music.Load(url)
}

// PauseSound pauses the slot or effect addressed by url.
func (e *Engine) PauseSound(ctx context.Context, url string) error {
	if slot := e.slotFor(url); slot != nil {
		slot.Pause()
		return nil
	}
	a, err := e.resolve(ctx, url)
	if err != nil {
		return err
	}
	if a.hasChannel {
		e.backend.PauseChannel(a.channel)
		e.explicitPaused[url] = struct{}{}
		delete(e.appPaused, url)
	}
	return nil
}

// StopSound stops the slot or effect addressed by url.
func (e *Engine) StopSound(ctx context.Context, url string) error {
	if slot := e.slotFor(url); slot != nil {
		slot.Stop()
		return nil
	}
	a, err := e.resolve(ctx, url)
	if err != nil {
		return err
	}
	if a.hasChannel {
		e.backend.StopChannel(a.channel)
		a.hasChannel = false
	}
	delete(e.explicitPaused, url)
	delete(e.appPaused, url)
	return nil
}

// SetVolume changes the volume of the slot or effect addressed by url.
func (e *Engine) SetVolume(ctx context.Context, url string, volume float64) error {
	if slot := e.slotFor(url); slot != nil {
		slot.SetVolume(volume)
		return nil
	}
	a, err := e.resolve(ctx, url)
	if err != nil {
		return err
	}
	a.volume = volume
	if a.hasChannel {
		e.backend.SetChannelVolume(a.channel, volume)
	}
	return nil
}

// AppPaused pauses everything that is playing because the app went to the
// background. Effects paused explicitly beforehand are left alone.
func (e *Engine) AppPaused() {
	e.music.AppPause()
	e.indicator.AppPause()

	e.cache.Each(func(a *SoundAsset) {
		if !a.hasChannel {
			return
		}
		if _, paused := e.explicitPaused[a.URL]; paused {
			return
		}
		e.backend.PauseChannel(a.channel)
		e.appPaused[a.URL] = struct{}{}
	})
	log.Debug(log.CatAudio, "App paused", "effects", len(e.appPaused))
}

// AppResumed resumes what AppPaused paused.
func (e *Engine) AppResumed() {
	e.music.AppResume()
	e.indicator.AppResume()

	for url := range e.appPaused {
		if a, ok := e.cache.Lookup(url); ok && a.hasChannel {
			e.backend.ResumeChannel(a.channel)
		}
		delete(e.appPaused, url)
	}
	log.Debug(log.CatAudio, "App resumed")
}

// Close stops both music slots and every tracked effect channel.
func (e *Engine) Close() {
	e.music.Stop()
	e.indicator.Stop()
	e.cache.Each(func(a *SoundAsset) {
		if a.hasChannel {
			e.backend.StopChannel(a.channel)
			a.hasChannel = false
		}
	})
	clear(e.explicitPaused)
	clear(e.appPaused)
}

// slotFor returns the music slot addressed by url, or nil for an effect.
func (e *Engine) slotFor(url string) *MusicSlot {
	switch {
	case url == LoadingSoundURL:
		return e.indicator
	case e.music.Holds(url):
		return e.music
	default:
		return nil
	}
}

// resolve returns the loaded asset for url, waiting for a load if needed.
// A sound that cannot be loaded yields ErrStaleHandle.
func (e *Engine) resolve(ctx context.Context, url string) (*SoundAsset, error) {
	if a, ok := e.cache.Lookup(url); ok && a.Loaded() {
		return a, nil
	}

	if e.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.syncTimeout)
		defer cancel()
	}

	a, err := e.cache.RequestSync(ctx, url)
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStaleHandle, err)
	}
	return a, nil
}
