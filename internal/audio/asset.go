package audio

import (
	"context"
	"fmt"
	"sync"
)

// SoundAsset is the cache record for one effect URL.
//
// The load fields (handle, loaded, failed, err) are written once by the loader
// goroutine under mu. The playback fields (channel, hasChannel, volume) belong
// to the command worker and are never touched by the loader.
type SoundAsset struct {
	URL string

	mu     sync.Mutex
	cond   *sync.Cond
	handle EffectHandle
	loaded bool
	failed bool
	err    error

	channel    ChannelID
	hasChannel bool
	volume     float64
}

func newSoundAsset(url string) *SoundAsset {
	a := &SoundAsset{URL: url, volume: 1}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Loaded reports whether the asset finished loading successfully.
func (a *SoundAsset) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// Failed reports whether loading failed.
func (a *SoundAsset) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Handle returns the backend handle; ok is false until the asset has loaded.
func (a *SoundAsset) Handle() (EffectHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle, a.loaded
}

// Err returns the failure recorded for the asset, or nil.
func (a *SoundAsset) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Channel returns the pooled channel most recently started for this asset.
func (a *SoundAsset) Channel() (ChannelID, bool) {
	return a.channel, a.hasChannel
}

// Volume returns the last volume applied to the asset's channel.
func (a *SoundAsset) Volume() float64 {
	return a.volume
}

// resolve records the terminal load outcome and wakes every waiter.
// Later calls are ignored so the transition happens exactly once.
func (a *SoundAsset) resolve(h EffectHandle, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded || a.failed {
		return false
	}
	if err != nil {
		a.failed = true
		a.err = err
	} else {
		a.loaded = true
		a.handle = h
	}
	a.cond.Broadcast()
	return true
}

// wait blocks until the asset is loaded or failed, or ctx is done.
// A cancelled wait fails only this caller; the load itself carries on.
func (a *SoundAsset) wait(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed {
		return a.err
	}
	if a.loaded {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		a.mu.Lock()
		a.cond.Broadcast()
		a.mu.Unlock()
	})
	defer stop()

	for !a.loaded && !a.failed {
		if err := ctx.Err(); err != nil {
			return &LoadError{URL: a.URL, Err: fmt.Errorf("%w: %w", ErrInterrupted, err)}
		}
		a.cond.Wait()
	}
	if a.failed {
		return a.err
	}
	return nil
}
