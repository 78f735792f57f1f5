package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/chime/internal/log"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Resolver finds downloaded copies of sounds. If nil, every sound is
	// loaded from the packaged bundle.
	Resolver Resolver

	// Backend decodes effects. Required.
	Backend Backend

	// Sink receives loaded / load-failed notifications. If nil, they are dropped.
	Sink EventSink
}

// Cache maps URLs to sound assets and owns the loader goroutine.
//
// At most one asset exists per URL. Concurrent requests for a URL that is
// still loading join the in-flight load instead of starting another one.
// Failed assets are never retried.
type Cache struct {
	resolver Resolver
	backend  Backend
	sink     EventSink

	mu     sync.Mutex
	assets map[string]*SoundAsset
	closed bool

	requests *mailbox[*SoundAsset]

	// Lifecycle
	lifeMu sync.Mutex
	done   chan struct{}
}

// NewCache creates a cache. Call Start to begin loading.
func NewCache(cfg CacheConfig) *Cache {
	sink := cfg.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Cache{
		resolver: cfg.Resolver,
		backend:  cfg.Backend,
		sink:     sink,
		assets:   make(map[string]*SoundAsset),
		requests: newMailbox[*SoundAsset](),
	}
}

// Start launches the loader goroutine. Cancelling ctx stops it; requests still
// queued at that point fail with ErrClosed. Calling Start twice is a no-op.
func (c *Cache) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.done != nil {
		return nil
	}
	done := make(chan struct{})
	c.done = done

	context.AfterFunc(ctx, func() {
		c.failPending(c.requests.Close())
	})

	log.SafeGo("audio.loader", func() {
		defer close(done)
		c.loaderLoop(ctx)
	})
	return nil
}

// Close stops the loader, fails queued requests, unloads every loaded effect
// and empties the cache. It is safe to call Close more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.failPending(c.requests.Close())

	c.lifeMu.Lock()
	done := c.done
	c.lifeMu.Unlock()
	if done != nil {
		<-done
	}

	c.mu.Lock()
	assets := c.assets
	c.assets = make(map[string]*SoundAsset)
	c.mu.Unlock()

	unloaded := 0
	for _, a := range assets {
		if h, ok := a.Handle(); ok {
			c.backend.UnloadEffect(h)
			unloaded++
		}
	}
	log.Debug(log.CatLoader, "Sound cache closed", "unloaded", unloaded)
}

// RequestAsync starts loading url if it has never been requested. An already
// loaded asset has its loaded notification sent again.
func (c *Cache) RequestAsync(url string) {
	if url == "" {
		return
	}
	a, created := c.lookupOrCreate(url)
	if created {
		c.enqueue(a)
		return
	}
	if a.Loaded() {
		c.sink.AssetLoaded(url)
	}
}

// RequestSync returns the loaded asset for url, loading it first if needed
// and blocking until the load finishes. A failed asset returns its recorded
// error straight away without another load attempt. If ctx ends first, only
// this caller gives up and gets an ErrInterrupted error.
func (c *Cache) RequestSync(ctx context.Context, url string) (*SoundAsset, error) {
	if url == "" {
		return nil, &LoadError{URL: url, Err: ErrResolve}
	}
	a, created := c.lookupOrCreate(url)
	if created {
		c.enqueue(a)
	}
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Lookup returns the asset for url without creating or loading it.
func (c *Cache) Lookup(url string) (*SoundAsset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assets[url]
	return a, ok
}

// Len returns the number of assets known to the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.assets)
}

// Each calls fn for every asset. fn runs without the cache lock held.
func (c *Cache) Each(fn func(*SoundAsset)) {
	c.mu.Lock()
	snapshot := make([]*SoundAsset, 0, len(c.assets))
	for _, a := range c.assets {
		snapshot = append(snapshot, a)
	}
	c.mu.Unlock()

	for _, a := range snapshot {
		fn(a)
	}
}

func (c *Cache) lookupOrCreate(url string) (*SoundAsset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.assets[url]; ok {
		return a, false
	}
	a := newSoundAsset(url)
	c.assets[url] = a
	return a, true
}

func (c *Cache) enqueue(a *SoundAsset) {
	if _, ok := c.requests.Push(a); !ok {
		c.fail(a, ErrClosed)
	}
}

func (c *Cache) failPending(pending []*SoundAsset) {
	for _, a := range pending {
		c.fail(a, ErrClosed)
	}
}

func (c *Cache) fail(a *SoundAsset, cause error) {
	if a.resolve(0, &LoadError{URL: a.URL, Err: cause}) {
		c.sink.AssetLoadFailed(a.URL)
	}
}

// loaderLoop loads one asset at a time until the request mailbox closes.
func (c *Cache) loaderLoop(ctx context.Context) {
	log.Debug(log.CatLoader, "Loader started")
	for {
		a, ok := c.requests.Pop()
		if !ok {
			log.Debug(log.CatLoader, "Loader stopped")
			return
		}
		c.load(ctx, a)
	}
}

func (c *Cache) load(ctx context.Context, a *SoundAsset) {
	src := locate(c.resolver, a.URL)

	_, span := tracer().Start(ctx, "audio.load", trace.WithAttributes(
		attrURL.String(a.URL),
		attrSource.String(src.Kind.String()),
	))
	defer span.End()

	log.Debug(log.CatLoader, "Loading sound", "url", a.URL, "source", src.String())

	h, err := c.loadEffect(src)
	if err != nil {
		err = &LoadError{URL: a.URL, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
	}
	if !a.resolve(h, err) {
		return
	}

	if err != nil {
		span.SetAttributes(attrOutcome.String("failed"))
		log.Warn(log.CatLoader, "Sound failed to load", "url", a.URL, "error", err)
		c.sink.AssetLoadFailed(a.URL)
		return
	}
	span.SetAttributes(attrOutcome.String("loaded"))
	log.Debug(log.CatLoader, "Sound loaded", "url", a.URL)
	c.sink.AssetLoaded(a.URL)
}

// loadEffect calls the backend, converting a panic into a decode failure.
func (c *Cache) loadEffect(src Source) (h EffectHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: backend panic: %v", ErrDecode, r)
		}
	}()
	h, err = c.backend.LoadEffect(src)
	if err != nil && !errors.Is(err, ErrResolve) && !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return h, err
}
