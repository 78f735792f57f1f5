package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/chime/internal/mocks"
)

const (
	eventuallyWait = time.Second
	eventuallyTick = 5 * time.Millisecond
)

func newTestCache(t *testing.T, backend *fakeBackend, resolver Resolver, sink EventSink) *Cache {
	t.Helper()
	c := NewCache(CacheConfig{Resolver: resolver, Backend: backend, Sink: sink})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	return c
}

func TestCache_RequestSyncLoadsFromBundle(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCache(t, backend, noFiles, nil)

	a, err := c.RequestSync(context.Background(), "click.wav")
	require.NoError(t, err)
	require.True(t, a.Loaded())
	require.False(t, a.Failed())
	h, ok := a.Handle()
	require.True(t, ok)
	require.NotZero(t, h)
	require.Equal(t, 1, backend.loads("resources/click.wav"))

	again, err := c.RequestSync(context.Background(), "click.wav")
	require.NoError(t, err)
	require.Same(t, a, again)
	require.Equal(t, 1, backend.loads("resources/click.wav"), "loaded asset is not loaded twice")
	require.Equal(t, 1, c.Len())
}

func TestCache_RequestSyncPrefersResolvedFile(t *testing.T) {
	backend := newFakeBackend()
	resolver := mocks.NewMockResolver(t)
	resolver.EXPECT().Resolve("boom.ogg").Return("/cache/boom.ogg", true).Once()

	c := newTestCache(t, backend, resolver, nil)

	_, err := c.RequestSync(context.Background(), "boom.ogg")
	require.NoError(t, err)
	require.Equal(t, 1, backend.loads("/cache/boom.ogg"))
	require.Zero(t, backend.loads("resources/boom.ogg"))
	require.Contains(t, backend.callLog(), "LoadEffect file:/cache/boom.ogg")
}

func TestCache_FailedAssetIsNotRetried(t *testing.T) {
	backend := newFakeBackend()
	backend.failLoads["resources/bad.wav"] = errors.New("corrupt header")
	sink := mocks.NewMockEventSink(t)
	sink.EXPECT().AssetLoadFailed("bad.wav").Return().Once()

	c := newTestCache(t, backend, noFiles, sink)

	_, err := c.RequestSync(context.Background(), "bad.wav")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDecode)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "bad.wav", loadErr.URL)

	_, err2 := c.RequestSync(context.Background(), "bad.wav")
	require.ErrorIs(t, err2, ErrDecode)
	require.Equal(t, 1, backend.loads("resources/bad.wav"), "failed asset must not hit the backend again")

	// Asking again in the background neither reloads nor repeats the failure event.
	c.RequestAsync("bad.wav")
	require.Equal(t, 1, backend.loads("resources/bad.wav"))

	a, ok := c.Lookup("bad.wav")
	require.True(t, ok)
	require.True(t, a.Failed())
	require.False(t, a.Loaded())
	require.Equal(t, err, a.Err())
}

func TestCache_MissingResourceKeepsResolveError(t *testing.T) {
	backend := newFakeBackend()
	backend.failLoads["resources/nope.wav"] = ErrResolve
	c := newTestCache(t, backend, noFiles, nil)

	_, err := c.RequestSync(context.Background(), "nope.wav")
	require.ErrorIs(t, err, ErrResolve)
	require.NotErrorIs(t, err, ErrDecode)
}

func TestCache_BackendPanicFailsAssetAndLoaderSurvives(t *testing.T) {
	backend := newFakeBackend()
	backend.panicLoads["resources/evil.wav"] = true
	c := newTestCache(t, backend, noFiles, nil)

	_, err := c.RequestSync(context.Background(), "evil.wav")
	require.ErrorIs(t, err, ErrDecode)

	a, err := c.RequestSync(context.Background(), "good.wav")
	require.NoError(t, err)
	require.True(t, a.Loaded())
}

func TestCache_InterruptedWaitDoesNotDisturbLoad(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = gate
	c := newTestCache(t, backend, noFiles, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.RequestSync(ctx, "slow.wav")
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrInterrupted)
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled wait did not return")
	}

	close(gate)
	a, err := c.RequestSync(context.Background(), "slow.wav")
	require.NoError(t, err)
	require.True(t, a.Loaded())
	require.Equal(t, 1, backend.loads("resources/slow.wav"))
}

func TestCache_ConcurrentRequestsJoinOneLoad(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = gate
	c := newTestCache(t, backend, noFiles, nil)

	const callers = 8
	results := make([]*SoundAsset, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := c.RequestSync(context.Background(), "shared.wav")
			assert.NoError(t, err)
			results[i] = a
		}()
	}
	c.RequestAsync("shared.wav")

	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, a := range results {
		require.Same(t, results[0], a)
	}
	require.Equal(t, 1, backend.loads("resources/shared.wav"))
}

func TestCache_RequestAsyncEmitsLoadedAgain(t *testing.T) {
	backend := newFakeBackend()
	sink := &recordingSink{}
	c := newTestCache(t, backend, noFiles, sink)

	c.RequestAsync("ping.wav")
	require.Eventually(t, func() bool {
		loaded, _ := sink.snapshot()
		return len(loaded) == 1
	}, eventuallyWait, eventuallyTick)

	c.RequestAsync("ping.wav")
	loaded, failed := sink.snapshot()
	require.Equal(t, []string{"ping.wav", "ping.wav"}, loaded)
	require.Empty(t, failed)
	require.Equal(t, 1, backend.loads("resources/ping.wav"))
}

func TestCache_EmptyURL(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCache(t, backend, noFiles, nil)

	c.RequestAsync("")
	require.Zero(t, c.Len())

	_, err := c.RequestSync(context.Background(), "")
	require.ErrorIs(t, err, ErrResolve)
	require.Zero(t, backend.totalLoads())
}

func TestCache_CloseFailsQueuedRequestsAndUnloads(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	started := make(chan string, 4)
	backend.gate = gate
	backend.loadStarted = started
	sink := &recordingSink{}

	c := NewCache(CacheConfig{Resolver: noFiles, Backend: backend, Sink: sink})
	require.NoError(t, c.Start(context.Background()))

	c.RequestAsync("first.wav")
	require.Equal(t, "resources/first.wav", <-started)
	c.RequestAsync("second.wav")

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	require.Eventually(t, func() bool {
		_, failed := sink.snapshot()
		return len(failed) == 1
	}, eventuallyWait, eventuallyTick)
	_, failed := sink.snapshot()
	require.Equal(t, []string{"second.wav"}, failed)

	close(gate)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the in-flight load finished")
	}

	require.Zero(t, backend.loads("resources/second.wav"))
	require.True(t, backend.isUnloaded(EffectHandle(1)), "loaded effect is unloaded on close")
	require.Zero(t, c.Len())

	_, err := c.RequestSync(context.Background(), "late.wav")
	require.ErrorIs(t, err, ErrClosed)

	c.Close()
}

func TestCache_StartTwiceIsNoop(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCache(t, backend, noFiles, nil)
	require.NoError(t, c.Start(context.Background()))

	_, err := c.RequestSync(context.Background(), "a.wav")
	require.NoError(t, err)
}

func TestCache_EachVisitsEveryAsset(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCache(t, backend, noFiles, nil)

	for _, url := range []string{"a.wav", "b.wav", "c.wav"} {
		_, err := c.RequestSync(context.Background(), url)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	c.Each(func(a *SoundAsset) { seen[a.URL] = true })
	require.Equal(t, map[string]bool{"a.wav": true, "b.wav": true, "c.wav": true}, seen)
}
