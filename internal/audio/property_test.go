package audio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// ============================================================================
// Property-Based Tests for Queue, Cache and MusicSlot Invariants
// ============================================================================

// TestProperty_QueuePreservesPerProducerOrder verifies that commands from each
// producer are dispatched in the order that producer enqueued them.
func TestProperty_QueuePreservesPerProducerOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		producers := rapid.IntRange(1, 5).Draw(t, "producers")
		counts := make([]int, producers)
		for p := range counts {
			counts[p] = rapid.IntRange(0, 40).Draw(t, fmt.Sprintf("count-%d", p))
		}

		h := &recordingHandler{}
		q := NewQueue(QueueConfig{Handler: h})
		require.NoError(t, q.Start(context.Background()))
		defer q.Stop()

		var wg sync.WaitGroup
		for p, n := range counts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range n {
					q.LoadSound(fmt.Sprintf("p%d/%d", p, i))
				}
			}()
		}
		wg.Wait()
		require.NoError(t, q.Drain(context.Background()))

		next := make([]int, producers)
		total := 0
		for _, call := range h.snapshot() {
			var p, i int
			_, err := fmt.Sscanf(strings.TrimPrefix(call, "load "), "p%d/%d", &p, &i)
			require.NoError(t, err)
			if i != next[p] {
				t.Fatalf("producer %d: got command %d, expected %d", p, i, next[p])
			}
			next[p]++
			total++
		}
		for p, n := range counts {
			require.Equal(t, n, next[p], "producer %d lost commands", p)
		}
		require.Equal(t, sum(counts), total)
	})
}

// TestProperty_ConcurrentRequestsLoadOnce verifies that any mix of concurrent
// sync and async requests for one URL performs a single backend load and
// hands every sync caller the same outcome.
func TestProperty_ConcurrentRequestsLoadOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		callers := rapid.IntRange(1, 12).Draw(t, "callers")
		syncMask := rapid.SliceOfN(rapid.Bool(), callers, callers).Draw(t, "sync")
		fail := rapid.Bool().Draw(t, "fail")

		backend := newFakeBackend()
		if fail {
			backend.failLoads["resources/u"] = ErrDecode
		}
		c := NewCache(CacheConfig{Resolver: noFiles, Backend: backend})
		require.NoError(t, c.Start(context.Background()))
		defer c.Close()

		type outcome struct {
			asset *SoundAsset
			err   error
		}
		results := make(chan outcome, callers)
		var wg sync.WaitGroup
		for _, isSync := range syncMask {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !isSync {
					c.RequestAsync("u")
					return
				}
				a, err := c.RequestSync(context.Background(), "u")
				results <- outcome{a, err}
			}()
		}
		wg.Wait()
		close(results)

		// Settle async-only runs before counting loads.
		_, _ = c.RequestSync(context.Background(), "u")

		require.Equal(t, 1, backend.loads("resources/u"))
		var first *outcome
		for r := range results {
			if first == nil {
				first = &r
				continue
			}
			require.Same(t, first.asset, r.asset)
			require.Equal(t, first.err, r.err)
		}
		if first != nil {
			require.Equal(t, fail, first.err != nil)
		}
	})
}

// TestProperty_SlotPlayerOnlyWhenNotStopped verifies that a MusicSlot holds a
// player exactly when it is not Stopped, for any operation sequence.
func TestProperty_SlotPlayerOnlyWhenNotStopped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		backend := newFakeBackend()
		backend.failStreams["resources/bad"] = ErrDecode
		s := newTestSlot(backend)
		urls := []string{"a", "b", "bad"}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := range steps {
			url := rapid.SampledFrom(urls).Draw(t, "url-"+strconv.Itoa(i))
			switch op := rapid.IntRange(0, 6).Draw(t, "op-"+strconv.Itoa(i)); op {
			case 0:
				_ = s.Load(url)
			case 1:
				_ = s.Play(url, 1, rapid.Bool().Draw(t, "loop-"+strconv.Itoa(i)))
			case 2:
				s.Stop()
			case 3:
				s.Pause()
			case 4:
				s.AppPause()
			case 5:
				s.AppResume()
			case 6:
				s.SetVolume(0.5)
			}

			_, hasPlayer := s.Player()
			if hasPlayer != (s.State() != SlotStopped) {
				t.Fatalf("step %d: state %s with player=%t", i, s.State(), hasPlayer)
			}
			if s.State() == SlotLoading {
				t.Fatalf("step %d: slot left in loading state", i)
			}
		}
	})
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
