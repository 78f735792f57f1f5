package audio

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/chime/internal/log"
)

// Handler executes dispatched commands. *Engine is the production handler.
type Handler interface {
	LoadSound(url string)
	PlaySound(ctx context.Context, url string, volume float64, loop bool) error
	PlayBackgroundMusic(url string, volume float64, loop bool) error
	LoadBackgroundMusic(url string) error
	PauseSound(ctx context.Context, url string) error
	StopSound(ctx context.Context, url string) error
	SetVolume(ctx context.Context, url string, volume float64) error
	AppPaused()
	AppResumed()
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Handler executes commands. Required.
	Handler Handler

	// WarnDepth logs a warning each time the backlog grows to this many
	// commands. Zero disables the warning.
	WarnDepth int
}

// Queue serialises audio commands from any goroutine onto one worker.
//
// Producer methods never block and never fail. Commands are dispatched in
// the order they were enqueued. A command that waits for a sound to load
// holds up every command behind it, so a later command on the same URL always
// sees the loaded sound.
type Queue struct {
	box       *mailbox[Command]
	handler   Handler
	warnDepth int

	// Lifecycle
	mu   sync.Mutex
	done chan struct{}
}

// NewQueue creates a queue. Call Start to begin dispatching.
func NewQueue(cfg QueueConfig) *Queue {
	return &Queue{
		box:       newMailbox[Command](),
		handler:   cfg.Handler,
		warnDepth: cfg.WarnDepth,
	}
}

// LoadSound queues a background load of url.
func (q *Queue) LoadSound(url string) { q.Enqueue(LoadCommand(url)) }

// PlaySound queues playback of url on a pooled channel.
func (q *Queue) PlaySound(url string, volume float64, loop bool) {
	q.Enqueue(PlaySoundCommand(url, volume, loop))
}

// PlayBackgroundMusic queues playback of url as background music.
func (q *Queue) PlayBackgroundMusic(url string, volume float64, loop bool) {
	q.Enqueue(PlayMusicCommand(url, volume, loop))
}

// LoadBackgroundMusic queues preparation of url as background music.
func (q *Queue) LoadBackgroundMusic(url string) { q.Enqueue(LoadMusicCommand(url)) }

// PauseSound queues a pause of url.
func (q *Queue) PauseSound(url string) { q.Enqueue(PauseCommand(url)) }

// StopSound queues a stop of url.
func (q *Queue) StopSound(url string) { q.Enqueue(StopCommand(url)) }

// SetVolume queues a volume change for url.
func (q *Queue) SetVolume(url string, volume float64) {
	q.Enqueue(SetVolumeCommand(url, volume))
}

// OnAppPause queues the app-backgrounded notification.
func (q *Queue) OnAppPause() { q.Enqueue(AppPausedCommand()) }

// OnAppResume queues the app-foregrounded notification.
func (q *Queue) OnAppResume() { q.Enqueue(AppResumedCommand()) }

// Enqueue adds cmd to the back of the queue. Commands enqueued after Stop are
// dropped.
func (q *Queue) Enqueue(cmd Command) {
	depth, ok := q.box.Push(cmd)
	if !ok {
		log.Debug(log.CatQueue, "Dropped command after stop", "command", cmd.String())
		return
	}
	if q.warnDepth > 0 && depth == q.warnDepth {
		log.Warn(log.CatQueue, "Audio command backlog is growing", "depth", depth)
	}
}

// Len returns the number of commands waiting to be dispatched.
func (q *Queue) Len() int { return q.box.Len() }

// Drain blocks until every command enqueued before the call has been
// dispatched, or ctx ends.
func (q *Queue) Drain(ctx context.Context) error {
	barrier := make(chan error, 1)
	if _, ok := q.box.Push(Command{Kind: cmdBarrier, barrier: barrier}); !ok {
		return ErrClosed
	}
	select {
	case err := <-barrier:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the worker goroutine. Cancelling ctx interrupts the worker
// after the command in progress. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done != nil {
		return nil
	}
	done := make(chan struct{})
	q.done = done

	context.AfterFunc(ctx, func() {
		q.discard(q.box.Close())
	})

	log.SafeGo("audio.queue", func() {
		defer close(done)
		q.run(ctx)
	})
	return nil
}

// Stop ends the worker after the command in progress and discards the rest.
// It is safe to call Stop multiple times or before Start.
func (q *Queue) Stop() {
	q.discard(q.box.Close())

	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (q *Queue) discard(left []Command) {
	dropped := 0
	for _, cmd := range left {
		if cmd.Kind == cmdBarrier {
			cmd.barrier <- ErrClosed
			continue
		}
		dropped++
	}
	if dropped > 0 {
		log.Info(log.CatQueue, "Discarded pending audio commands", "count", dropped)
	}
}

func (q *Queue) run(ctx context.Context) {
	log.Debug(log.CatQueue, "Command worker started")
	for {
		cmd, ok := q.box.Pop()
		if !ok {
			log.Debug(log.CatQueue, "Command worker stopped")
			return
		}
		q.dispatch(ctx, cmd)
	}
}

// dispatch runs one command. Errors and panics are logged and never stop the worker.
func (q *Queue) dispatch(ctx context.Context, cmd Command) {
	if cmd.Kind == cmdBarrier {
		cmd.barrier <- nil
		return
	}

	ctx, span := tracer().Start(ctx, "audio.dispatch", trace.WithAttributes(
		attrCommand.String(cmd.Kind.String()),
		attrURL.String(cmd.URL),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			log.Error(log.CatQueue, "Audio command panicked", "command", cmd.String(), "panic", fmt.Sprint(r))
		}
	}()

	if err := q.apply(ctx, cmd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		log.Warn(log.CatQueue, "Audio command failed", "command", cmd.String(), "error", err)
	}
}

func (q *Queue) apply(ctx context.Context, cmd Command) error {
	h := q.handler
	switch cmd.Kind {
	case CmdLoad:
		h.LoadSound(cmd.URL)
		return nil
	case CmdPlaySound:
		return h.PlaySound(ctx, cmd.URL, cmd.Volume, cmd.Loop)
	case CmdPlayMusic:
		return h.PlayBackgroundMusic(cmd.URL, cmd.Volume, cmd.Loop)
	case CmdLoadMusic:
		return h.LoadBackgroundMusic(cmd.URL)
	case CmdPause:
		return h.PauseSound(ctx, cmd.URL)
	case CmdStop:
		return h.StopSound(ctx, cmd.URL)
	case CmdSetVolume:
		return h.SetVolume(ctx, cmd.URL, cmd.Volume)
	case CmdAppPaused:
		h.AppPaused()
		return nil
	case CmdAppResumed:
		h.AppResumed()
		return nil
	default:
		return fmt.Errorf("unknown command kind %v", cmd.Kind)
	}
}
