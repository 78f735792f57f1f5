package audio

import (
	"context"
	"time"

	"github.com/zjrosen/chime/internal/log"
)

// Config wires a complete audio subsystem.
type Config struct {
	Resolver Resolver
	Backend  Backend
	Sink     EventSink

	// LoadingSound is the raw resource name of the loading indicator.
	LoadingSound string

	// SyncLoadTimeout bounds a play command's wait for its sound. Zero waits forever.
	SyncLoadTimeout time.Duration

	// WarnDepth is the command backlog that triggers a warning. Zero disables it.
	WarnDepth int
}

// System is the cache, engine and queue started and stopped together.
// Producers talk to Queue; the other parts are exposed for inspection.
type System struct {
	Cache  *Cache
	Engine *Engine
	Queue  *Queue

	cancel context.CancelFunc
}

// New wires a System. Call Start before enqueueing commands.
func New(cfg Config) *System {
	cache := NewCache(CacheConfig{
		Resolver: cfg.Resolver,
		Backend:  cfg.Backend,
		Sink:     cfg.Sink,
	})
	engine := NewEngine(EngineConfig{
		Cache:           cache,
		Backend:         cfg.Backend,
		Resolver:        cfg.Resolver,
		LoadingSound:    cfg.LoadingSound,
		SyncLoadTimeout: cfg.SyncLoadTimeout,
	})
	queue := NewQueue(QueueConfig{
		Handler:   engine,
		WarnDepth: cfg.WarnDepth,
	})
	return &System{Cache: cache, Engine: engine, Queue: queue}
}

// Start launches the loader and the command worker.
func (s *System) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if err := s.Cache.Start(ctx); err != nil {
		return err
	}
	return s.Queue.Start(ctx)
}

// Close drains outstanding commands (bounded by ctx), stops the worker,
// silences every player and unloads the cache. A worker still waiting on a
// load when ctx ends is interrupted.
func (s *System) Close(ctx context.Context) {
	if err := s.Queue.Drain(ctx); err != nil {
		log.Debug(log.CatQueue, "Audio queue not drained before close", "error", err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.Queue.Stop()
	s.Engine.Close()
	s.Cache.Close()
	log.Info(log.CatAudio, "Audio subsystem closed")
}
