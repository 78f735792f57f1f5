// Package beepbackend plays audio through gopxl/beep. Effects are decoded
// fully into memory and played on pooled channels; music is streamed from its
// decoder.
package beepbackend

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/zjrosen/chime/internal/audio"
	"github.com/zjrosen/chime/internal/log"
)

const (
	defaultSampleRate  = beep.SampleRate(44100)
	defaultMaxChannels = 16
	defaultQuality     = 4
)

// Config configures a Backend.
type Config struct {
	// Output receives every playing streamer. Required.
	Output Output

	// SampleRate of Output. Sources at other rates are resampled.
	SampleRate beep.SampleRate

	// Bundle holds the packaged assets. Bundle sources fail with ErrResolve when nil.
	Bundle fs.FS

	// MaxChannels caps concurrent effect channels. The oldest channel is
	// stopped to make room.
	MaxChannels int

	// Quality is the beep resampling quality, 1 to 64.
	Quality int
}

var _ audio.Backend = (*Backend)(nil)

// Backend implements audio.Backend.
type Backend struct {
	out         Output
	rate        beep.SampleRate
	bundle      fs.FS
	maxChannels int
	quality     int

	mu       sync.Mutex
	nextID   int
	effects  map[audio.EffectHandle]*beep.Buffer
	channels map[audio.ChannelID]*channel
	order    []audio.ChannelID
	streams  map[audio.StreamHandle]*stream
}

type channel struct {
	effect audio.EffectHandle
	ctrl   *beep.Ctrl
	volume *effects.Volume
	done   atomic.Bool
}

type stream struct {
	src     audio.Source
	format  beep.Format
	decoder beep.StreamSeekCloser
	looper  *looper
	volume  float64
	loop    bool

	// Set while attached to the output.
	ctrl  *beep.Ctrl
	vol   *effects.Volume
	ended *atomic.Bool
}

// New creates a backend writing to cfg.Output.
func New(cfg Config) *Backend {
	b := &Backend{
		out:         cfg.Output,
		rate:        cfg.SampleRate,
		bundle:      cfg.Bundle,
		maxChannels: cfg.MaxChannels,
		quality:     cfg.Quality,
		effects:     make(map[audio.EffectHandle]*beep.Buffer),
		channels:    make(map[audio.ChannelID]*channel),
		streams:     make(map[audio.StreamHandle]*stream),
	}
	if b.rate <= 0 {
		b.rate = defaultSampleRate
	}
	if b.maxChannels <= 0 {
		b.maxChannels = defaultMaxChannels
	}
	if b.quality <= 0 {
		b.quality = defaultQuality
	}
	return b
}

func (b *Backend) id() int {
	b.nextID++
	return b.nextID
}

// resample converts s to the output rate when needed.
func (b *Backend) resample(from beep.SampleRate, s beep.Streamer) beep.Streamer {
	if from == b.rate {
		return s
	}
	return beep.Resample(b.quality, from, b.rate, s)
}

// LoadEffect decodes src fully into memory.
func (b *Backend) LoadEffect(src audio.Source) (audio.EffectHandle, error) {
	dec, format, err := b.open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = dec.Close() }()

	buf := beep.NewBuffer(beep.Format{SampleRate: b.rate, NumChannels: 2, Precision: 2})
	buf.Append(b.resample(format.SampleRate, dec))
	if err := dec.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", audio.ErrDecode, src, err)
	}
	if buf.Len() == 0 {
		return 0, fmt.Errorf("%w: %s has no samples", audio.ErrDecode, src)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	h := audio.EffectHandle(b.id())
	b.effects[h] = buf
	log.Debug(log.CatAudio, "Effect decoded", "source", src.String(), "samples", buf.Len(), "handle", int(h))
	return h, nil
}

// UnloadEffect frees the decoded samples of h. Channels already playing it
// run to completion.
func (b *Backend) UnloadEffect(h audio.EffectHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.effects, h)
}

// PlayChannel starts h on a new channel, stopping the oldest channel when
// the pool is full.
func (b *Backend) PlayChannel(h audio.EffectHandle, volume float64, loop bool) (audio.ChannelID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.effects[h]
	if !ok {
		return 0, fmt.Errorf("%w: effect %d", audio.ErrStaleHandle, h)
	}

	b.pruneLocked()
	for len(b.order) >= b.maxChannels {
		oldest := b.order[0]
		log.Debug(log.CatAudio, "Channel pool full, stopping oldest", "channel", int(oldest))
		b.stopChannelLocked(oldest)
	}

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if loop {
		s = &looper{s: buf.Streamer(0, buf.Len()), loop: true}
	}
	ch := &channel{effect: h, volume: newVolume(s, volume)}
	ch.ctrl = &beep.Ctrl{Streamer: ch.volume}

	id := audio.ChannelID(b.id())
	b.channels[id] = ch
	b.order = append(b.order, id)
	b.out.Play(beep.Seq(ch.ctrl, beep.Callback(func() { ch.done.Store(true) })))
	return id, nil
}

// pruneLocked forgets channels that finished on their own.
func (b *Backend) pruneLocked() {
	live := b.order[:0]
	for _, id := range b.order {
		if b.channels[id].done.Load() {
			delete(b.channels, id)
			continue
		}
		live = append(live, id)
	}
	b.order = live
}

func (b *Backend) stopChannelLocked(id audio.ChannelID) {
	ch, ok := b.channels[id]
	if !ok {
		return
	}
	b.out.Lock()
	ch.ctrl.Streamer = nil
	b.out.Unlock()
	ch.done.Store(true)
	delete(b.channels, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// StopChannel stops ch.
func (b *Backend) StopChannel(ch audio.ChannelID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopChannelLocked(ch)
}

// PauseChannel pauses ch in place.
func (b *Backend) PauseChannel(ch audio.ChannelID) { b.setPaused(ch, true) }

// ResumeChannel resumes a paused ch.
func (b *Backend) ResumeChannel(ch audio.ChannelID) { b.setPaused(ch, false) }

func (b *Backend) setPaused(id audio.ChannelID, paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	if !ok {
		return
	}
	b.out.Lock()
	ch.ctrl.Paused = paused
	b.out.Unlock()
}

// SetChannelVolume changes the volume of ch.
func (b *Backend) SetChannelVolume(id audio.ChannelID, volume float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	if !ok {
		return
	}
	b.out.Lock()
	setVolume(ch.volume, volume)
	b.out.Unlock()
}

// LiveChannels returns the number of channels that have not finished.
func (b *Backend) LiveChannels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	return len(b.order)
}

// PrepareStream opens src for streaming without starting it.
func (b *Backend) PrepareStream(src audio.Source) (audio.StreamHandle, error) {
	dec, format, err := b.open(src)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p := audio.StreamHandle(b.id())
	b.streams[p] = &stream{
		src:     src,
		format:  format,
		decoder: dec,
		looper:  &looper{s: dec},
		volume:  1,
	}
	return p, nil
}

// PlayStream starts or resumes p. A stopped or finished stream restarts
// from the beginning.
func (b *Backend) PlayStream(p audio.StreamHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[p]
	if !ok {
		return fmt.Errorf("%w: stream %d", audio.ErrStaleHandle, p)
	}

	if st.ctrl != nil && !st.ended.Load() {
		b.out.Lock()
		st.ctrl.Paused = false
		b.out.Unlock()
		return nil
	}

	b.out.Lock()
	err := st.decoder.Seek(0)
	st.looper.err = nil
	st.looper.loop = st.loop
	b.out.Unlock()
	if err != nil {
		return fmt.Errorf("rewind %s: %w", st.src, err)
	}

	ended := &atomic.Bool{}
	st.vol = newVolume(b.resample(st.format.SampleRate, st.looper), st.volume)
	st.ctrl = &beep.Ctrl{Streamer: st.vol}
	st.ended = ended
	b.out.Play(beep.Seq(st.ctrl, beep.Callback(func() { ended.Store(true) })))
	return nil
}

// PauseStream pauses p in place.
func (b *Backend) PauseStream(p audio.StreamHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[p]
	if !ok || st.ctrl == nil {
		return
	}
	b.out.Lock()
	st.ctrl.Paused = true
	b.out.Unlock()
}

// StopStream detaches p from the output. The next PlayStream starts over.
func (b *Backend) StopStream(p audio.StreamHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.streams[p]; ok {
		b.detachLocked(st)
	}
}

func (b *Backend) detachLocked(st *stream) {
	if st.ctrl == nil {
		return
	}
	b.out.Lock()
	st.ctrl.Streamer = nil
	b.out.Unlock()
	st.ended.Store(true)
	st.ctrl = nil
	st.vol = nil
}

// ReleaseStream stops p and closes its decoder.
func (b *Backend) ReleaseStream(p audio.StreamHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[p]
	if !ok {
		return
	}
	b.detachLocked(st)
	delete(b.streams, p)
	if err := st.decoder.Close(); err != nil {
		log.Debug(log.CatAudio, "Closing stream decoder failed", "source", st.src.String(), "error", err)
	}
}

// SetStreamVolume changes the volume of p, now and for later plays.
func (b *Backend) SetStreamVolume(p audio.StreamHandle, volume float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[p]
	if !ok {
		return
	}
	st.volume = volume
	if st.vol != nil {
		b.out.Lock()
		setVolume(st.vol, volume)
		b.out.Unlock()
	}
}

// SetStreamLooping sets whether p restarts when it reaches the end.
func (b *Backend) SetStreamLooping(p audio.StreamHandle, loop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[p]
	if !ok {
		return
	}
	st.loop = loop
	b.out.Lock()
	st.looper.loop = loop
	b.out.Unlock()
}

// Close stops every channel and stream and frees all decoded data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range append([]audio.ChannelID(nil), b.order...) {
		b.stopChannelLocked(id)
	}
	var errs []error
	for p, st := range b.streams {
		b.detachLocked(st)
		errs = append(errs, st.decoder.Close())
		delete(b.streams, p)
	}
	clear(b.effects)
	return errors.Join(errs...)
}
