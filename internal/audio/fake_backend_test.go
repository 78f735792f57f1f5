package audio

import (
	"errors"
	"fmt"
	"sync"
)

// fakeBackend records every call and lets tests gate or fail loads.
type fakeBackend struct {
	mu sync.Mutex

	calls []string

	// loadCount counts LoadEffect calls per source path.
	loadCount map[string]int
	// failLoads makes LoadEffect fail for these source paths.
	failLoads map[string]error
	// panicLoads makes LoadEffect panic for these source paths.
	panicLoads map[string]bool
	// gate, if set, blocks LoadEffect until it receives or is closed.
	gate chan struct{}
	// loadStarted receives the source path of each LoadEffect call, if set.
	loadStarted chan string

	failStreams map[string]error

	nextHandle  int
	nextChannel int
	nextStream  int

	channelVolume map[ChannelID]float64
	channelState  map[ChannelID]string
	channelEffect map[ChannelID]EffectHandle
	unloaded      map[EffectHandle]bool

	streamSource  map[StreamHandle]Source
	streamState   map[StreamHandle]string
	streamVolume  map[StreamHandle]float64
	streamLooping map[StreamHandle]bool
	prepareCount  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		loadCount:     make(map[string]int),
		failLoads:     make(map[string]error),
		panicLoads:    make(map[string]bool),
		failStreams:   make(map[string]error),
		channelVolume: make(map[ChannelID]float64),
		channelState:  make(map[ChannelID]string),
		channelEffect: make(map[ChannelID]EffectHandle),
		unloaded:      make(map[EffectHandle]bool),
		streamSource:  make(map[StreamHandle]Source),
		streamState:   make(map[StreamHandle]string),
		streamVolume:  make(map[StreamHandle]float64),
		streamLooping: make(map[StreamHandle]bool),
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) LoadEffect(src Source) (EffectHandle, error) {
	f.mu.Lock()
	f.record("LoadEffect %s", src)
	f.loadCount[src.Path]++
	gate := f.gate
	started := f.loadStarted
	failErr := f.failLoads[src.Path]
	shouldPanic := f.panicLoads[src.Path]
	f.mu.Unlock()

	if started != nil {
		started <- src.Path
	}
	if gate != nil {
		<-gate
	}
	if shouldPanic {
		panic("decoder exploded")
	}
	if failErr != nil {
		return 0, failErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHandle++
	return EffectHandle(f.nextHandle), nil
}

func (f *fakeBackend) UnloadEffect(h EffectHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UnloadEffect %d", h)
	f.unloaded[h] = true
}

func (f *fakeBackend) PlayChannel(h EffectHandle, volume float64, loop bool) (ChannelID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PlayChannel %d %.2f %t", h, volume, loop)
	f.nextChannel++
	ch := ChannelID(f.nextChannel)
	f.channelVolume[ch] = volume
	f.channelState[ch] = "playing"
	f.channelEffect[ch] = h
	return ch, nil
}

func (f *fakeBackend) StopChannel(ch ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StopChannel %d", ch)
	f.channelState[ch] = "stopped"
}

func (f *fakeBackend) PauseChannel(ch ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PauseChannel %d", ch)
	f.channelState[ch] = "paused"
}

func (f *fakeBackend) ResumeChannel(ch ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ResumeChannel %d", ch)
	f.channelState[ch] = "playing"
}

func (f *fakeBackend) SetChannelVolume(ch ChannelID, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetChannelVolume %d %.2f", ch, volume)
	f.channelVolume[ch] = volume
}

func (f *fakeBackend) PrepareStream(src Source) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PrepareStream %s", src)
	f.prepareCount++
	if err := f.failStreams[src.Path]; err != nil {
		return 0, err
	}
	f.nextStream++
	p := StreamHandle(f.nextStream)
	f.streamSource[p] = src
	f.streamState[p] = "prepared"
	return p, nil
}

func (f *fakeBackend) PlayStream(p StreamHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PlayStream %d", p)
	if _, ok := f.streamState[p]; !ok {
		return errors.New("unknown stream")
	}
	f.streamState[p] = "playing"
	return nil
}

func (f *fakeBackend) PauseStream(p StreamHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PauseStream %d", p)
	f.streamState[p] = "paused"
}

func (f *fakeBackend) StopStream(p StreamHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StopStream %d", p)
	f.streamState[p] = "stopped"
}

func (f *fakeBackend) ReleaseStream(p StreamHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReleaseStream %d", p)
	f.streamState[p] = "released"
}

func (f *fakeBackend) SetStreamVolume(p StreamHandle, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetStreamVolume %d %.2f", p, volume)
	f.streamVolume[p] = volume
}

func (f *fakeBackend) SetStreamLooping(p StreamHandle, loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetStreamLooping %d %t", p, loop)
	f.streamLooping[p] = loop
}

// Accessors for assertions.

func (f *fakeBackend) loads(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCount[path]
}

func (f *fakeBackend) totalLoads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.loadCount {
		n += c
	}
	return n
}

func (f *fakeBackend) prepares() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepareCount
}

func (f *fakeBackend) chanState(ch ChannelID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channelState[ch]
}

func (f *fakeBackend) chanVolume(ch ChannelID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channelVolume[ch]
}

func (f *fakeBackend) channelsFor(h EffectHandle) []ChannelID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ChannelID
	for ch, eh := range f.channelEffect {
		if eh == h {
			out = append(out, ch)
		}
	}
	return out
}

func (f *fakeBackend) streamStateOf(p StreamHandle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamState[p]
}

func (f *fakeBackend) isUnloaded(h EffectHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloaded[h]
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingSink collects load notifications.
type recordingSink struct {
	mu     sync.Mutex
	loaded []string
	failed []string
}

func (s *recordingSink) AssetLoaded(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
}

func (s *recordingSink) AssetLoadFailed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, url)
}

func (s *recordingSink) snapshot() (loaded, failed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loaded...), append([]string(nil), s.failed...)
}

// noFiles resolves nothing, sending every load to the bundle.
var noFiles = ResolverFunc(func(string) (string, bool) { return "", false })
