package audio

import (
	"fmt"

	"github.com/zjrosen/chime/internal/log"
)

// SlotState is the playback state of a MusicSlot.
type SlotState int

const (
	SlotStopped SlotState = iota
	SlotLoading
	// SlotReady holds a prepared player that has not been started.
	SlotReady
	SlotPlaying
	SlotPaused
)

// String returns a lowercase state name.
func (s SlotState) String() string {
	switch s {
	case SlotStopped:
		return "stopped"
	case SlotLoading:
		return "loading"
	case SlotReady:
		return "ready"
	case SlotPlaying:
		return "playing"
	case SlotPaused:
		return "paused"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// MusicSlot holds one streamed player: background music or the loading
// indicator. It is only touched by the command worker.
//
// A player exists only while the slot is Loading, Ready, Playing or Paused.
// Every transition into Stopped releases it.
type MusicSlot struct {
	name    string
	backend Backend
	locate  func(url string) Source

	state          SlotState
	url            string
	player         StreamHandle
	hasPlayer      bool
	looping        bool
	volume         float64
	resumeOnResume bool
}

func newMusicSlot(name string, backend Backend, locate func(string) Source) *MusicSlot {
	return &MusicSlot{
		name:    name,
		backend: backend,
		locate:  locate,
		volume:  1,
	}
}

// Name returns the slot name used in logs.
func (s *MusicSlot) Name() string { return s.name }

// State returns the current playback state.
func (s *MusicSlot) State() SlotState { return s.state }

// URL returns the URL the slot last loaded, even after Stop.
func (s *MusicSlot) URL() string { return s.url }

// Player returns the live player handle, if any.
func (s *MusicSlot) Player() (StreamHandle, bool) { return s.player, s.hasPlayer }

// Looping reports the looping flag applied to the player.
func (s *MusicSlot) Looping() bool { return s.looping }

// Volume reports the volume applied to the player.
func (s *MusicSlot) Volume() float64 { return s.volume }

// ResumeOnAppResume reports whether an app resume will restart playback.
func (s *MusicSlot) ResumeOnAppResume() bool { return s.resumeOnResume }

// Holds reports whether url is the slot's current URL.
func (s *MusicSlot) Holds(url string) bool {
	return url != "" && s.url == url
}

// Load prepares url without starting it. A different URL's player is
// released first; the same URL with a live player is left alone.
func (s *MusicSlot) Load(url string) error {
	if s.hasPlayer && s.url == url {
		return nil
	}
	if err := s.prepare(url); err != nil {
		return err
	}
	s.state = SlotReady
	return nil
}

// Play starts url. If the slot already holds a live player for url it is
// reused: only volume and looping are updated before playback (re)starts.
func (s *MusicSlot) Play(url string, volume float64, loop bool) error {
	if !(s.hasPlayer && s.url == url) {
		if err := s.prepare(url); err != nil {
			return err
		}
	}

	s.volume = volume
	s.looping = loop
	s.backend.SetStreamVolume(s.player, volume)
	s.backend.SetStreamLooping(s.player, loop)
	if err := s.backend.PlayStream(s.player); err != nil {
		s.release()
		return fmt.Errorf("%s: starting %q: %w", s.name, url, err)
	}
	s.state = SlotPlaying
	s.resumeOnResume = true
	log.Debug(log.CatAudio, "Music playing", "slot", s.name, "url", url, "volume", volume, "loop", loop)
	return nil
}

// Stop releases the player and clears the resume flag.
func (s *MusicSlot) Stop() {
	s.release()
	s.resumeOnResume = false
}

// Pause pauses a playing slot. The pause is sticky: an app resume will not
// restart it.
func (s *MusicSlot) Pause() {
	if s.state == SlotPlaying {
		s.backend.PauseStream(s.player)
		s.state = SlotPaused
	}
	s.resumeOnResume = false
}

// AppPause pauses a playing slot because the app went to the background.
// Playback restarts on AppResume.
func (s *MusicSlot) AppPause() {
	if s.state != SlotPlaying {
		return
	}
	s.backend.PauseStream(s.player)
	s.state = SlotPaused
	s.resumeOnResume = true
}

// AppResume restarts playback paused by AppPause. Explicit pauses stay paused.
func (s *MusicSlot) AppResume() {
	if s.state != SlotPaused || !s.resumeOnResume {
		return
	}
	if err := s.backend.PlayStream(s.player); err != nil {
		log.Warn(log.CatAudio, "Failed to resume music", "slot", s.name, "url", s.url, "error", err)
		s.release()
		return
	}
	s.state = SlotPlaying
}

// SetVolume applies volume to the live player and remembers it for the next Play.
func (s *MusicSlot) SetVolume(volume float64) {
	s.volume = volume
	if s.hasPlayer {
		s.backend.SetStreamVolume(s.player, volume)
	}
}

// prepare releases any current player and prepares a new one for url.
// On failure the slot ends Stopped with no player and no URL, so the URL
// no longer addresses this slot.
func (s *MusicSlot) prepare(url string) error {
	s.release()
	s.url = url
	s.state = SlotLoading

	src := s.locate(url)
	p, err := s.backend.PrepareStream(src)
	if err != nil {
		s.state = SlotStopped
		s.url = ""
		log.Warn(log.CatAudio, "Failed to prepare music", "slot", s.name, "url", url, "source", src.String(), "error", err)
		return &LoadError{URL: url, Err: err}
	}
	s.player = p
	s.hasPlayer = true
	return nil
}

// release stops and frees the player and moves to Stopped.
func (s *MusicSlot) release() {
	if s.hasPlayer {
		s.backend.StopStream(s.player)
		s.backend.ReleaseStream(s.player)
	}
	s.player = 0
	s.hasPlayer = false
	s.state = SlotStopped
}
