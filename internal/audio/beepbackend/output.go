package beepbackend

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output mixes attached streamers onto a device. Lock must be held while
// mutating any streamer that has been passed to Play.
type Output interface {
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
}

// speakerOutput is the process-wide speaker device.
type speakerOutput struct{}

func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

// OpenSpeaker initialises the default audio device at rate with a mixing
// buffer of the given duration.
func OpenSpeaker(rate beep.SampleRate, buffer time.Duration) (Output, error) {
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return speakerOutput{}, nil
}

// CloseSpeaker silences and releases the default audio device.
func CloseSpeaker() {
	speaker.Clear()
	speaker.Close()
}
