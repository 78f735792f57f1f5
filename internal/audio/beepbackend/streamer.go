package beepbackend

import (
	"math"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// looper replays its source from the start while loop is set. loop may be
// flipped at any time with the output lock held.
type looper struct {
	s    beep.StreamSeeker
	loop bool
	err  error
}

func (l *looper) Stream(samples [][2]float64) (n int, ok bool) {
	if l.err != nil {
		return 0, false
	}
	rewound := false
	for len(samples) > 0 {
		sn, sok := l.s.Stream(samples)
		n += sn
		samples = samples[sn:]
		if sok && sn > 0 {
			rewound = false
			continue
		}
		if err := l.s.Err(); err != nil {
			l.err = err
			return n, n > 0
		}
		// An empty source would spin forever.
		if !l.loop || rewound {
			return n, n > 0
		}
		if err := l.s.Seek(0); err != nil {
			l.err = err
			return n, n > 0
		}
		rewound = true
	}
	return n, true
}

func (l *looper) Err() error { return l.err }

// setVolume maps a linear volume onto an exponential volume effect.
// Zero or below is silent.
func setVolume(v *effects.Volume, volume float64) {
	if volume <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(volume)
}

func newVolume(s beep.Streamer, volume float64) *effects.Volume {
	v := &effects.Volume{Streamer: s, Base: 2}
	setVolume(v, volume)
	return v
}
