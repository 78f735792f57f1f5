// Package script parses chime command scripts: one audio command per line,
// replayed through the audio command queue by "chime run".
//
//	# comments and blank lines are ignored
//	load click.wav
//	play click.wav 0.8
//	music theme.ogg 0.5 loop
//	sleep 250ms
//	drain
package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/chime/internal/audio"
)

// Op is a script verb.
type Op string

const (
	OpLoad      Op = "load"
	OpPlay      Op = "play"
	OpMusic     Op = "music"
	OpLoadMusic Op = "load-music"
	OpPause     Op = "pause"
	OpStop      Op = "stop"
	OpVolume    Op = "volume"
	OpAppPause  Op = "app-pause"
	OpAppResume Op = "app-resume"
	OpSleep     Op = "sleep"
	OpDrain     Op = "drain"
)

// Step is one parsed script line.
type Step struct {
	Line int
	Op   Op

	// Command is set for every op except sleep and drain.
	Command audio.Command

	// Sleep is set for OpSleep.
	Sleep time.Duration
}

// String formats the step as it would be written in a script.
func (s Step) String() string {
	c := s.Command
	switch s.Op {
	case OpSleep:
		return fmt.Sprintf("sleep %s", s.Sleep)
	case OpDrain, OpAppPause, OpAppResume:
		return string(s.Op)
	case OpPlay, OpMusic:
		out := fmt.Sprintf("%s %s %g", s.Op, c.URL, c.Volume)
		if c.Loop {
			out += " loop"
		}
		return out
	case OpVolume:
		return fmt.Sprintf("%s %s %g", s.Op, c.URL, c.Volume)
	default:
		return fmt.Sprintf("%s %s", s.Op, c.URL)
	}
}

// SyntaxError reports a malformed line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ErrEmpty reports a script without any commands.
var ErrEmpty = errors.New("script has no commands")

// Parse reads a whole script. It stops at the first malformed line and
// returns ErrEmpty when nothing but comments and blank lines were read.
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		step, ok, err := ParseLine(line, sc.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			steps = append(steps, step)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	if len(steps) == 0 {
		return nil, ErrEmpty
	}
	return steps, nil
}

// ParseLine parses one line. ok is false for blank and comment lines.
func ParseLine(n int, text string) (Step, bool, error) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Step{}, false, nil
	}

	fail := func(format string, args ...any) (Step, bool, error) {
		return Step{}, false, &SyntaxError{Line: n, Msg: fmt.Sprintf(format, args...)}
	}

	op := Op(strings.ToLower(fields[0]))
	args := fields[1:]
	step := Step{Line: n, Op: op}

	switch op {
	case OpLoad, OpLoadMusic, OpPause, OpStop:
		if len(args) != 1 {
			return fail("%s takes a url", op)
		}
		step.Command = urlCommand(op, args[0])

	case OpPlay, OpMusic:
		if len(args) < 1 || len(args) > 3 {
			return fail("%s takes a url, an optional volume and an optional loop flag", op)
		}
		volume := 1.0
		var loop, hasVolume bool
		for _, a := range args[1:] {
			if a == "loop" {
				if loop {
					return fail("%s: loop given twice", op)
				}
				loop = true
				continue
			}
			if hasVolume {
				return fail("%s: volume given twice", op)
			}
			v, err := parseVolume(a)
			if err != nil {
				return fail("%s: %v", op, err)
			}
			volume = v
			hasVolume = true
		}
		if op == OpPlay {
			step.Command = audio.PlaySoundCommand(args[0], volume, loop)
		} else {
			step.Command = audio.PlayMusicCommand(args[0], volume, loop)
		}

	case OpVolume:
		if len(args) != 2 {
			return fail("volume takes a url and a volume")
		}
		v, err := parseVolume(args[1])
		if err != nil {
			return fail("volume: %v", err)
		}
		step.Command = audio.SetVolumeCommand(args[0], v)

	case OpAppPause, OpAppResume:
		if len(args) != 0 {
			return fail("%s takes no arguments", op)
		}
		if op == OpAppPause {
			step.Command = audio.AppPausedCommand()
		} else {
			step.Command = audio.AppResumedCommand()
		}

	case OpSleep:
		if len(args) != 1 {
			return fail("sleep takes a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return fail("sleep: invalid duration %q", args[0])
		}
		step.Sleep = d

	case OpDrain:
		if len(args) != 0 {
			return fail("drain takes no arguments")
		}

	default:
		return fail("unknown command %q", fields[0])
	}
	return step, true, nil
}

func urlCommand(op Op, url string) audio.Command {
	switch op {
	case OpLoad:
		return audio.LoadCommand(url)
	case OpLoadMusic:
		return audio.LoadMusicCommand(url)
	case OpPause:
		return audio.PauseCommand(url)
	default:
		return audio.StopCommand(url)
	}
}

func parseVolume(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("volume %q must not be negative", s)
	}
	return v, nil
}

// Target receives script commands. *audio.Queue implements it.
type Target interface {
	Enqueue(cmd audio.Command)
	Drain(ctx context.Context) error
}

// Run replays steps against t. Sleeps and drains honour ctx. onStep, if not
// nil, is called before each step.
func Run(ctx context.Context, t Target, steps []Step, onStep func(Step)) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onStep != nil {
			onStep(s)
		}
		switch s.Op {
		case OpSleep:
			timer := time.NewTimer(s.Sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		case OpDrain:
			if err := t.Drain(ctx); err != nil {
				return fmt.Errorf("line %d: drain: %w", s.Line, err)
			}
		default:
			t.Enqueue(s.Command)
		}
	}
	return nil
}
