package audio

import "fmt"

// CommandKind identifies a queued audio command.
type CommandKind int

const (
	CmdLoad CommandKind = iota + 1
	CmdPlaySound
	CmdPlayMusic
	CmdLoadMusic
	CmdPause
	CmdStop
	CmdSetVolume
	CmdAppPaused
	CmdAppResumed

	// cmdBarrier marks a Drain point. Never produced by callers.
	cmdBarrier
)

var commandNames = map[CommandKind]string{
	CmdLoad:       "load",
	CmdPlaySound:  "play_sound",
	CmdPlayMusic:  "play_music",
	CmdLoadMusic:  "load_music",
	CmdPause:      "pause",
	CmdStop:       "stop",
	CmdSetVolume:  "set_volume",
	CmdAppPaused:  "app_paused",
	CmdAppResumed: "app_resumed",
	cmdBarrier:    "barrier",
}

// String returns the command's snake_case name.
func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is an immutable audio request. Fields unused by a kind are zero.
type Command struct {
	Kind   CommandKind
	URL    string
	Volume float64
	Loop   bool

	barrier chan error
}

// String formats the command for logs.
func (c Command) String() string {
	switch c.Kind {
	case CmdPlaySound, CmdPlayMusic:
		return fmt.Sprintf("%s(%s, %.2f, loop=%t)", c.Kind, c.URL, c.Volume, c.Loop)
	case CmdSetVolume:
		return fmt.Sprintf("%s(%s, %.2f)", c.Kind, c.URL, c.Volume)
	case CmdAppPaused, CmdAppResumed, cmdBarrier:
		return c.Kind.String()
	default:
		return fmt.Sprintf("%s(%s)", c.Kind, c.URL)
	}
}

// LoadCommand requests a background load of url.
func LoadCommand(url string) Command { return Command{Kind: CmdLoad, URL: url} }

// PlaySoundCommand plays url on a pooled channel.
func PlaySoundCommand(url string, volume float64, loop bool) Command {
	return Command{Kind: CmdPlaySound, URL: url, Volume: volume, Loop: loop}
}

// PlayMusicCommand plays url as background music.
func PlayMusicCommand(url string, volume float64, loop bool) Command {
	return Command{Kind: CmdPlayMusic, URL: url, Volume: volume, Loop: loop}
}

// LoadMusicCommand prepares url as background music.
func LoadMusicCommand(url string) Command { return Command{Kind: CmdLoadMusic, URL: url} }

// PauseCommand pauses url.
func PauseCommand(url string) Command { return Command{Kind: CmdPause, URL: url} }

// StopCommand stops url.
func StopCommand(url string) Command { return Command{Kind: CmdStop, URL: url} }

// SetVolumeCommand changes the volume of url.
func SetVolumeCommand(url string, volume float64) Command {
	return Command{Kind: CmdSetVolume, URL: url, Volume: volume}
}

// AppPausedCommand reports that the app moved to the background.
func AppPausedCommand() Command { return Command{Kind: CmdAppPaused} }

// AppResumedCommand reports that the app returned to the foreground.
func AppResumedCommand() Command { return Command{Kind: CmdAppResumed} }
