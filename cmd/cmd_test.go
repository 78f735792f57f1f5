package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/chime/internal/audio"
	"github.com/zjrosen/chime/internal/audio/beepbackend"
	"github.com/zjrosen/chime/internal/config"
	"github.com/zjrosen/chime/internal/script"
)

// silentOutput accepts streamers and never pulls samples from them.
type silentOutput struct{}

func (silentOutput) Play(...beep.Streamer) {}
func (silentOutput) Lock()                 {}
func (silentOutput) Unlock()               {}

func useSilentOutput(t *testing.T) {
	t.Helper()
	orig := openOutput
	openOutput = func(beep.SampleRate, time.Duration) (beepbackend.Output, func(), error) {
		return silentOutput{}, func() {}, nil
	}
	t.Cleanup(func() { openOutput = orig })
}

// syncBuffer is written by the command, the loader and the event printer at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeCommand runs the root command with args and returns what it printed.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// Keep a developer's own config out of the way.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfgFile, logLevel = "", ""
	cfg = config.Config{}
	configForce = false
	runLinger, runQuiet = 0, false
	playMusic, playVolume, playLoop, playFor = false, 1, false, time.Millisecond

	out := &syncBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigShow_Defaults(t *testing.T) {
	out, err := executeCommand(t, "", "config", "show")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Equal(t, config.Defaults(), got)
}

func TestConfigShow_FileAndFlagOverrides(t *testing.T) {
	path := writeFile(t, "chime.yaml", "audio:\n  max_channels: 4\nlog:\n  level: info\n")

	out, err := executeCommand(t, "", "config", "show", "--config", path, "--log-level", "error")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Equal(t, 4, got.Audio.MaxChannels)
	require.Equal(t, "error", got.Log.Level)
	require.Equal(t, 44100, got.Audio.SampleRate)
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	path := writeFile(t, "chime.yaml", "audio:\n  sample_rate: -1\n")

	_, err := executeCommand(t, "", "sounds", "--config", path)
	require.ErrorContains(t, err, "audio.sample_rate")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chime.yaml")

	out, err := executeCommand(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))

	_, err = executeCommand(t, "", "config", "init", "--config", path)
	require.ErrorContains(t, err, "already exists")

	_, err = executeCommand(t, "", "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}

func TestSounds_ListsBundle(t *testing.T) {
	out, err := executeCommand(t, "", "sounds")
	require.NoError(t, err)
	require.Equal(t, "chime.wav\nclick.wav\nerror.wav\n", out)
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "", "version")
	require.NoError(t, err)
	require.Equal(t, "chime dev (none)\n", out)
}

func TestRun_ScriptFromStdin(t *testing.T) {
	useSilentOutput(t)

	src := `# warm up
play click.wav 0.5
play missing.wav
volume click.wav 0.2
stop click.wav
`
	out, err := executeCommand(t, src, "run", "-")
	require.NoError(t, err)
	out = stripANSI(out)

	require.Contains(t, out, "play click.wav 0.5")
	require.Contains(t, out, "stop click.wav")
	require.Contains(t, out, "loaded click.wav")
	require.Contains(t, out, "failed missing.wav")
	require.Contains(t, out, "1 loaded, 1 failed")
}

func TestRun_Quiet(t *testing.T) {
	useSilentOutput(t)

	out, err := executeCommand(t, "play chime.wav\n", "run", "-", "--quiet")
	require.NoError(t, err)
	require.Equal(t, "1 loaded, 0 failed\n", stripANSI(out))
}

func TestRun_SyntaxError(t *testing.T) {
	path := writeFile(t, "bad.chime", "play click.wav\nwobble\n")

	_, err := executeCommand(t, "", "run", path)
	require.ErrorContains(t, err, "bad.chime")
	require.ErrorContains(t, err, "line 2")
}

func TestRun_MissingScript(t *testing.T) {
	_, err := executeCommand(t, "", "run", filepath.Join(t.TempDir(), "nope.chime"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_EmptyScript(t *testing.T) {
	_, err := executeCommand(t, "# nothing to do\n", "run", "-")
	require.ErrorIs(t, err, script.ErrEmpty)
}

func TestPlay_ReportsFailedLoads(t *testing.T) {
	useSilentOutput(t)

	out, err := executeCommand(t, "", "play", "click.wav", "missing.wav", "--volume", "0.3")
	require.NoError(t, err)
	require.Contains(t, out, "could not load missing.wav")
	require.NotContains(t, out, "click.wav")
}

func TestPlay_Music(t *testing.T) {
	useSilentOutput(t)

	out, err := executeCommand(t, "", "play", "--music", "--loop", "chime.wav")
	require.NoError(t, err)
	require.NotContains(t, out, "could not load")
}

func TestPlay_NegativeVolume(t *testing.T) {
	_, err := executeCommand(t, "", "play", "click.wav", "--volume", "-1")
	require.ErrorContains(t, err, "--volume")
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   audio.Event
		want string
	}{
		{"loaded", audio.NewEvent(audio.EventAssetLoaded, "a.wav"), "  loaded a.wav"},
		{"failed", audio.NewEvent(audio.EventAssetLoadFailed, "b.wav"), "  failed b.wav"},
		{"other", audio.NewEvent("asset.custom", "c.wav"), "  asset.custom c.wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, stripANSI(formatEvent(tt.ev)))
		})
	}
}

func TestEventTally(t *testing.T) {
	tally := &eventTally{}
	require.Equal(t, "0 loaded, 0 failed", tally.String())

	tally.add(audio.NewEvent(audio.EventAssetLoaded, "a.wav"))
	tally.add(audio.NewEvent(audio.EventAssetLoaded, "b.wav"))
	tally.add(audio.NewEvent(audio.EventAssetLoadFailed, "c.wav"))
	require.Equal(t, "2 loaded, 1 failed", tally.String())
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
