package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/chime/internal/audio"
	"github.com/zjrosen/chime/internal/log"
	"github.com/zjrosen/chime/internal/pubsub"
	"github.com/zjrosen/chime/internal/script"
)

var (
	runLinger time.Duration
	runQuiet  bool
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	lineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#696969"))
	loadedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	summaryStyle = lipgloss.NewStyle().Bold(true)
)

var runCmd = &cobra.Command{
	Use:   "run <script|->",
	Short: "Replay a command script through the audio queue",
	Long: `Replay a chime script, one audio command per line. Use - to read stdin.

  load <url>                   load a sound in the background
  play <url> [volume] [loop]   play a sound effect
  music <url> [volume] [loop]  play background music
  load-music <url>             prepare background music
  pause <url> | stop <url>     pause or stop a sound
  volume <url> <volume>        change a sound's volume
  app-pause | app-resume       simulate the app losing or regaining focus
  sleep <duration>             wait, e.g. sleep 250ms
  drain                        wait for every earlier command to finish`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().DurationVar(&runLinger, "linger", 2*time.Second, "keep playing this long after the script ends (0 exits at once)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "don't print steps and load events")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	steps, err := readScript(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	out := cmd.OutOrStdout()
	broker := pubsub.NewBroker[audio.Event]()
	defer broker.Shutdown()

	tally := &eventTally{}
	events := broker.Subscribe(ctx)
	printed := make(chan struct{})
	log.SafeGo("cli.events", func() {
		defer close(printed)
		for ev := range events {
			tally.add(ev.Payload)
			if !runQuiet {
				_, _ = fmt.Fprintln(out, formatEvent(ev.Payload))
			}
		}
	})

	sys, stop, err := startSystem(ctx, audio.NewBrokerSink(broker))
	if err != nil {
		return err
	}

	onStep := func(s script.Step) {
		if !runQuiet {
			_, _ = fmt.Fprintln(out, formatStep(s))
		}
	}
	runErr := script.Run(ctx, sys.Queue, steps, onStep)
	if runErr == nil {
		runErr = sys.Queue.Drain(ctx)
	}
	if runErr == nil && runLinger > 0 {
		wait(ctx, runLinger)
	}
	stop()

	broker.Shutdown()
	<-printed
	_, _ = fmt.Fprintln(out, summaryStyle.Render(tally.String()))
	return runErr
}

// readScript parses the script at name, or stdin when name is "-".
func readScript(stdin io.Reader, name string) ([]script.Step, error) {
	if name == "-" {
		return script.Parse(stdin)
	}
	f, err := os.Open(name) //nolint:gosec // script path comes from the command line
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	steps, err := script.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return steps, nil
}

func formatStep(s script.Step) string {
	return lineStyle.Render(fmt.Sprintf("%4d", s.Line)) + " " + stepStyle.Render(s.String())
}

func formatEvent(ev audio.Event) string {
	switch ev.Type {
	case audio.EventAssetLoaded:
		return "  " + loadedStyle.Render("loaded") + " " + ev.URL
	case audio.EventAssetLoadFailed:
		return "  " + failedStyle.Render("failed") + " " + ev.URL
	default:
		return fmt.Sprintf("  %s %s", ev.Type, ev.URL)
	}
}

// eventTally counts load notifications for the run summary.
type eventTally struct {
	loaded int
	failed int
}

func (t *eventTally) add(ev audio.Event) {
	switch ev.Type {
	case audio.EventAssetLoaded:
		t.loaded++
	case audio.EventAssetLoadFailed:
		t.failed++
	}
}

func (t *eventTally) String() string {
	return fmt.Sprintf("%d loaded, %d failed", t.loaded, t.failed)
}
