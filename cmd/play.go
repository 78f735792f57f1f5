package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/chime/internal/audio"
)

var (
	playMusic  bool
	playVolume float64
	playLoop   bool
	playFor    time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play <url>...",
	Short: "Play sounds through the command queue",
	Long: `Play one or more sounds as pooled effects, or as background music with --music.

URLs resolve against resources.root first and fall back to the packaged bundle.
The reserved url "loadingsound" plays the looping loading indicator.
Playback lasts for --for, or until interrupted when --for is 0.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playMusic, "music", false, "play as background music (only the last url keeps playing)")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1, "playback volume")
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "loop playback")
	playCmd.Flags().DurationVar(&playFor, "for", 2*time.Second, "how long to keep playing (0 waits for Ctrl+C)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if playVolume < 0 {
		return fmt.Errorf("--volume must not be negative")
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	events := audio.NewEventQueue()
	sys, stop, err := startSystem(ctx, events)
	if err != nil {
		return err
	}

	for _, url := range args {
		if playMusic {
			sys.Queue.PlayBackgroundMusic(url, playVolume, playLoop)
		} else {
			sys.Queue.PlaySound(url, playVolume, playLoop)
		}
	}
	err = sys.Queue.Drain(ctx)
	if err == nil {
		wait(ctx, playFor)
	}
	// Stopping waits for the loader, so every notification has arrived.
	stop()

	for _, ev := range events.Poll() {
		if ev.Type == audio.EventAssetLoadFailed {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "could not load %s\n", ev.URL)
		}
	}
	return err
}

// wait blocks for d, or until ctx ends when d is zero.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		<-ctx.Done()
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
