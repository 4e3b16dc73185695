package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"studytimer/internal/broadcast"
	"studytimer/internal/core/countdown"
	"studytimer/internal/platform"
	"studytimer/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run [minutes]",
	Short: "Run a countdown in the terminal",
	Long: `Run a countdown in the terminal and read commands from stdin:

  start [minutes]   start a study session (default from settings)
  break             start a break
  stop              stop the running session
  sync              print the remaining time
  quit              exit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTerminal,
}

func runTerminal(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := broadcast.NewHub()
	endpoint := hub.Open(settings.Channel)
	defer endpoint.Close()

	service := countdown.New(settings.Countdown,
		countdown.WithLogger(logger),
		countdown.WithChannel(endpoint),
	)
	events := service.Subscribe(64)
	if err := service.Open(); err != nil {
		return err
	}
	defer service.Close()

	history, err := openHistory()
	if err != nil {
		return err
	}
	var recorder *storage.SessionRecorder
	if history != nil {
		defer history.Close()
		recorder = storage.NewSessionRecorder(history, logger)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	out := cmd.OutOrStdout()

	group.Go(func() error {
		printEvents(groupCtx, out, events, recorder)
		return nil
	})

	if settings.MeshEnable {
		mesh := broadcast.NewMesh(hub.Open(settings.Channel), broadcast.MeshConfig{
			ListenAddr: settings.MeshListen,
			Peers:      settings.MeshPeers,
		}, logger)
		group.Go(func() error {
			return mesh.Run(groupCtx)
		})
	}

	if settings.IdleEnabled {
		watcher := platform.NewVisibilityWatcher(platform.NewIdleProvider(),
			settings.IdleAfter, settings.IdleCheckInterval, service.VisibilityChange, logger)
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}

	if len(args) == 1 {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes must be an integer: %w", err)
		}
		if err := service.Start(minutes * 60); err != nil {
			return err
		}
	}

	commands := make(chan string)
	go readLines(cmd.InOrStdin(), commands)

	group.Go(func() error {
		defer stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case line, ok := <-commands:
				if !ok {
					// Without stdin the countdown runs until interrupted.
					commands = nil
					continue
				}
				if quit := handleLine(out, service, line); quit {
					return nil
				}
			}
		}
	})

	err = group.Wait()
	service.Close()
	return err
}

// handleLine executes one terminal command and reports whether to exit.
func handleLine(out io.Writer, service *countdown.Service, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "start", "break":
		seconds := settings.StudySeconds()
		if fields[0] == "break" {
			seconds = settings.BreakSeconds()
		}
		if len(fields) > 1 {
			minutes, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintf(out, "minutes must be an integer: %q\n", fields[1])
				return false
			}
			seconds = minutes * 60
		}
		if err := service.Start(seconds); err != nil {
			fmt.Fprintln(out, err)
		}
	case "stop":
		service.Stop()
	case "sync":
		service.Sync()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q (start, break, stop, sync, quit)\n", fields[0])
	}
	return false
}

func printEvents(ctx context.Context, out io.Writer, events <-chan countdown.Notification, recorder *storage.SessionRecorder) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if recorder != nil {
				recorder.Observe(ctx, event)
			}
			switch event.Type {
			case countdown.NotifyTick:
				fmt.Fprintf(out, "\r%s ", formatClock(event.TimeLeft))
			case countdown.NotifySessionEnd:
				fmt.Fprintln(out, "\rSession complete.")
			case countdown.NotifyStopped:
				fmt.Fprintf(out, "\rStopped with %s left.\n", formatClock(event.TimeLeft))
			case countdown.NotifySyncResponse:
				if event.IsRunning {
					fmt.Fprintf(out, "\r%s remaining\n", formatClock(event.TimeLeft))
				} else {
					fmt.Fprintln(out, "\rNo session running.")
				}
			}
		}
	}
}

func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("Reading stdin failed", zap.Error(err))
	}
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
