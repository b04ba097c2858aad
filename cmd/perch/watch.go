package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/yurifrl/perch/pkg/render"
	"github.com/yurifrl/perch/pkg/session"
)

const clearScreen = "\033[H\033[2J"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive view that re-renders as data arrives",
	Long: `Interactive view. Type a command and press enter:

  d, w, m, y   switch to day, week, month or year
  h, l         previous or next mode
  r            refresh from the network
  q            quit`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		view := &screen{out: cmd.OutOrStdout()}
		s, err := a.newSession(ctx, mode, session.WithOnChange(view.draw))
		if err != nil {
			return err
		}

		var loads sync.WaitGroup
		defer func() {
			cancel()
			view.stop()
			loads.Wait()
			s.Close()
		}()
		load := func(fn func(context.Context) error) {
			loads.Add(1)
			go func() {
				defer loads.Done()
				if err := fn(ctx); err != nil {
					a.logger.Debug("load failed", "err", err)
				}
			}()
		}

		load(s.Initialize)

		var tick <-chan time.Time
		if interval > 0 {
			t := time.NewTicker(interval)
			defer t.Stop()
			tick = t.C
		}

		input := readLines(ctx, cmd.InOrStdin())
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
				load(s.Refresh)
			case line, ok := <-input:
				if !ok {
					return nil
				}
				switch key := strings.ToLower(strings.TrimSpace(line)); key {
				case "q", "quit", "exit":
					return nil
				case "r":
					load(s.Refresh)
				case "h":
					next := s.Mode().Prev()
					load(func(ctx context.Context) error { return s.SwitchMode(ctx, next) })
				case "l":
					next := s.Mode().Next()
					load(func(ctx context.Context) error { return s.SwitchMode(ctx, next) })
				case "":
					view.draw(s.Snapshot())
				default:
					m, err := session.ParseMode(key)
					if err != nil {
						view.draw(s.Snapshot())
						continue
					}
					load(func(ctx context.Context) error { return s.SwitchMode(ctx, m) })
				}
			}
		}
	}),
}

func init() {
	watchCmd.Flags().StringP("mode", "m", "day", "Initial window: day, week, month or year")
	watchCmd.Flags().Duration("interval", 0, "Refresh automatically at this interval (0 disables)")
}

// screen serializes redraws coming from the session's goroutines.
type screen struct {
	mu      sync.Mutex
	out     io.Writer
	stopped bool
}

func (s *screen) draw(snap session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	fmt.Fprint(s.out, clearScreen)
	fmt.Fprintln(s.out, render.Snapshot(snap))
	fmt.Fprintln(s.out)
	fmt.Fprint(s.out, render.Help()+"\n> ")
}

func (s *screen) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// readLines forwards lines from r until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	if r == nil {
		r = os.Stdin
	}
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
