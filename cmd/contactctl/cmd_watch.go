package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/model"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchNotify bool

var errFeedClosed = errors.New("message feed closed")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the message list live",
	Long: `Keep a live copy of the message list and print the counters after every
change. New unread messages are announced unless --notify=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return runWatch(cmd.Context(), cmd.OutOrStdout(), e.repo, watchNotify)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNotify, "notify", true, "Announce new unread messages")
}

// lockedWriter serializes writes from the engine and the watch loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

// printNotifier announces new messages on the terminal.
type printNotifier struct {
	out     *lockedWriter
	enabled bool
}

func (n *printNotifier) Permitted() bool { return n.enabled }

func (n *printNotifier) Notify(m *model.ContactMessage) {
	n.out.printf("%s\n  %s\n", dashboard.NotificationTitle, dashboard.NotificationBody(m))
}

func runWatch(ctx context.Context, w io.Writer, repo repository.ContactRepository, notify bool) error {
	out := &lockedWriter{w: w}
	engine := dashboard.NewEngine(repo, dashboard.WithNotifier(&printNotifier{out: out, enabled: notify}))

	g, gctx := errgroup.WithContext(ctx)
	events := engine.Watch(gctx)
	g.Go(func() error {
		if err := engine.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errFeedClosed
		}
		return nil
	})
	g.Go(func() error {
		for range events {
			c := engine.Counters()
			out.printf("%d total, %d unread\n", c.Total, c.Unread)
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
