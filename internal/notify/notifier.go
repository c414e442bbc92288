// Package notify delivers run-outcome summaries to operator channels.
// Delivery is best-effort; the pipeline never fails because a
// notification could not be sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// Sender delivers one formatted message to a channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Notifier formats run outcomes and fans them out to every configured
// sender.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

func NewNotifier(logger *slog.Logger, senders ...Sender) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{senders: senders, logger: logger}
}

// RunFinished reports a terminal run to every channel. Send failures are
// logged per sender and never returned.
func (n *Notifier) RunFinished(ctx context.Context, run *newsroom.Run) {
	if len(n.senders) == 0 {
		return
	}
	msg := formatRun(run)
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.Warn("run notification failed", "channel", s.Name(), "run_id", run.ID, "err", err)
		}
	}
}

func formatRun(run *newsroom.Run) string {
	var b strings.Builder
	switch run.Status {
	case newsroom.RunStatusCompleted:
		fmt.Fprintf(&b, "Pipeline run %s completed: %d article(s) published.", run.ID, run.ArticleCount)
	case newsroom.RunStatusCancelled:
		fmt.Fprintf(&b, "Pipeline run %s cancelled after %d article(s).", run.ID, run.ArticleCount)
	default:
		fmt.Fprintf(&b, "Pipeline run %s failed with %d article(s).", run.ID, run.ArticleCount)
	}
	if run.Error != nil && *run.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", *run.Error)
	}
	if run.FinishedAt != nil {
		fmt.Fprintf(&b, "\nDuration: %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	return b.String()
}
