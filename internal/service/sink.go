// Package service holds the application's business logic on top of the repositories.
package service

import (
	"context"

	"socialnet/internal/models"
)

// NotificationSink pushes a committed notification to online clients.
// Deliver is best-effort and must not block on slow consumers.
type NotificationSink interface {
	Deliver(ctx context.Context, n *models.Notification)
}

type discardSink struct{}

func (discardSink) Deliver(context.Context, *models.Notification) {}

func sinkOrDiscard(sink NotificationSink) NotificationSink {
	if sink == nil {
		return discardSink{}
	}
	return sink
}

// deliverAll hands notifications to the sink once their transaction committed.
func deliverAll(ctx context.Context, sink NotificationSink, notifications ...*models.Notification) {
	for _, n := range notifications {
		if n == nil || n.ID == 0 {
			continue
		}
		sink.Deliver(ctx, n)
	}
}
