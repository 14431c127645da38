package notifications

import (
	"context"

	"socialnet/internal/models"
	"socialnet/internal/observability"
)

// Dispatcher pushes committed notifications to connected clients. With Redis
// it publishes to the recipient's channel so every instance's hub sees it;
// without Redis it writes straight to the local hub.
type Dispatcher struct {
	notifier *Notifier
	hub      *Hub
}

// NewDispatcher builds a dispatcher; either argument may be nil.
func NewDispatcher(notifier *Notifier, hub *Hub) *Dispatcher {
	return &Dispatcher{notifier: notifier, hub: hub}
}

// Deliver is best-effort: failures are logged and counted, never returned.
func (d *Dispatcher) Deliver(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	payload, err := EncodeEvent(EventNotification, payloadFor(n))
	if err != nil {
		d.fail(ctx, n, err)
		return
	}
	if err := d.send(ctx, n.RecipientID, payload); err != nil {
		d.fail(ctx, n, err)
	}
}

// Publish pushes a state-change event that has no stored notification, such
// as a removed friendship. Best-effort like Deliver.
func (d *Dispatcher) Publish(ctx context.Context, userID uint, eventType string, payload interface{}) {
	msg, err := EncodeEvent(eventType, payload)
	if err == nil {
		err = d.send(ctx, userID, msg)
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, "realtime_publish", err,
			"event", eventType, "user_id", userID)
	}
}

// PublishAll pushes an event to every connected client on every instance.
func (d *Dispatcher) PublishAll(ctx context.Context, eventType string, payload interface{}) {
	msg, err := EncodeEvent(eventType, payload)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "realtime_broadcast", err, "event", eventType)
		return
	}
	switch {
	case d.notifier.Enabled():
		err = d.notifier.PublishBroadcast(ctx, msg)
	case d.hub != nil:
		d.hub.BroadcastAll(msg)
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, "realtime_broadcast", err, "event", eventType)
	}
}

// send routes through Redis when available so every instance's hub sees it.
func (d *Dispatcher) send(ctx context.Context, userID uint, msg string) error {
	switch {
	case d.notifier.Enabled():
		return d.notifier.PublishUser(ctx, userID, msg)
	case d.hub != nil:
		d.hub.Broadcast(userID, msg)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, n *models.Notification, err error) {
	observability.NotificationDeliveryFailures.Inc()
	observability.LogAsyncOperationError(ctx, "notification_delivery", err,
		"notification_id", n.ID, "recipient_id", n.RecipientID)
}
