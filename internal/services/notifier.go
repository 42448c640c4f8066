// Package services provides the business logic of the ledger core: transaction
// submission, budget and goal evaluation, and recurring materialization.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"
)

// Notifier appends notification records and fans them out as AMQP events.
// The stored row is the source of truth; publishing is best effort and a
// missing client degrades to storage-only operation.
type Notifier struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewNotifier(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *Notifier {
	return &Notifier{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Notify persists a notification for the user and publishes the matching
// event. The append error is returned; a publish failure is only logged.
func (n *Notifier) Notify(ctx context.Context, userID string, kind core.NotificationKind, message string) (string, error) {
	id, err := n.storage.AppendNotification(ctx, core.Notification{
		UserID:  userID,
		Message: message,
		Kind:    kind,
	})
	if err != nil {
		return "", fmt.Errorf("append notification: %w", err)
	}

	if n.amqpClient == nil {
		return id, nil
	}

	event := amqp.NewNotificationEvent(id, userID, string(kind), message)
	if err := n.amqpClient.PublishNotification(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification event",
			"id", id, "user_id", userID, "error", err)
		// Don't fail - the notification is stored locally
	}

	return id, nil
}
