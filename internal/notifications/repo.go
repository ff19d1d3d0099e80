package notifications

import (
	"context"
	"time"
)

// Repo persists notifications.
type Repo interface {
	Create(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
}
