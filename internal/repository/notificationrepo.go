package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bidhouse/internal/model"
)

// NotificationRepository serves a recipient's inbox. Every call is scoped to the owner.
type NotificationRepository interface {
	// ListByUser returns the newest notifications first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)

	// CountUnread returns the number of unread notifications.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead flags one notification as read; errs.ErrNotFound if it is not the user's.
	MarkRead(ctx context.Context, userID, id uuid.UUID) error

	// MarkAllRead flags every unread notification and returns how many changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes one notification; errs.ErrNotFound if it is not the user's.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
