package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

// NotificationService is the recipient-facing inbox.
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type NotificationServiceImpl struct {
	repo repository.NotificationRepository
}

var _ NotificationService = (*NotificationServiceImpl)(nil)

func NewNotificationService(repo repository.NotificationRepository) *NotificationServiceImpl {
	return &NotificationServiceImpl{repo: repo}
}

// List returns the newest notifications; limit is clamped to [1, 100] with 20 as default.
func (s *NotificationServiceImpl) List(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultInboxLimit
	case limit > maxInboxLimit:
		limit = maxInboxLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
