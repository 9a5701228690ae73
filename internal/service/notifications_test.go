package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

type fakeInbox struct {
	listUser  uuid.UUID
	listLimit int
	listOut   []model.Notification

	markUser, markID uuid.UUID
	markErr          error
}

var _ repository.NotificationRepository = (*fakeInbox)(nil)

func (f *fakeInbox) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	f.listUser, f.listLimit = userID, limit
	return f.listOut, nil
}
func (f *fakeInbox) CountUnread(context.Context, uuid.UUID) (int, error) { return 7, nil }
func (f *fakeInbox) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	f.markUser, f.markID = userID, id
	return f.markErr
}
func (f *fakeInbox) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 3, nil }
func (f *fakeInbox) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func TestNotificationService_ListClampsLimit(t *testing.T) {
	t.Parallel()
	repo := &fakeInbox{}
	s := NewNotificationService(repo)
	user := newUser()

	for in, want := range map[int]int{0: 20, -3: 20, 5: 5, 100: 100, 500: 100} {
		_, err := s.List(context.Background(), user, in)
		require.NoError(t, err)
		require.Equal(t, want, repo.listLimit, "limit %d", in)
		require.Equal(t, user, repo.listUser)
	}
}

func TestNotificationService_Delegates(t *testing.T) {
	t.Parallel()
	repo := &fakeInbox{}
	s := NewNotificationService(repo)
	user, id := newUser(), newUser()

	require.NoError(t, s.MarkRead(context.Background(), user, id))
	require.Equal(t, user, repo.markUser)
	require.Equal(t, id, repo.markID)

	n, err := s.UnreadCount(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	changed, err := s.MarkAllRead(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, int64(3), changed)

	require.NoError(t, s.Delete(context.Background(), user, id))
}
