package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/realtime"
)

type recorderFunc func(ctx context.Context, n model.Notification) error

func (f recorderFunc) InsertNotification(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

func TestRecord_PersistsBeforeReturning(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	f := New(realtime.NewMockBroadcaster(ctrl), zaptest.NewLogger(t))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	tr := Transition{
		Kind:      model.NotifyOutbid,
		Recipient: uuid.Must(uuid.NewV4()),
		ItemID:    uuid.Must(uuid.NewV4()),
		Title:     "Lamp",
		Amount:    decimal.NewFromInt(150),
	}
	var stored []model.Notification
	n, err := f.Record(context.Background(), recorderFunc(func(_ context.Context, n model.Notification) error {
		stored = append(stored, n)
		return nil
	}), tr)
	require.NoError(t, err)
	require.Equal(t, []model.Notification{n}, stored)
	require.Equal(t, tr.Recipient, n.UserID)
	require.Equal(t, tr.ItemID, *n.ItemID)
	require.Equal(t, model.NotifyOutbid, n.Type)
	require.Equal(t, fixed, n.CreatedAt)
	require.False(t, n.IsRead)
	require.Contains(t, n.Message, "150.00")
}

func TestRecord_StoreErrorPropagates(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	f := New(realtime.NewMockBroadcaster(ctrl), zaptest.NewLogger(t))
	boom := errors.New("boom")

	_, err := f.Record(context.Background(), recorderFunc(func(context.Context, model.Notification) error {
		return boom
	}), Transition{Kind: model.NotifyNewBid})
	require.ErrorIs(t, err, boom)
}

func TestDeliver_PushesToRecipientRooms(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	bc := realtime.NewMockBroadcaster(ctrl)
	f := New(bc, zaptest.NewLogger(t))

	a := model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: uuid.Must(uuid.NewV4()), Type: model.NotifyOutbid}
	b := model.Notification{ID: uuid.Must(uuid.NewV4()), UserID: uuid.Must(uuid.NewV4()), Type: model.NotifyNewBid}

	gomock.InOrder(
		bc.EXPECT().Broadcast(gomock.Any(), realtime.UserRoom(a.UserID), convert.EventNotification, convert.ToNotification(a)),
		bc.EXPECT().Broadcast(gomock.Any(), realtime.UserRoom(b.UserID), convert.EventNotification, convert.ToNotification(b)),
	)
	f.Deliver(context.Background(), []model.Notification{a, b})
	f.Deliver(context.Background(), nil)
}

func TestMessage_PerKind(t *testing.T) {
	t.Parallel()
	base := Transition{Title: "Clock", Amount: decimal.RequireFromString("99.5")}
	cases := map[model.NotificationType]string{
		model.NotifyOutbid:        `You have been outbid on "Clock". The current price is 99.50.`,
		model.NotifyNewBid:        `Your item "Clock" received a new bid of 99.50.`,
		model.NotifyAuctionWon:    `Congratulations! You won "Clock" for 99.50. Please complete payment.`,
		model.NotifyItemSold:      `Your item "Clock" sold for 99.50. Awaiting payment.`,
		model.NotifyAuctionFailed: `The auction for "Clock" ended without any bids.`,
	}
	for kind, want := range cases {
		tr := base
		tr.Kind = kind
		require.Equal(t, want, Message(tr), kind)
	}
}
