package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnect_UnreachableFails(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// port 1 is reserved and refuses connections on loopback
	p, err := Connect(ctx, "127.0.0.1:1", Options{}, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Nil(t, p)
}

func TestConnect_CancelledDuringRetry(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, "127.0.0.1:1", Options{Retries: 3}, zaptest.NewLogger(t))
	require.Error(t, err)
}
