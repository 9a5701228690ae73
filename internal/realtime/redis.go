package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/backoff"
	"github.com/and161185/bidhouse/internal/redisclient"
)

// healthCheckPeriod must stay below the pool's read timeout so an idle
// subscription always has a PONG in flight.
const healthCheckPeriod = time.Second

var errSubscriptionClosed = errors.New("realtime: subscription closed")

// RedisBackbone publishes on a single Redis channel; the room travels inside
// the message envelope.
type RedisBackbone struct {
	pool    *redis.Pool
	channel string
	log     *zap.Logger
}

var _ Backbone = (*RedisBackbone)(nil)

// NewRedisBackbone uses pool for publishing and pool.Dial for the dedicated
// subscriber connection.
func NewRedisBackbone(pool *redis.Pool, channel string, log *zap.Logger) *RedisBackbone {
	return &RedisBackbone{pool: pool, channel: channel, log: log}
}

func (b *RedisBackbone) Publish(ctx context.Context, msg []byte) error {
	c, err := b.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = c.Do("PUBLISH", b.channel, msg)
	return err
}

func (b *RedisBackbone) Ping(ctx context.Context) error { return redisclient.Ping(ctx, b.pool) }

// Subscribe keeps a subscription alive, reconnecting with exponential backoff,
// until ctx is done.
func (b *RedisBackbone) Subscribe(ctx context.Context, handle func([]byte)) error {
	bo := backoff.NewExponential(200*time.Millisecond, 10*time.Second)
	for {
		err := b.listen(ctx, handle, bo.Reset)
		if ctx.Err() != nil {
			return nil
		}
		b.log.Warn("realtime: subscription lost",
			zap.String("channel", b.channel),
			zap.Duration("retryIn", bo.Next()),
			zap.Error(err),
		)
		if bo.Backoff(ctx) != nil {
			return nil
		}
	}
}

func (b *RedisBackbone) listen(ctx context.Context, handle func([]byte), onSubscribed func()) error {
	c, err := b.pool.Dial()
	if err != nil {
		return err
	}
	psc := redis.PubSubConn{Conn: c}
	defer psc.Close()

	if err := psc.Subscribe(b.channel); err != nil {
		return err
	}

	done := make(chan error, 1)
	subscribed := make(chan struct{}, 1)
	go func() {
		for {
			switch v := psc.Receive().(type) {
			case error:
				done <- v
				return
			case redis.Message:
				handle(v.Data)
			case redis.Subscription:
				if v.Count == 0 {
					done <- errSubscriptionClosed
					return
				}
				if v.Kind == "subscribe" {
					select {
					case subscribed <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	ticker := time.NewTicker(healthCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := psc.Ping(""); err != nil {
				return err
			}
		case <-subscribed:
			b.log.Info("realtime: subscribed", zap.String("channel", b.channel))
			onSubscribed()
		case <-ctx.Done():
			_ = psc.Unsubscribe()
			return nil
		case err := <-done:
			return err
		}
	}
}
