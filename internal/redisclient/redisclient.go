// Package redisclient builds redigo connection pools with sane timeouts.
package redisclient

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/backoff"
)

const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 1500 * time.Millisecond
	writeTimeout = 1500 * time.Millisecond
)

// Options tunes the pool. Zero values pick defaults.
type Options struct {
	Password  string
	MaxIdle   int
	MaxActive int
	Retries   int // extra dial attempts before giving up
}

// Connect creates a pool and verifies it with a PING, retrying with backoff.
func Connect(ctx context.Context, addr string, opt Options, log *zap.Logger) (*redis.Pool, error) {
	if opt.MaxIdle <= 0 {
		opt.MaxIdle = 16
	}
	if opt.MaxActive <= 0 {
		opt.MaxActive = 128
	}

	dialOpts := []redis.DialOption{
		redis.DialConnectTimeout(dialTimeout),
		redis.DialReadTimeout(readTimeout),
		redis.DialWriteTimeout(writeTimeout),
	}
	if opt.Password != "" {
		dialOpts = append(dialOpts, redis.DialPassword(opt.Password))
	}
	p := &redis.Pool{
		MaxIdle:     opt.MaxIdle,
		MaxActive:   opt.MaxActive,
		Wait:        true,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, dialOpts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			// No need to test if it's been recycled less than 1 sec.
			if time.Since(t) < time.Second {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	bo := backoff.NewExponential(500*time.Millisecond, 5*time.Second)
	var err error
	for attempt := 0; attempt <= opt.Retries; attempt++ {
		if attempt > 0 {
			if werr := bo.Backoff(ctx); werr != nil {
				return nil, werr
			}
		}
		if err = Ping(ctx, p); err == nil {
			log.Info("redis connected", zap.String("addr", addr))
			return p, nil
		}
		log.Warn("redis dial failed", zap.String("addr", addr), zap.Int("attempt", attempt), zap.Error(err))
	}
	_ = p.Close()
	return nil, err
}

// Ping borrows a connection and sends PING.
func Ping(ctx context.Context, p *redis.Pool) error {
	c, err := p.GetContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = c.Do("PING")
	return err
}
