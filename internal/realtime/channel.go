package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/metrics"
)

//go:generate mockgen -destination=mock_broadcaster.go -package=realtime . Broadcaster

// Broadcaster pushes an event to a room. Delivery is best-effort: failures are
// handled internally and never reported to the caller.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload any)
}

// envelope travels over the backbone.
type envelope struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// frame is what a websocket client receives.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboxSize bounds events waiting for the backbone.
const outboxSize = 1024

type outgoing struct {
	env envelope
	msg []byte
}

// Channel is the process-wide realtime capability. Construct one per process,
// start it with Run and stop it by cancelling Run's context. While running,
// Broadcast only enqueues; a single pump publishes in order.
type Channel struct {
	hub     *Hub
	bb      Backbone
	log     *zap.Logger
	metrics metrics.Recorder

	outbox  chan outgoing
	running atomic.Bool
}

var _ Broadcaster = (*Channel)(nil)

// NewChannel wires a hub to a backbone.
func NewChannel(hub *Hub, bb Backbone, log *zap.Logger, m metrics.Recorder) *Channel {
	return &Channel{hub: hub, bb: bb, log: log, metrics: m, outbox: make(chan outgoing, outboxSize)}
}

// Hub exposes the local registry for the websocket handler.
func (c *Channel) Hub() *Hub { return c.hub }

// Broadcast hands the event to the backbone. It never waits on the network
// once Run has started; a full outbox or a failed publish still delivers the
// event to this process's connections.
func (c *Channel) Broadcast(ctx context.Context, room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("realtime: encode payload", zap.String("event", event), zap.Error(err))
		return
	}
	env := envelope{Room: room, Event: event, Data: data}
	msg, err := json.Marshal(env)
	if err != nil {
		c.log.Error("realtime: encode envelope", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.running.Load() {
		c.publish(ctx, outgoing{env: env, msg: msg})
		return
	}
	select {
	case c.outbox <- outgoing{env: env, msg: msg}:
	default:
		c.metrics.PublishFailed()
		c.log.Warn("realtime: outbox full, delivering locally",
			zap.String("room", room),
			zap.String("event", event),
		)
		c.deliver(env)
	}
}

func (c *Channel) publish(ctx context.Context, o outgoing) {
	if err := c.bb.Publish(ctx, o.msg); err != nil {
		c.metrics.PublishFailed()
		c.log.Warn("realtime: publish failed, delivering locally",
			zap.String("room", o.env.Room),
			zap.String("event", o.env.Event),
			zap.Error(err),
		)
		c.deliver(o.env)
	}
}

// pump drains the outbox until ctx is done. Leftovers reach local
// connections only.
func (c *Channel) pump(ctx context.Context) {
	for {
		select {
		case o := <-c.outbox:
			c.publish(ctx, o)
		case <-ctx.Done():
			for {
				select {
				case o := <-c.outbox:
					c.deliver(o.env)
				default:
					return
				}
			}
		}
	}
}

// Run consumes the backbone until ctx is done. Only the first call
// subscribes; later calls return immediately.
func (c *Channel) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Warn("realtime: channel already running")
		return nil
	}
	pumpCtx, stop := context.WithCancel(ctx)
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		c.pump(pumpCtx)
	}()
	err := c.bb.Subscribe(ctx, c.onMessage)
	stop()
	<-pumped
	return err
}

// Ping reports backbone health.
func (c *Channel) Ping(ctx context.Context) error { return c.bb.Ping(ctx) }

func (c *Channel) onMessage(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.log.Warn("realtime: bad envelope", zap.Error(err))
		return
	}
	c.deliver(env)
}

func (c *Channel) deliver(env envelope) {
	out, err := json.Marshal(frame{Event: env.Event, Data: env.Data})
	if err != nil {
		c.log.Error("realtime: encode frame", zap.Error(err))
		return
	}
	c.hub.Deliver(env.Room, out)
}
