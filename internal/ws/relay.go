package ws

import (
	"context"
	"encoding/json"

	"inmopresence/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay bridges the durable presence path into the broadcast channel.
// The table stays the system of record; the relay just forwards its
// online/offline transitions to connected subscribers so they can react
// faster than the poll interval, and enforces explicit offline by
// untracking the user from the channel membership.
type Relay struct {
	hub    *Hub
	redis  *redis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(hub *Hub, redisClient *redis.Client, logger *zap.Logger) *Relay {
	return &Relay{hub: hub, redis: redisClient, logger: logger}
}

// Start subscribes to the transition topic. With no redis configured the
// relay is inert; the hub still works for clients connected to this
// instance.
func (r *Relay) Start(ctx context.Context) {
	if r.redis == nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	sub := r.redis.Subscribe(ctx, service.TransitionChannel)

	go func() {
		defer close(r.done)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handle(msg.Payload)
			}
		}
	}()
}

func (r *Relay) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Relay) handle(payload string) {
	var ev service.TransitionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.logger.Warn("relay: bad transition payload", zap.Error(err))
		return
	}
	r.hub.Broadcast(map[string]interface{}{
		"type":  "transition",
		"event": ev.Event,
		"agent": ev.Agent,
	})
	if ev.Event == service.TransitionOffline {
		r.hub.UntrackUser(ev.Agent.UserID)
	}
}
