package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const toastChannelPrefix = "toasts:"

// relayEnvelope wraps an event on the wire with the id of the instance that
// published it, so the relay can skip events it produced itself (those were
// already delivered to the local hub directly).
type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay carries toast events between gateway instances. The publish side
// is a bus sink; the subscribe side feeds events from other instances into the
// local hub.
type RedisRelay struct {
	id  string
	rdb *redis.Client
	log *zap.Logger
}

// localHub is the part of the websocket hub the relay needs: delivery plus a
// connection count to skip users with nobody connected here.
type localHub interface {
	Deliver(userID string, e Event)
	ConnectedClients(userID string) int
}

func NewRedisRelay(rdb *redis.Client, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{id: uuid.NewString(), rdb: rdb, log: log}
}

// Deliver implements Sink.
func (p *RedisRelay) Deliver(userID string, e Event) {
	payload, err := json.Marshal(relayEnvelope{Origin: p.id, Event: e})
	if err != nil {
		p.log.Error("marshal toast event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, toastChannelPrefix+userID, payload).Err(); err != nil {
		p.log.Warn("publish toast event",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// Run subscribes to every user's toast channel and relays events published by
// other instances into hub, for users with a connection on this instance. It
// blocks until ctx is done; run it in its own goroutine.
func (p *RedisRelay) Run(ctx context.Context, hub localHub) {
	sub := p.rdb.PSubscribe(ctx, toastChannelPrefix+"*")
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
			userID := strings.TrimPrefix(msg.Channel, toastChannelPrefix)
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				p.log.Warn("decode toast event", zap.Error(err))
				continue
			}
			if env.Origin == p.id {
				continue
			}
			if hub.ConnectedClients(userID) == 0 {
				continue
			}
			hub.Deliver(userID, env.Event)
		}
	}
}
