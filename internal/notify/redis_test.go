package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type stubHub struct {
	mu        sync.Mutex
	connected map[string]int
	delivered []Event
}

func (s *stubHub) Deliver(_ string, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, e)
}

func (s *stubHub) ConnectedClients(userID string) int {
	return s.connected[userID]
}

func (s *stubHub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func relayPair(t *testing.T, hub *stubHub) (local, remote *RedisRelay) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	local = NewRedisRelay(rdb, nil)
	remote = NewRedisRelay(rdb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go local.Run(ctx, hub)
	// give the pattern subscription time to register
	time.Sleep(100 * time.Millisecond)
	return local, remote
}

func TestRelayDeliversEventsFromOtherInstances(t *testing.T) {
	hub := &stubHub{connected: map[string]int{"u1": 1}}
	_, remote := relayPair(t, hub)

	remote.Deliver("u1", Event{Kind: "toast", Toast: Toast{ID: "t1", Type: ToastInfo, Message: "hi"}})

	assert.Eventually(t, func() bool { return hub.count() == 1 }, time.Second, 10*time.Millisecond)
	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Equal(t, "t1", hub.delivered[0].Toast.ID)
}

func TestRelaySkipsItsOwnEvents(t *testing.T) {
	hub := &stubHub{connected: map[string]int{"u1": 1}}
	local, _ := relayPair(t, hub)

	// the local hub already saw this event through the bus sink; relaying it
	// again would duplicate it
	local.Deliver("u1", Event{Kind: "toast", Toast: Toast{ID: "t1"}})

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, hub.count())
}

func TestRelaySkipsUsersWithoutLocalConnections(t *testing.T) {
	hub := &stubHub{connected: map[string]int{}}
	_, remote := relayPair(t, hub)

	remote.Deliver("u2", Event{Kind: "toast", Toast: Toast{ID: "t2"}})

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, hub.count())
}
