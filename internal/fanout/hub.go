package fanout

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// replayTTL bounds how long a channel's replay log lives in Redis after its
// last event.
const replayTTL = 24 * time.Hour

type subscriber struct {
	ch chan Event
}

// Hub is the in-process pub/sub fanout. Publication never blocks: slow
// subscribers drop events once their buffer is full. A nil Redis client is
// allowed; replay is then unavailable and Subscribe/Publish still work.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	counters    map[string]int64 // next event ID per channel when Redis is absent
	rdb         *redis.Client
}

// NewHub builds a hub. rdb may be nil.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		subscribers: make(map[string][]*subscriber),
		counters:    make(map[string]int64),
		rdb:         rdb,
	}
}

// Subscribe registers a listener on a channel and returns its event stream
// plus an unsubscribe func. The stream is closed on unsubscribe.
func (h *Hub) Subscribe(channel string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, 256)}
	h.subscribers[channel] = append(h.subscribers[channel], sub)

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				h.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
	return sub.ch, unsub
}

// Publish appends the event to the channel's replay log (when Redis is
// configured), assigns its ID, and hands it to every current subscriber.
// Fire-and-forget: full subscriber buffers drop the event.
func (h *Hub) Publish(channel, eventType string, data interface{}) {
	ev := Event{Type: eventType, Data: data}
	ev.ID = h.appendLog(channel, &ev)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers[channel] {
		select {
		case sub.ch <- ev:
		default:
			// drop if full
		}
	}
}

// appendLog stores the event for replay and returns its assigned ID.
func (h *Hub) appendLog(channel string, ev *Event) int64 {
	if h.rdb == nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		id := h.counters[channel]
		h.counters[channel] = id + 1
		return id
	}

	ctx := context.Background()
	key := logKey(channel)
	payload, _ := json.Marshal(ev)
	n, err := h.rdb.RPush(ctx, key, string(payload)).Result()
	if err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("fanout replay log append failed")
		return 0
	}
	h.rdb.Expire(ctx, key, replayTTL)
	return n - 1
}

// ReplayFrom returns the channel's logged events at positions >= fromID.
// Without Redis there is no log and the result is empty.
func (h *Hub) ReplayFrom(ctx context.Context, channel string, fromID int64) ([]Event, error) {
	if h.rdb == nil {
		return nil, nil
	}
	items, err := h.rdb.LRange(ctx, logKey(channel), fromID, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(items))
	for i, item := range items {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		ev.ID = fromID + int64(i)
		events = append(events, ev)
	}
	return events, nil
}

func logKey(channel string) string {
	return "procurement:stream:" + channel
}

// ParseLastEventID reads an SSE Last-Event-ID header; absent or malformed
// headers resume from the start.
func ParseLastEventID(header string) int64 {
	if header == "" {
		return 0
	}
	id, _ := strconv.ParseInt(header, 10, 64)
	return id
}
