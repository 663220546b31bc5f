package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// streamBuffer is each subscriber's event backlog. When a connection
	// falls behind, newer events overwrite nothing — they are simply not
	// queued for that subscriber. The periodic snapshot heartbeat resyncs
	// laggards, so dropping is safe and the connection survives.
	streamBuffer = 64

	// streamWriteWait bounds every websocket write. A client that cannot
	// accept a frame within this window is considered dead.
	streamWriteWait = 10 * time.Second

	// streamHeartbeat is how often an idle stream gets a fresh snapshot.
	// The heartbeat doubles as the keepalive: a quiet book still produces
	// frames, and broken connections fail the write and get reaped.
	streamHeartbeat = 15 * time.Second
)

// Broadcaster fans engine events out to stream subscribers. Each subscriber
// owns a buffered channel; Publish marshals once and delivers without ever
// blocking the publisher.
type Broadcaster struct {
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[uint64]chan []byte
	nextID  uint64
	dropped uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger.With("component", "stream"),
		subs:   make(map[uint64]chan []byte),
	}
}

// Subscribe registers a new subscriber and returns its id and event channel.
// The channel is closed by Unsubscribe or Close.
func (b *Broadcaster) Subscribe() (uint64, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan []byte, streamBuffer)
	b.subs[b.nextID] = ch
	b.logger.Info("stream subscribed", "id", b.nextID, "subscribers", len(b.subs))
	return b.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored, so it is safe after Close.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.logger.Info("stream unsubscribed", "id", id, "subscribers", len(b.subs))
}

// Publish delivers one event to every subscriber that has buffer room.
// Subscribers with a full backlog miss the event and catch up on their next
// heartbeat snapshot.
func (b *Broadcaster) Publish(evt StreamEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("failed to marshal stream event", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- data:
		default:
			b.dropped++
		}
	}
}

// Close removes every subscriber, ending their serve loops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many event deliveries were skipped on full backlogs.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// serveStream upgrades the connection and runs its write loop: an initial
// snapshot, then broadcast events as they come, with a heartbeat snapshot on
// idle. The read side exists only to notice the client going away.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeSnapshot(conn); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case data, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := s.writeSnapshot(conn); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(StreamEvent{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Data:      BuildSnapshot(s.provider),
	})
}
