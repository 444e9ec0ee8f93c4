package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/tamasan/deskpet/internal/pet"
)

const wsWriteTimeout = 5 * time.Second

// Hub fans coordinator events out to websocket clients. A slow client
// only loses its own messages; writes to it time out independently.
type Hub struct {
	log     *slog.Logger
	clients sync.Map // client id -> *wsClient
	nextID  atomic.Int64
}

type wsClient struct {
	conn *websocket.Conn
	id   int64
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger}
}

// Run consumes events until ctx is done or the channel closes, then
// disconnects everyone.
func (h *Hub) Run(ctx context.Context, events <-chan pet.Event) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev pet.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("event marshal failed", "kind", ev.Kind, "error", err)
		return
	}

	h.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			h.log.Debug("event write failed, dropping client", "client", c.id, "error", err)
			h.clients.Delete(key)
			c.conn.CloseNow()
		}
		cancel()
		return true
	})
}

func (h *Hub) closeAll() {
	h.clients.Range(func(key, value any) bool {
		value.(*wsClient).conn.CloseNow()
		h.clients.Delete(key)
		return true
	})
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client goes away. Inbound messages are ignored; the stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}

	id := h.nextID.Add(1)
	client := &wsClient{conn: conn, id: id}
	h.clients.Store(id, client)
	h.log.Debug("event client connected", "client", id)

	defer func() {
		h.clients.Delete(id)
		conn.CloseNow()
		h.log.Debug("event client disconnected", "client", id)
	}()

	// Read loop exists only to notice the close.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}
