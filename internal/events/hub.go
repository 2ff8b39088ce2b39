// Package events рассылает события синхронизации подписчикам по websocket
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/syncengine"
	"github.com/iudanet/possync/pkg/api"
)

// Типы событий
const (
	EventNetworkChanged   = "network_changed"
	EventPassCompleted    = "pass_completed"
	EventConflictDetected = "conflict_detected"
	EventItemFailed       = "item_failed"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]bool // types пусто - все события
}

func (c *client) wants(eventType string) bool {
	return len(c.types) == 0 || c.types[eventType]
}

type message struct {
	eventType string
	data      []byte
}

// Hub держит websocket-подписчиков и рассылает им события engine и монитора.
// Реализует syncengine.Observer.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	logger     *slog.Logger
	now        func() time.Time
	upgrader   websocket.Upgrader
	count      int
	mu         sync.RWMutex
}

// NewHub создает hub; рассылка начинается после вызова Run
func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     sameOrigin,
	}
	return h
}

// sameOrigin пропускает клиентов без Origin (CLI, скрипты) и страницы с того же хоста
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Run обслуживает регистрацию и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.count = 0
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.count = len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Event subscriber connected", "remote", c.conn.RemoteAddr().String(), "total", h.count)

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				if !c.wants(msg.eventType) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Warn("Dropping slow event subscriber", "remote", c.conn.RemoteAddr().String())
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.count = len(h.clients)
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish ставит событие в очередь рассылки. Не блокируется: при переполненном
// буфере событие теряется.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(api.SyncEvent{
		Time:    h.now().UTC(),
		Type:    eventType,
		Payload: payload,
	})
	if err != nil {
		h.logger.Error("Failed to marshal event", "type", eventType, "error", err)
		return
	}

	select {
	case h.broadcast <- message{eventType: eventType, data: data}:
	case <-h.done:
	default:
		h.logger.Warn("Event buffer full, event dropped", "type", eventType)
	}
}

// PassCompleted implements syncengine.Observer
func (h *Hub) PassCompleted(res syncengine.PassResult, d time.Duration) {
	if res.InProgress {
		return
	}
	h.Publish(EventPassCompleted, map[string]any{
		"processed":   res.Processed,
		"successful":  res.Successful,
		"failed":      res.Failed,
		"conflicts":   res.Conflicts,
		"duration_ms": d.Milliseconds(),
	})
}

// ItemProcessed implements syncengine.Observer. Рассылаются только окончательные отказы.
func (h *Hub) ItemProcessed(item *models.SyncQueueItem, outcome syncengine.Outcome) {
	if outcome != syncengine.OutcomeFailed {
		return
	}
	h.Publish(EventItemFailed, map[string]any{
		"queue_item_id": item.ID,
		"table_name":    item.TableName,
		"record_id":     item.RecordID,
		"operation":     item.OperationType,
		"error":         item.ErrorMessage,
	})
}

// ConflictDetected implements syncengine.Observer
func (h *Hub) ConflictDetected(c *models.DataConflict) {
	h.Publish(EventConflictDetected, c)
}

// NetworkChanged подписывается на connectivity.Monitor через OnChange
func (h *Hub) NetworkChanged(prev, cur models.NetworkState) {
	h.Publish(EventNetworkChanged, map[string]any{
		"previous": prev.Mode,
		"current":  cur,
	})
}

// ServeHTTP обрабатывает GET /api/v1/sync/events. Параметр types
// (через запятую) ограничивает набор событий.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		types: parseTypes(r.URL.Query().Get("types")),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	types := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	return types
}

// readPump читает только служебные кадры: pong и close
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Event subscriber read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
