package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stepflow/internal/executor"
	"stepflow/internal/services"
	"stepflow/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	EventProgress       = "progress"
	EventResultsChanged = "results_changed"

	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type Event struct {
	Type       string    `json:"type"`
	StepIndex  int       `json:"step_index,omitempty"`
	TotalSteps int       `json:"total_steps,omitempty"`
	StepName   string    `json:"step_name,omitempty"`
	Message    string    `json:"message,omitempty"`
	Time       time.Time `json:"time"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans progress and result-change events out to websocket clients.
// Slow clients drop events rather than block the batch.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *zap.SugaredLogger
}

var (
	_ executor.ProgressSink   = (*Hub)(nil)
	_ services.ChangeObserver = (*Hub)(nil)
)

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = logger.L()
	}
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

func (h *Hub) OnProgress(stepIndex, totalSteps int, stepName, message string) {
	h.broadcast(Event{
		Type:       EventProgress,
		StepIndex:  stepIndex,
		TotalSteps: totalSteps,
		StepName:   stepName,
		Message:    message,
		Time:       time.Now(),
	})
}

func (h *Hub) NotifyChanged() {
	h.broadcast(Event{Type: EventResultsChanged, Time: time.Now()})
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorf("Failed to encode event: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.log.Debug("websocket client is slow, dropping event")
		}
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(cl)
	h.log.Debugf("📡 progress client connected (%d total)", h.Clients())

	go h.writePump(cl)

	// drain reads so control frames are processed and close is noticed
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(cl)
	conn.Close()
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) ProgressWebSocket(c *gin.Context) {
	h.hub.ServeWS(c)
}
