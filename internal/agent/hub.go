package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"canteen-backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub tracks the live websocket connection of each theater's agent and
// routes print frames out and acks back. One connection per theater; a new
// attach replaces (and closes) the old one.
type Hub struct {
	mu    sync.RWMutex
	conns map[int]*conn
}

type conn struct {
	theaterID int
	ws        *websocket.Conn
	writeMu   sync.Mutex

	pendingMu sync.Mutex
	pending   map[int]chan models.PrintAck

	closed chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{conns: make(map[int]*conn)}
}

// Attach registers a freshly upgraded agent connection and starts its read
// loop. Blocks until the connection drops.
func (h *Hub) Attach(theaterID int, ws *websocket.Conn) {
	c := &conn{
		theaterID: theaterID,
		ws:        ws,
		pending:   make(map[int]chan models.PrintAck),
		closed:    make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.conns[theaterID]; ok {
		old.close()
	}
	h.conns[theaterID] = c
	h.mu.Unlock()

	log.Printf("[Hub] agent connected (theater=%d)", theaterID)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.pingLoop()
	c.readLoop()

	h.mu.Lock()
	if h.conns[theaterID] == c {
		delete(h.conns, theaterID)
	}
	h.mu.Unlock()
	c.close()
	log.Printf("[Hub] agent disconnected (theater=%d)", theaterID)
}

func (c *conn) readLoop() {
	for {
		var ack models.PrintAck
		if err := c.ws.ReadJSON(&ack); err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if ack.JobID == 0 {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[ack.JobID]
		if ok {
			delete(c.pending, ack.JobID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- ack
		}
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
		c.ws.Close()
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			delete(c.pending, id)
			close(ch)
		}
		c.pendingMu.Unlock()
	})
}

// Healthy reports whether the theater's agent has a live channel
func (h *Hub) Healthy(theaterID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[theaterID]
	return ok
}

// ConnectedTheaters lists theaters with a live agent channel
func (h *Hub) ConnectedTheaters() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]int, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	return out
}

// Send pushes one print frame and waits for the agent's ack up to the
// timeout. Returns an unavailable error when no agent is connected, so the
// dispatcher can park the job until the channel returns.
func (h *Hub) Send(ctx context.Context, frame *models.PrintFrame, ackTimeout time.Duration) (*models.PrintAck, error) {
	h.mu.RLock()
	c, ok := h.conns[frame.TheaterID]
	h.mu.RUnlock()
	if !ok {
		return nil, models.NewUnavailableError("no agent connected", nil)
	}

	ackCh := make(chan models.PrintAck, 1)
	c.pendingMu.Lock()
	c.pending[frame.JobID] = ackCh
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, frame.JobID)
		c.pendingMu.Unlock()
	}

	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		c.close()
		return nil, models.NewUnavailableError("agent channel write failed", err)
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		cleanup()
		return nil, models.NewUnavailableError("send cancelled", ctx.Err())
	case <-c.closed:
		cleanup()
		return nil, models.NewUnavailableError("agent disconnected before ack", nil)
	case <-timer.C:
		cleanup()
		return nil, models.NewUnavailableError("ack timeout", nil)
	case ack, ok := <-ackCh:
		if !ok {
			return nil, models.NewUnavailableError("agent disconnected before ack", nil)
		}
		return &ack, nil
	}
}
