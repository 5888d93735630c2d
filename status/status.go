// Package status broadcasts conversion events to connected browser tabs over
// websockets.
package status

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Kind int

const (
	KindInfo Kind = iota
	KindError
	KindProgress
)

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindError:
		return []byte("error"), nil
	case KindProgress:
		return []byte("progress"), nil
	}
	return []byte("info"), nil
}

type Event struct {
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
	Kind     Kind      `json:"kind"`
	Progress float32   `json:"progress,omitempty"`
}

const (
	clientQueue  = 32
	pingInterval = 30 * time.Second
	writeTimeout = 40 * time.Second
)

var (
	logger     = zap.NewNop()
	loggerLock sync.RWMutex
)

func SetLogger(l *zap.Logger) {
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger = l
}

func log() *zap.Logger {
	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

// Hub fans events out to subscribers. A new subscriber first receives the
// latest event. Subscribers that fall behind miss events.
type Hub struct {
	events chan *Event

	mu      sync.Mutex
	clients map[*client]bool
	last    []byte
}

func NewHub() *Hub {
	h := &Hub{
		events:  make(chan *Event, 16),
		clients: make(map[*client]bool),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for e := range h.events {
		data, err := json.Marshal(e)
		if err != nil {
			log().Error("marshal status", zap.Error(err))
			continue
		}
		h.mu.Lock()
		h.last = data
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
			}
		}
		h.mu.Unlock()
	}
}

// Publish queues e without blocking; it is dropped when the queue is full.
func (h *Hub) Publish(e *Event) {
	select {
	case h.events <- e:
	default:
	}
}

func (h *Hub) subscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.unsubscribe(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log().Debug("ws write msg error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log().Debug("ws write ping error", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains control frames so pongs and close messages are processed.
func (c *client) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log().Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientQueue)}
	h.subscribe(c)
	go c.writePump()
	go c.readPump()
}

var defaultHub = NewHub()

// Handler serves the process wide hub fed by Info, Error and Progress.
func Handler(w http.ResponseWriter, r *http.Request) {
	defaultHub.ServeHTTP(w, r)
}

func publish(kind Kind, progress float32, msg string) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	if kind == KindError {
		log().Warn(msg)
	} else {
		log().Info(msg, zap.Float32("progress", progress))
	}
	defaultHub.Publish(&Event{Message: msg, Time: time.Now(), Kind: kind, Progress: progress})
}

func Info(format string, a ...interface{}) {
	publish(KindInfo, 0, fmt.Sprintf(format, a...))
}

func Error(format string, a ...interface{}) {
	publish(KindError, 0, fmt.Sprintf(format, a...))
}

func Progress(progress float32, format string, a ...interface{}) {
	publish(KindProgress, progress, fmt.Sprintf(format, a...))
}
