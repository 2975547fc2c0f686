package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/72rs3/pharmacy-assistant-sub000/assistant"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget embeds on arbitrary tenant storefronts.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrame is one websocket push: either a full state snapshot or a
// navigation request for the embedding page.
type streamFrame struct {
	Type   string              `json:"type"`
	State  *assistant.Snapshot `json:"state,omitempty"`
	Target string              `json:"target,omitempty"`
}

// StreamController upgrades widget clients to a websocket and forwards
// controller pushes to them. Inbound traffic still goes through the REST
// endpoints; the socket is outbound-only.
type StreamController struct {
	Ctrl *assistant.Controller
}

func NewStreamController(ctrl *assistant.Controller) *StreamController {
	return &StreamController{Ctrl: ctrl}
}

// HandleConnection handles GET /v1/widget/stream.
func (sc *StreamController) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed: %v", err)
		return
	}
	client := &streamClient{
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	unsubscribe := sc.Ctrl.Subscribe(client)
	go client.writePump()
	go client.readPump(unsubscribe)
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// StateChanged and Navigate implement assistant.Listener. Frames are
// enqueued without blocking; a client that cannot keep up loses
// intermediate snapshots, never the connection.
func (c *streamClient) StateChanged(snap assistant.Snapshot) {
	c.enqueue(streamFrame{Type: "state", State: &snap})
}

func (c *streamClient) Navigate(target string) {
	c.enqueue(streamFrame{Type: "navigate", Target: target})
}

func (c *streamClient) enqueue(frame streamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[Stream] encoding frame: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[Stream] dropping frame for a slow client")
	}
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[Stream] write failed: %v", err)
				return
			}
		}
	}
}

// readPump drains the connection until the client goes away, then detaches
// the listener.
func (c *streamClient) readPump(unsubscribe func()) {
	defer func() {
		unsubscribe()
		c.close()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
