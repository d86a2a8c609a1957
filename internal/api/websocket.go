package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mxous/BongoCat/internal/device"
	"github.com/mxous/BongoCat/internal/protocol"
)

// ErrBroadcastFull is returned by Broadcast when the hub cannot keep up.
// The event is dropped.
var ErrBroadcastFull = errors.New("broadcast queue full")

const (
	broadcastQueue = 1024
	clientQueue    = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only listens on loopback; the UI's webview origin varies by platform
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	direct     chan directMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
}

// WebSocketClient represents a connected UI
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

type directMessage struct {
	client  *WebSocketClient
	message protocol.Message
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, broadcastQueue),
		direct:     make(chan directMessage, clientQueue),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: Client connected from %s. Total clients: %d", client.ip, n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: Client from %s disconnected. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case dm := <-m.direct:
			m.sendTo(dm.client, dm.message)

		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer: cut it loose rather than stall the hub
			close(client.send)
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) sendTo(client *WebSocketClient, message protocol.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal reply: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	if !m.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Broadcast queues a named payload for every client without blocking
func (m *WSManager) Broadcast(name string, payload any) error {
	msg := protocol.Message{Type: protocol.MessageType(name), Payload: payload}
	select {
	case m.broadcast <- msg:
		return nil
	default:
		return ErrBroadcastFull
	}
}

func (m *WSManager) reply(client *WebSocketClient, msg protocol.Message) {
	select {
	case m.direct <- directMessage{client: client, message: msg}:
	default:
		log.Printf("WS: Reply queue full, dropping %s for %s", msg.Type, client.ip)
	}
}

func (m *WSManager) clientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) stop() {
	close(m.shutdown)
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, clientQueue),
		ip:      r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		c.manager.reply(c, protocol.Message{Type: protocol.TypePong})

	case protocol.TypeStatusRequest:
		c.manager.reply(c, protocol.Message{Type: protocol.TypeStatus, Payload: c.manager.server.capture.Status()})

	case protocol.TypeStartListening:
		var payload protocol.StartListeningPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			c.replyError(msg.Type, err)
			return
		}
		if payload.Mode == "" {
			payload.Mode = c.manager.server.configMgr.Get().Capture.Mode
		}
		mode, err := device.ParseMode(payload.Mode)
		if err != nil {
			c.replyError(msg.Type, err)
			return
		}

		log.Printf("WS: Start listening (mode=%s) requested from %s", mode, c.ip)

		// Raw-input setup touches the target window; keep it off the read pump
		go func() {
			if err := c.manager.server.StartCapture(mode); err != nil {
				log.Printf("WS: Start listening failed: %v", err)
				c.replyError(msg.Type, err)
				return
			}
			c.manager.reply(c, protocol.Message{Type: protocol.TypeStatus, Payload: c.manager.server.capture.Status()})
		}()

	default:
		log.Printf("WS: Ignoring message type %q from %s", msg.Type, c.ip)
	}
}

func (c *WebSocketClient) replyError(request protocol.MessageType, err error) {
	c.manager.reply(c, protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.ErrorPayload{Request: request, Error: err.Error()},
	})
}
