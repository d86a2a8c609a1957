// Package network contains the WebSocket subscriber used to watch a running
// capture service from another process.
package network

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mxous/BongoCat/internal/device"
	"github.com/mxous/BongoCat/internal/protocol"
)

// WSClient subscribes to the event stream of a local capture service
type WSClient struct {
	hostAddr       string
	token          string
	mode           string
	reconnectDelay time.Duration
	send           chan protocol.Message
	done           chan struct{}
	closeOnce      sync.Once

	// Callbacks
	OnEvent  func(ev device.DeviceEvent)
	OnStatus func(st device.Status)
	OnError  func(request protocol.MessageType, msg string)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a new WebSocket client. If mode is non-empty the client
// asks the service to start capture in that mode on every (re)connect.
func NewWSClient(hostAddr, token, mode string) *WSClient {
	return &WSClient{
		hostAddr:       hostAddr,
		token:          token,
		mode:           mode,
		reconnectDelay: 5 * time.Second,
		send:           make(chan protocol.Message, 16),
		done:           make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		select {
		case <-c.done:
			return
		case <-time.After(c.reconnectDelay):
			log.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *WSClient) url() string {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	if c.token != "" {
		u.RawQuery = url.Values{"token": {c.token}}.Encode()
	}
	return u.String()
}

func (c *WSClient) connect() {
	log.Printf("WS Client: Connecting to %s", c.hostAddr)

	conn, _, err := websocket.DefaultDialer.Dial(c.url(), nil)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)

	log.Println("WS Client: Connected")

	if c.mode != "" {
		c.StartListening(c.mode)
	} else {
		c.RequestStatus()
	}

	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(conn)
	}()

	c.readPump(conn)

	// Unblock the write pump if the read side failed first
	conn.Close()
	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("WS Client: Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeDeviceChanged:
		var ev device.DeviceEvent
		if err := protocol.DecodePayload(msg, &ev); err != nil {
			log.Printf("WS Client: Bad device event: %v", err)
			return
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}

	case protocol.TypeStatus:
		var st device.Status
		if err := protocol.DecodePayload(msg, &st); err != nil {
			log.Printf("WS Client: Bad status: %v", err)
			return
		}
		if c.OnStatus != nil {
			c.OnStatus(st)
		}

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("WS Client: Bad error payload: %v", err)
			return
		}
		log.Printf("WS Client: Request %s failed: %s", payload.Request, payload.Error)
		if c.OnError != nil {
			c.OnError(payload.Request, payload.Error)
		}
	}
}

func (c *WSClient) enqueue(msg protocol.Message) {
	select {
	case c.send <- msg:
	default:
		log.Printf("WS Client: Send queue full, dropping %s", msg.Type)
	}
}

// StartListening asks the service to arm capture
func (c *WSClient) StartListening(mode string) {
	c.enqueue(protocol.Message{
		Type:    protocol.TypeStartListening,
		Payload: protocol.StartListeningPayload{Mode: mode},
	})
}

// RequestStatus asks the service for a status snapshot
func (c *WSClient) RequestStatus() {
	c.enqueue(protocol.Message{Type: protocol.TypeStatusRequest})
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
}

// IsConnected returns true if client is connected to the service
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
