// Package api serves captured device events to the UI layer over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/mxous/BongoCat/internal/config"
	"github.com/mxous/BongoCat/internal/device"
)

// Capture is the input capture service the server controls
type Capture interface {
	Start(mode device.Mode, p device.Publisher) error
	Status() device.Status
}

// Server provides HTTP API and the event stream
type Server struct {
	configMgr *config.Manager
	capture   Capture
	wsMgr     *WSManager

	handlerOnce sync.Once
	handler     http.Handler
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, capture Capture) *Server {
	s := &Server{
		configMgr: configMgr,
		capture:   capture,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the server's HTTP handler, starting the WebSocket hub on first use
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		go s.wsMgr.start()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/listen", s.handleListen)
		mux.HandleFunc("/api/status", s.handleStatus)
		mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
		mux.HandleFunc("/health", s.handleHealth)

		s.handler = s.authMiddleware(s.recoverMiddleware(mux))
	})
	return s.handler
}

// Start serves on 127.0.0.1:port. It blocks.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("API: Failed to listen on %s: %v", addr, err)
		return err
	}
	log.Printf("API: Serving on %s", addr)

	server := &http.Server{Handler: s.Handler()}
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: Server stopped: %v", err)
		return err
	}
	return nil
}

// Publish implements device.Publisher by broadcasting to every connected client
func (s *Server) Publish(name string, payload any) error {
	return s.wsMgr.Broadcast(name, payload)
}

// StartCapture arms capture with the server as the publisher
func (s *Server) StartCapture(mode device.Mode) error {
	return s.capture.Start(mode, s)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: Recovered panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.configMgr.Get().General.APIToken; token != "" {
			if r.Header.Get("Authorization") != "Bearer "+token && r.URL.Query().Get("token") != token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleListen handles POST /api/listen?mode=<mode>
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modeStr := r.URL.Query().Get("mode")
	if modeStr == "" {
		modeStr = s.configMgr.Get().Capture.Mode
	}
	mode, err := device.ParseMode(modeStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("API: Start listening (mode=%s) requested from %s", mode, r.RemoteAddr)
	if err := s.StartCapture(mode); err != nil {
		log.Printf("API: Start listening failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.capture.Status())
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statusResponse{
		Status:  s.capture.Status(),
		Clients: s.wsMgr.clientCount(),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type statusResponse struct {
	device.Status
	Clients int `json:"clients"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
	}
}

// Close stops the WebSocket hub
func (s *Server) Close() {
	s.wsMgr.stop()
}
