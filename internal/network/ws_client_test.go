package network

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxous/BongoCat/internal/api"
	"github.com/mxous/BongoCat/internal/config"
	"github.com/mxous/BongoCat/internal/device"
	"github.com/mxous/BongoCat/internal/protocol"
)

type stubCapture struct {
	mu      sync.Mutex
	started []device.Mode
	err     error
}

func (s *stubCapture) Start(mode device.Mode, _ device.Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, mode)
	return s.err
}

func (s *stubCapture) Status() device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return device.Status{HookListening: len(s.started) > 0 && s.err == nil}
}

func startService(t *testing.T, token string, capture api.Capture) (*api.Server, string) {
	t.Helper()
	mgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	cfg := config.DefaultConfig()
	cfg.General.APIToken = token
	mgr.Set(cfg)

	srv := api.NewServer(mgr, capture)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, strings.TrimPrefix(ts.URL, "http://")
}

func TestWSClientReceivesEvents(t *testing.T) {
	capture := &stubCapture{}
	srv, addr := startService(t, "secret", capture)

	statuses := make(chan device.Status, 4)
	events := make(chan device.DeviceEvent, 4)

	c := NewWSClient(addr, "secret", "hook")
	c.OnStatus = func(st device.Status) { statuses <- st }
	c.OnEvent = func(ev device.DeviceEvent) { events <- ev }
	c.Start()
	defer c.Close()

	select {
	case st := <-statuses:
		assert.True(t, st.HookListening)
	case <-time.After(5 * time.Second):
		t.Fatal("no status reply")
	}
	assert.True(t, c.IsConnected())

	require.NoError(t, srv.Publish(device.EventName, device.NewButtonEvent(true, "Left")))

	select {
	case ev := <-events:
		assert.Equal(t, device.NewButtonEvent(true, "Left"), ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no device event")
	}
}

func TestWSClientReportsErrors(t *testing.T) {
	_, addr := startService(t, "", &stubCapture{err: device.ErrWindowNotFound})

	errs := make(chan protocol.MessageType, 1)
	c := NewWSClient(addr, "", "raw")
	c.OnError = func(request protocol.MessageType, msg string) {
		assert.Contains(t, msg, device.ErrWindowNotFound.Error())
		errs <- request
	}
	c.Start()
	defer c.Close()

	select {
	case req := <-errs:
		assert.Equal(t, protocol.TypeStartListening, req)
	case <-time.After(5 * time.Second):
		t.Fatal("no error reply")
	}
}

func TestWSClientWithoutModeRequestsStatus(t *testing.T) {
	capture := &stubCapture{}
	_, addr := startService(t, "", capture)

	statuses := make(chan device.Status, 1)
	c := NewWSClient(addr, "", "")
	c.OnStatus = func(st device.Status) { statuses <- st }
	c.Start()
	defer c.Close()

	select {
	case st := <-statuses:
		assert.False(t, st.HookListening)
	case <-time.After(5 * time.Second):
		t.Fatal("no status reply")
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	assert.Empty(t, capture.started)
}

func TestWSClientURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:1/ws", NewWSClient("127.0.0.1:1", "", "").url())
	assert.Equal(t, "ws://127.0.0.1:1/ws?token=a+b", NewWSClient("127.0.0.1:1", "a b", "").url())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewWSClient("127.0.0.1:1", "", "")
	c.Close()
	c.Close()
}
