package device

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Publisher that keeps everything it receives
type recorder struct {
	mu     sync.Mutex
	names  []string
	events []DeviceEvent
	err    error
}

func (r *recorder) Publish(name string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.names = append(r.names, name)
	r.events = append(r.events, payload.(DeviceEvent))
	return nil
}

func (r *recorder) Events() []DeviceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeviceEvent(nil), r.events...)
}

// chanSource replays a fixed set of notifications and counts installations.
// With hold set the stream stays open until Stop.
type chanSource struct {
	starts atomic.Int32
	stops  atomic.Int32
	items  []Notification
	hold   bool

	mu   sync.Mutex
	once sync.Once
	ch   chan Notification
}

func (s *chanSource) Start() <-chan Notification {
	s.starts.Add(1)
	ch := make(chan Notification, len(s.items))
	for _, n := range s.items {
		ch <- n
	}
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	if !s.hold {
		s.closeStream()
	}
	return ch
}

func (s *chanSource) Stop() {
	s.stops.Add(1)
	s.closeStream()
}

func (s *chanSource) closeStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		s.once.Do(func() { close(s.ch) })
	}
}

func TestHookListenerPublishesNormalizedEvents(t *testing.T) {
	src := &chanSource{items: []Notification{
		{Type: NotifyButtonDown, Button: "Left"},
		{Type: NotifyMotion, X: 1, Y: 1},
		{Type: NotifyButtonUp, Button: "Left"},
		{Type: NotifyOther},
		{Type: NotifyKeyDown, Key: "A"},
		{Type: NotifyKeyUp, Key: "A"},
	}}
	rec := &recorder{}

	l := NewHookListener(src)
	err := l.Start(rec)
	require.ErrorIs(t, err, ErrHookInstallationFailed)

	assert.Equal(t, []DeviceEvent{
		{Kind: MousePress, Value: "Left"},
		{Kind: MouseRelease, Value: "Left"},
		{Kind: KeyboardPress, Value: "A"},
		{Kind: KeyboardRelease, Value: "A"},
	}, rec.Events())
	for _, name := range rec.names {
		assert.Equal(t, EventName, name)
	}
}

func TestHookListenerFailsWhenNeverEnabled(t *testing.T) {
	src := &chanSource{hold: true}
	l := NewHookListener(src)
	l.armTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- l.Start(&recorder{}) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrHookInstallationFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("Start blocked although the hook never came up")
	}

	assert.EqualValues(t, 1, src.stops.Load())
	assert.True(t, l.Listening())
	assert.False(t, l.Active())
}

func TestHookListenerFailsWhenStreamEndsBeforeEnabled(t *testing.T) {
	src := &chanSource{}
	l := NewHookListener(src)

	err := l.Start(&recorder{})
	require.ErrorIs(t, err, ErrHookInstallationFailed)
	assert.Contains(t, err.Error(), "before it was enabled")
	assert.False(t, l.Active())
}

func TestHookListenerActiveWhileRunning(t *testing.T) {
	src := &chanSource{hold: true, items: []Notification{
		{Type: NotifyHookEnabled},
		{Type: NotifyKeyDown, Key: "Space"},
	}}
	rec := &recorder{}
	l := NewHookListener(src)

	done := make(chan error, 1)
	go func() { done <- l.Start(rec) }()

	require.Eventually(t, func() bool { return l.Active() && len(rec.Events()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []DeviceEvent{NewKeyEvent(true, "Space")}, rec.Events())

	src.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrHookInstallationFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the stream closed")
	}
	assert.False(t, l.Active())
}

func TestHookListenerUnrecognizedNeverPublishes(t *testing.T) {
	src := &chanSource{items: []Notification{{Type: NotifyOther}, {Type: NotifyMotion}}}
	calls := 0
	pub := PublisherFunc(func(string, any) error {
		calls++
		return nil
	})

	_ = NewHookListener(src).Start(pub)
	assert.Zero(t, calls)
}

func TestHookListenerStartsOnce(t *testing.T) {
	src := &chanSource{}
	l := NewHookListener(src)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Start(&recorder{})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.starts.Load())
	assert.True(t, l.Listening())

	// The failed first start is not retried
	assert.NoError(t, l.Start(&recorder{}))
	assert.EqualValues(t, 1, src.starts.Load())
}

func TestGatewayDropsFailures(t *testing.T) {
	rec := &recorder{err: errors.New("consumer gone")}
	gw := NewGateway(rec)

	gw.Emit(NewKeyEvent(true, "KeyA"))
	gw.Emit(NewKeyEvent(false, "KeyA"))

	assert.EqualValues(t, 2, gw.Dropped())

	var nilGateway *Gateway
	assert.NotPanics(t, func() { nilGateway.Emit(NewKeyEvent(true, "KeyA")) })
}

// fakeRawInput records the setup calls and lets tests fire the hook
type fakeRawInput struct {
	mu          sync.Mutex
	registers   int
	installs    int
	registerErr error
	installErr  error
	onInput     func(uintptr)
	packets     map[uintptr][]byte
}

func (f *fakeRawInput) RegisterMouse(WindowHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return f.registerErr
}

func (f *fakeRawInput) InstallMessageHook(_ WindowHandle, onInput func(uintptr)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	if f.installErr != nil {
		return f.installErr
	}
	f.onInput = onInput
	return nil
}

func (f *fakeRawInput) ReadRawInput(handle uintptr) ([]byte, error) {
	buf, ok := f.packets[handle]
	if !ok {
		return nil, errors.New("invalid handle")
	}
	return buf, nil
}

func fixedWindow(h WindowHandle) WindowResolver {
	return WindowResolverFunc(func(string) (WindowHandle, error) { return h, nil })
}

func mousePacket(dx, dy int32) []byte {
	buf := make([]byte, rawHeaderSize+rawMouseSize)
	binary.LittleEndian.PutUint32(buf[0:4], RawTypeMouse)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)))
	body := buf[rawHeaderSize:]
	binary.LittleEndian.PutUint32(body[12:16], uint32(dx))
	binary.LittleEndian.PutUint32(body[16:20], uint32(dy))
	return buf
}

func keyboardPacket() []byte {
	buf := make([]byte, rawHeaderSize+16)
	binary.LittleEndian.PutUint32(buf[0:4], RawTypeKeyboard)
	return buf
}

func TestRawInputListenerAccumulatesAndPublishes(t *testing.T) {
	sys := &fakeRawInput{packets: map[uintptr][]byte{
		1: mousePacket(100, 50),
		2: mousePacket(5000, 0),
		3: keyboardPacket(),
		4: mousePacket(-10000, -10000),
		5: {0x00, 0x01},
	}}
	rec := &recorder{}

	l := newRawInputListener("main", fixedWindow(0x42), sys, nil)
	require.NoError(t, l.Start(rec))
	require.NotNil(t, sys.onInput)

	for _, h := range []uintptr{1, 2, 3, 4, 5, 99} {
		sys.onInput(h)
	}

	assert.Equal(t, []DeviceEvent{
		NewMoveEvent(Point{100, 50}),
		NewMoveEvent(Point{3000, 50}),
		NewMoveEvent(Point{0, 0}),
	}, rec.Events())
	assert.Equal(t, Point{0, 0}, l.Position())
}

func TestRawInputListenerSetupFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		resolver WindowResolver
		sys      *fakeRawInput
		want     error
	}{
		{
			name:     "window not found",
			resolver: WindowResolverFunc(func(string) (WindowHandle, error) { return 0, boom }),
			sys:      &fakeRawInput{},
			want:     ErrWindowNotFound,
		},
		{
			name:     "zero handle",
			resolver: fixedWindow(0),
			sys:      &fakeRawInput{},
			want:     ErrWindowNotFound,
		},
		{
			name:     "registration rejected",
			resolver: fixedWindow(0x42),
			sys:      &fakeRawInput{registerErr: boom},
			want:     ErrRawInputRegistrationFailed,
		},
		{
			name:     "hook rejected",
			resolver: fixedWindow(0x42),
			sys:      &fakeRawInput{installErr: boom},
			want:     ErrHookInstallationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newRawInputListener("main", tt.resolver, tt.sys, nil)

			err := l.Start(&recorder{})
			require.ErrorIs(t, err, tt.want)

			// One-shot: the flag stays set and nothing is re-attempted
			assert.True(t, l.Listening())
			registers, installs := tt.sys.registers, tt.sys.installs
			assert.NoError(t, l.Start(&recorder{}))
			assert.Equal(t, registers, tt.sys.registers)
			assert.Equal(t, installs, tt.sys.installs)
		})
	}
}

func TestTakesRawInput(t *testing.T) {
	tests := []struct {
		name    string
		code    int32
		removal uintptr
		message uint32
		want    bool
	}{
		{name: "removed input", code: 0, removal: pmRemove, message: wmInput, want: true},
		{name: "peeked input", code: 0, removal: 0, message: wmInput, want: false},
		{name: "other message", code: 0, removal: pmRemove, message: 0x0200, want: false},
		{name: "negative code", code: -1, removal: pmRemove, message: wmInput, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, takesRawInput(tt.code, tt.removal, tt.message))
		})
	}
}

func TestRawInputListenerConcurrentStart(t *testing.T) {
	sys := &fakeRawInput{packets: map[uintptr][]byte{}}
	l := newRawInputListener("main", fixedWindow(0x42), sys, nil)

	start := make(chan struct{})
	errs := make(chan error, 64)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- l.Start(&recorder{})
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, sys.registers)
	assert.Equal(t, 1, sys.installs)
}

func TestServiceStatusAndModes(t *testing.T) {
	src := &chanSource{hold: true, items: []Notification{{Type: NotifyHookEnabled}}}
	defer src.Stop()
	sys := &fakeRawInput{packets: map[uintptr][]byte{7: mousePacket(3, 4)}}
	svc := NewServiceWith(NewHookListener(src), newRawInputListener("main", fixedWindow(0x42), sys, nil))

	rec := &recorder{}
	require.NoError(t, svc.Start(ModeBoth, rec))

	assert.Eventually(t, func() bool { return svc.Status().HookListening }, 5*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, src.starts.Load())

	sys.onInput(7)
	st := svc.Status()
	assert.True(t, st.HookListening)
	assert.True(t, st.RawListening)
	assert.Equal(t, Point{3, 4}, st.Position)

	require.NoError(t, svc.Start(ModeBoth, rec))
	assert.Equal(t, 1, sys.installs)
	assert.EqualValues(t, 1, src.starts.Load())
}

func TestServiceStatusAfterFailedRawStart(t *testing.T) {
	sys := &fakeRawInput{registerErr: errors.New("denied")}
	svc := NewServiceWith(NewHookListener(&chanSource{}), newRawInputListener("main", fixedWindow(0x42), sys, nil))

	require.ErrorIs(t, svc.Start(ModeRaw, &recorder{}), ErrRawInputRegistrationFailed)
	st := svc.Status()
	assert.False(t, st.RawListening)
	assert.False(t, st.HookListening)
	assert.True(t, svc.Raw.Listening())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "HOOK": ModeHook, " raw ": ModeRaw, "both": ModeBoth} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("evdev")
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.NotEqual(t, ModeAuto, ModeAuto.Resolve())
	assert.Equal(t, ModeRaw, ModeRaw.Resolve())
}
