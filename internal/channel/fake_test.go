package channel

import (
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/cloudcost-notify/internal/transport"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Advance moves time forward and fires every due timer in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// pending returns the number of armed timers.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeTransport is driven by the test through its Handler.
type fakeTransport struct {
	mu      sync.Mutex
	h       transport.Handler
	url     string
	open    bool
	sent    [][]byte
	closes  []int
	sendErr error
}

func (f *fakeTransport) Open(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.open {
		return transport.ErrNotOpen
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

// Close mirrors the real transport: it reports OnClose with the requested code.
func (f *fakeTransport) Close(code int, reason string) {
	f.mu.Lock()
	f.open = false
	f.closes = append(f.closes, code)
	f.mu.Unlock()
	f.h.OnClose(code, reason)
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// serverOpen simulates a completed handshake.
func (f *fakeTransport) serverOpen() {
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
	f.h.OnOpen()
}

func (f *fakeTransport) serverSend(frame string) {
	f.h.OnMessage([]byte(frame))
}

// serverClose simulates the peer or the network ending the connection.
func (f *fakeTransport) serverClose(code int, reason string) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.h.OnClose(code, reason)
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) dialedURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// frames returns the decoded frames sent with the given type.
func (f *fakeTransport) frames(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any
	for _, data := range f.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.closes...)
}

// fakeFactory records every transport the channel creates.
type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (ff *fakeFactory) New(h transport.Handler) transport.Transport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ft := &fakeTransport{h: h}
	ff.transports = append(ff.transports, ft)
	return ft
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.transports)
}

func (ff *fakeFactory) last(t *testing.T) *fakeTransport {
	t.Helper()
	ff.mu.Lock()
	defer ff.mu.Unlock()
	require.NotEmpty(t, ff.transports, "no transport created")
	return ff.transports[len(ff.transports)-1]
}

func (ff *fakeFactory) at(i int) *fakeTransport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.transports[i]
}

// recorder captures lifecycle notifications. Subscribers run on the event
// loop; flush establishes ordering before the test reads.
type recorder struct {
	connected       []ConnectedEvent
	disconnected    []DisconnectedEvent
	reconnecting    []ReconnectingEvent
	reconnectFailed []ReconnectFailedEvent
	errors          []error
	states          []State
}

func record(c *Channel) *recorder {
	r := &recorder{}
	c.OnConnected(func(e ConnectedEvent) { r.connected = append(r.connected, e) })
	c.OnDisconnected(func(e DisconnectedEvent) { r.disconnected = append(r.disconnected, e) })
	c.OnReconnecting(func(e ReconnectingEvent) { r.reconnecting = append(r.reconnecting, e) })
	c.OnReconnectFailed(func(e ReconnectFailedEvent) { r.reconnectFailed = append(r.reconnectFailed, e) })
	c.OnError(func(e ErrorEvent) { r.errors = append(r.errors, e.Cause) })
	c.OnStateChange(func(e StateChange) { r.states = append(r.states, e.To) })
	return r
}

// flush waits until the event loop has processed everything queued so far,
// including work queued by that work.
func flush(c *Channel) {
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		c.post(func() { close(done) })
		<-done
	}
}
