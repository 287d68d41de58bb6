package signaling

import (
	"sync"
	"time"
)

// fakeTransport records every frame sent to it and every close, so tests can
// assert on what a client would have received without a real socket.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	code   int
	reason string
	pings  int
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	f.reason = reason
	return nil
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeTimer is a no-op Timer whose Stop marks it cancelled so fakeClock can
// skip a fired-but-then-stopped callback.
type fakeTimer struct {
	c         *fakeClock
	id        int
	cancelled bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.cancelled
	t.cancelled = true
	return was
}

type pendingTimer struct {
	fireAt time.Time
	fn     func()
	timer  *fakeTimer
}

// fakeClock gives tests full control over every lobby/peer timer without
// sleeping: Advance walks due callbacks in fire-time order, running each
// synchronously, so a test controls exactly which timers have fired.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*pendingTimer
	nextID  int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{c: c, id: c.nextID}
	c.pending = append(c.pending, &pendingTimer{fireAt: c.now.Add(d), fn: f, timer: t})
	return t
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time, 1)}
}

// Advance moves the clock forward by d and runs every callback whose fireAt
// has now passed, in fire-time order. Callbacks scheduled by a firing
// callback are eligible in the same Advance call if their fireAt also falls
// within the new "now".
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *pendingTimer
		idx := -1
		for i, pt := range c.pending {
			if pt.timer.cancelled {
				continue
			}
			if !pt.fireAt.After(target) {
				if due == nil || pt.fireAt.Before(due.fireAt) {
					due = pt
					idx = i
				}
			}
		}
		if due == nil {
			c.mu.Unlock()
			return
		}
		c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
		c.mu.Unlock()

		due.fn()
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// newTestHub builds a Hub with a fakeClock and a tiny config so tests don't
// depend on wall-clock timing at all.
func newTestHub() (*Hub, *fakeClock) {
	cfg := DefaultConfig()
	cfg.InboxBufferCapacity = 64
	clock := newFakeClock()
	h := NewHub(cfg, clock, testLogger(), nil)
	return h, clock
}

// drain blocks until every task queued on h's channels so far has been
// processed, by enqueueing a sentinel behind them and waiting for it: the
// hub's channels are FIFO, so this sentinel cannot run before anything
// queued earlier.
func drain(h *Hub) {
	done := make(chan struct{})
	h.taskCh <- func(h *Hub) { close(done) }
	<-done
}
