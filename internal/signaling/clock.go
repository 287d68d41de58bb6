package signaling

import "time"

// Clock is the monotonic clock and timer scheduler the core imports rather
// than owns, so that tests can run the lobby lifecycle timers (idle, reap,
// queue-probe, settle delays) deterministically instead of racing real
// wall-clock durations.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable, one-shot scheduled callback.
type Timer interface {
	Stop() bool
}

// Ticker is a cancellable, repeating scheduled callback source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// realClock is the production Clock, a thin wrapper over time.AfterFunc
// and time.NewTicker.
type realClock struct{}

// RealClock returns the Clock implementation used outside of tests.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
