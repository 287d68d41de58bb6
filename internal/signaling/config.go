package signaling

import "time"

// Config collects every tunable duration and the connection cap the hub
// needs. Tests shrink these; production uses DefaultConfig.
type Config struct {
	MaxConns int

	EarlyTimerMin    time.Duration
	EarlyTimerMax    time.Duration
	LifetimeTimerMin time.Duration
	LifetimeTimerMax time.Duration

	ReapTimeout        time.Duration
	QueueProbeInterval time.Duration
	KeepaliveInterval  time.Duration
	MemStatsInterval   time.Duration
	AddNotifyYield     time.Duration
	ReadySettleDelay   time.Duration
	StartCloseStagger  time.Duration

	InboxBufferCapacity int
}

// DefaultConfig sets production windows: early idle 10-30s, peer lifetime
// 30-60min, 10s queue probe, 10min reap, 10s keepalive, 2min memory report,
// ~1s READY settle, ~250ms START stagger.
func DefaultConfig() Config {
	return Config{
		MaxConns:            4096,
		EarlyTimerMin:       10 * time.Second,
		EarlyTimerMax:       30 * time.Second,
		LifetimeTimerMin:    30 * time.Minute,
		LifetimeTimerMax:    60 * time.Minute,
		ReapTimeout:         10 * time.Minute,
		QueueProbeInterval:  10 * time.Second,
		KeepaliveInterval:   10 * time.Second,
		MemStatsInterval:    2 * time.Minute,
		AddNotifyYield:      5 * time.Millisecond,
		ReadySettleDelay:    time.Second,
		StartCloseStagger:   250 * time.Millisecond,
		InboxBufferCapacity: 4096,
	}
}
