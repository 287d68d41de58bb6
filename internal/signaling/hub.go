// Package signaling implements the lobby coordination state machine: the
// peer registry, lobby directory, lobby state machine, command dispatcher,
// connection lifecycle, and keepalive ticker.
//
// Every mutation of shared state happens on Hub.run's single goroutine.
// Connections, timers, and tickers only ever post events onto Hub's
// channels; they never touch a Peer or Lobby directly: a single dispatcher
// goroutine draining a small set of channels, rather than a lock guarding
// shared maps.
package signaling

import (
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/diltdicker/redot-signalling-server/internal/idgen"
	"github.com/diltdicker/redot-signalling-server/internal/wire"
)

// Hub owns the registry and directory and is the only thing allowed to
// mutate them.
type Hub struct {
	cfg     Config
	clock   Clock
	log     *zap.SugaredLogger
	metrics *Metrics

	registry  *registry
	directory *directory

	connectCh    chan connectRequest
	disconnectCh chan int
	frameCh      chan frameEvent
	taskCh       chan func(*Hub)
	quit         chan struct{}
	done         chan struct{}

	keepalive Ticker
	memStats  Ticker
}

type connectRequest struct {
	transport Transport
	reply     chan connectResult
}

type connectResult struct {
	peer *Peer
	err  error
}

type frameEvent struct {
	peerID int
	raw    []byte
}

// NewHub builds a Hub and starts its dispatcher goroutine. metrics may be
// nil; a nil Metrics is a no-op (see metrics.go).
func NewHub(cfg Config, clock Clock, log *zap.SugaredLogger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = nopMetrics()
	}
	h := &Hub{
		cfg:          cfg,
		clock:        clock,
		log:          log,
		metrics:      metrics,
		registry:     newRegistry(cfg.MaxConns),
		directory:    newDirectory(),
		connectCh:    make(chan connectRequest),
		disconnectCh: make(chan int, cfg.InboxBufferCapacity),
		frameCh:      make(chan frameEvent, cfg.InboxBufferCapacity),
		taskCh:       make(chan func(*Hub), cfg.InboxBufferCapacity),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		keepalive:    clock.NewTicker(cfg.KeepaliveInterval),
		memStats:     clock.NewTicker(cfg.MemStatsInterval),
	}
	go h.run()
	return h
}

// Shutdown stops the dispatcher goroutine and both tickers. It does not
// close peer transports; callers that want a clean drain should do that
// first.
func (h *Hub) Shutdown() {
	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	defer h.keepalive.Stop()
	defer h.memStats.Stop()

	for {
		// Foreground, client-facing events take priority over the
		// self-scheduled task queue and tickers: a burst of queued timer
		// callbacks should never add latency to a live connect/frame/
		// disconnect. The non-blocking pass below only fires when one of
		// those three already has something waiting.
		select {
		case <-h.quit:
			return
		case req := <-h.connectCh:
			h.handleConnect(req)
			continue
		case peerID := <-h.disconnectCh:
			h.handleDisconnect(peerID)
			continue
		case ev := <-h.frameCh:
			h.handleFrame(ev)
			continue
		default:
		}

		select {
		case <-h.quit:
			return
		case req := <-h.connectCh:
			h.handleConnect(req)
		case peerID := <-h.disconnectCh:
			h.handleDisconnect(peerID)
		case ev := <-h.frameCh:
			h.handleFrame(ev)
		case fn := <-h.taskCh:
			fn(h)
		case <-h.keepalive.C():
			h.handleKeepalive()
		case <-h.memStats.C():
			h.logMemStats()
		}
	}
}

// Connect registers a new peer for an opened transport, enforcing
// MaxConns, and returns it. On capacity rejection the caller is
// responsible for the ERR{TOO_MANY_PEERS} + close sequence.
func (h *Hub) Connect(transport Transport) (*Peer, error) {
	reply := make(chan connectResult, 1)
	h.connectCh <- connectRequest{transport: transport, reply: reply}
	res := <-reply
	return res.peer, res.err
}

// Disconnect tells the hub a transport has closed. Fire-and-forget: the
// transport is already gone, there is nothing to reply with.
func (h *Hub) Disconnect(peerID int) {
	h.disconnectCh <- peerID
}

// HandleFrame delivers one decoded text frame from a peer's connection.
func (h *Hub) HandleFrame(peerID int, raw []byte) {
	h.frameCh <- frameEvent{peerID: peerID, raw: raw}
}

func (h *Hub) handleConnect(req connectRequest) {
	if h.registry.len() >= h.cfg.MaxConns {
		req.reply <- connectResult{err: errTooManyPeers}
		return
	}

	id, err := idgen.PeerID(h.registry.has)
	if err != nil {
		req.reply <- connectResult{err: err}
		return
	}

	p := newPeer(id, req.transport, newTraceID())
	if err := h.registry.register(p); err != nil {
		req.reply <- connectResult{err: err}
		return
	}

	p.earlyTimer = h.clock.AfterFunc(randDuration(h.cfg.EarlyTimerMin, h.cfg.EarlyTimerMax), func() {
		h.taskCh <- func(h *Hub) { h.fireEarlyTimer(id) }
	})
	p.lifetimeTimer = h.clock.AfterFunc(randDuration(h.cfg.LifetimeTimerMin, h.cfg.LifetimeTimerMax), func() {
		h.taskCh <- func(h *Hub) { h.fireLifetimeTimer(id) }
	})

	h.metrics.peersConnected.Set(float64(h.registry.len()))
	h.log.Debugw("peer connected", "peerId", id, "trace", p.traceID)

	p.send(wire.EncodeID())
	req.reply <- connectResult{peer: p}
}

// fireEarlyTimer and fireLifetimeTimer both guard on the peer still being
// registered: a timer firing after its subject was already torn down by
// normal disconnect must be a no-op.
func (h *Hub) fireEarlyTimer(peerID int) {
	p, ok := h.registry.get(peerID)
	if !ok {
		return
	}
	if p.Game != "" {
		return
	}
	h.log.Debugw("closing idle peer, no ID handshake", "peerId", peerID)
	h.closePeer(p, wire.CloseIdleSocketConn, wire.ErrIdleSocketConn.Reason)
}

func (h *Hub) fireLifetimeTimer(peerID int) {
	p, ok := h.registry.get(peerID)
	if !ok {
		return
	}
	h.log.Debugw("closing peer at lifetime cap", "peerId", peerID)
	h.closePeer(p, wire.CloseIdleSocketConn, wire.ErrIdleSocketConn.Reason)
}

// closePeer closes the transport and runs full disconnect teardown
// in-line, since the transport's own close won't re-enter the hub in
// time for tests (and production's readPump exit races it harmlessly,
// guarded by the registry-membership check in handleDisconnect).
func (h *Hub) closePeer(p *Peer, code int, reason string) {
	_ = p.transport.Close(code, reason)
	h.handleDisconnect(p.ID)
}

func (h *Hub) handleDisconnect(peerID int) {
	p, ok := h.registry.get(peerID)
	if !ok {
		return // already torn down, e.g. by a prior timer fire
	}
	p.cancelTimers()
	h.registry.unregister(peerID)
	h.metrics.peersConnected.Set(float64(h.registry.len()))

	h.teardownPeer(p)
}

// teardownPeer implements the detach-then-notify disconnect protocol: the
// lobby is fully detached before any KICK is sent, so a KICK handler can
// never observe a half-torn-down lobby.
//
// A host leaving an already-inactive (post-START) lobby sends no KICK
// broadcast. By the time a lobby is sealed, START's stagger is already
// closing every member in the same wave, so a non-host peer's own close
// from that wave gets the same treatment: no broadcast once the lobby is
// inactive, for either role. See DESIGN.md for the reasoning.
func (h *Hub) teardownPeer(p *Peer) {
	lobby := p.Lobby
	if lobby == nil {
		return
	}
	wasActive := lobby.IsActive

	if p.IsHost {
		members := append([]*Peer(nil), lobby.Peers...)
		h.destroyLobby(lobby)
		if wasActive {
			for _, m := range members {
				if m == p {
					continue
				}
				m.send(wire.EncodeKick(m.LobbyID, false))
			}
		}
		return
	}

	lobby.removePeer(p.ID)
	p.Lobby = nil
	if wasActive {
		for _, m := range lobby.Peers {
			m.send(wire.EncodeKick(p.LobbyID, true))
		}
	}
}

// fireReapTimer tears a lobby down unconditionally once it's been alive for
// ReapTimeout, notifying every member regardless of active/inactive state —
// unlike ordinary disconnect, reap never suppresses the KICK broadcast.
func (h *Hub) fireReapTimer(code string) {
	lobby, ok := h.directory.get(code)
	if !ok {
		return
	}
	members := append([]*Peer(nil), lobby.Peers...)
	h.destroyLobby(lobby)
	for _, m := range members {
		m.send(wire.EncodeKick(m.LobbyID, false))
	}
}

// fireQueueProbe is a self-rescheduling timer chain: each fire checks the
// lobby still exists before acting or rescheduling, so a lobby destroyed
// between ticks quietly ends the chain instead of acting on a dead lobby.
func (h *Hub) fireQueueProbe(code string) {
	lobby, ok := h.directory.get(code)
	if !ok {
		return
	}
	if lobby.full() && lobby.IsActive {
		if host := lobby.Host(); host != nil {
			host.send(wire.EncodeReadyRaw(nil))
		}
	}
	lobby.queueTimer = h.clock.AfterFunc(h.cfg.QueueProbeInterval, func() {
		h.taskCh <- func(h *Hub) { h.fireQueueProbe(code) }
	})
}

// destroyLobby detaches every member's back-reference, empties the peer
// list, cancels timers, and removes the lobby from the directory — in
// that order, so a timer firing mid-teardown can never reach a half-dead
// lobby.
func (h *Hub) destroyLobby(l *Lobby) {
	for _, m := range l.Peers {
		m.Lobby = nil
	}
	l.Peers = nil
	l.IsActive = false
	l.cancelTimers()
	h.directory.remove(l.Code)
	h.metrics.lobbiesActive.Set(float64(h.directory.len()))
}

func (h *Hub) handleKeepalive() {
	h.registry.each(func(p *Peer) {
		if err := p.transport.Ping(); err != nil {
			h.log.Debugw("keepalive ping failed", "peerId", p.ID, "err", err)
		}
	})
}

func (h *Hub) handleFrame(ev frameEvent) {
	p, ok := h.registry.get(ev.peerID)
	if !ok {
		return
	}

	cmd, errKind := wire.Decode(ev.raw)
	if errKind != nil {
		h.metrics.commandsTotal.WithLabelValues("malformed").Inc()
		p.send(wire.EncodeErr(*errKind))
		return
	}
	h.metrics.commandsTotal.WithLabelValues(cmd.Call().String()).Inc()
	h.dispatch(p, cmd)
}

func (h *Hub) logMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	h.log.Infow("memory usage",
		"allocBytes", m.Alloc,
		"sysBytes", m.Sys,
		"goroutines", runtime.NumGoroutine(),
		"peers", h.registry.len(),
		"lobbies", h.directory.len(),
	)
}

func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func newTraceID() string {
	return idgen.TraceID()
}
