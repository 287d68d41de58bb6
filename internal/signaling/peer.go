package signaling

// Peer is a single connected client.
type Peer struct {
	ID      int
	LobbyID int
	IsHost  bool
	Game    string // empty until the ID handshake completes
	Lobby   *Lobby // nil when not a member of any lobby

	transport Transport

	// traceID correlates log lines for this connection; it has no protocol
	// meaning and is never sent to a client.
	traceID string

	earlyTimer    Timer
	lifetimeTimer Timer
}

func newPeer(id int, transport Transport, traceID string) *Peer {
	return &Peer{
		ID:        id,
		LobbyID:   id,
		transport: transport,
		traceID:   traceID,
	}
}

func (p *Peer) send(frame []byte) {
	// Fire-and-forget; a write error just means the transport is already
	// gone, which the close path will observe.
	_ = p.transport.Send(frame)
}

func (p *Peer) cancelTimers() {
	if p.earlyTimer != nil {
		p.earlyTimer.Stop()
		p.earlyTimer = nil
	}
	if p.lifetimeTimer != nil {
		p.lifetimeTimer.Stop()
		p.lifetimeTimer = nil
	}
}
