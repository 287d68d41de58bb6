package signaling

// Kind is a lobby's visibility/matching mode.
type Kind int

const (
	KindPrivate Kind = iota
	KindPublic
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindPrivate:
		return "PRIVATE"
	case KindPublic:
		return "PUBLIC"
	case KindQueue:
		return "QUEUE"
	}
	return "UNKNOWN"
}

// Lobby is a short-lived group of up to MaxPeers peers coordinating an RTC
// session.
type Lobby struct {
	Code     string
	Kind     Kind
	MaxPeers int
	IsMesh   bool
	Tags     string
	Game     string
	Peers    []*Peer
	IsActive bool

	queueTimer Timer // only set when Kind == KindQueue
	reapTimer  Timer
}

// Host returns the lobby's host peer, always Peers[0] while the lobby is
// non-empty.
func (l *Lobby) Host() *Peer {
	if len(l.Peers) == 0 {
		return nil
	}
	return l.Peers[0]
}

func (l *Lobby) full() bool {
	return len(l.Peers) >= l.MaxPeers
}

// removePeer removes a peer by id from the peer list, preserving order.
// It never moves a new peer into index 0 on its own: a vacating host means
// lobby teardown, not host succession, so callers handle that explicitly.
func (l *Lobby) removePeer(peerID int) {
	for i, p := range l.Peers {
		if p.ID == peerID {
			l.Peers = append(l.Peers[:i], l.Peers[i+1:]...)
			return
		}
	}
}

func (l *Lobby) findByLobbyID(lobbyID int) *Peer {
	for _, p := range l.Peers {
		if p.LobbyID == lobbyID {
			return p
		}
	}
	return nil
}

func (l *Lobby) cancelTimers() {
	if l.queueTimer != nil {
		l.queueTimer.Stop()
		l.queueTimer = nil
	}
	if l.reapTimer != nil {
		l.reapTimer.Stop()
		l.reapTimer = nil
	}
}
