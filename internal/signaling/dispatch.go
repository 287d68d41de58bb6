package signaling

import (
	"sort"

	"github.com/diltdicker/redot-signalling-server/internal/idgen"
	"github.com/diltdicker/redot-signalling-server/internal/wire"
)

// dispatch routes a decoded command to its handler. It is the only place
// that mutates Peer/Lobby state in response to a client frame.
func (h *Hub) dispatch(p *Peer, cmd wire.Command) {
	switch c := cmd.(type) {
	case wire.IDCmd:
		h.handleID(p, c)
	case wire.HostCmd:
		h.handleHost(p, c)
	case wire.JoinCmd:
		h.handleJoin(p, c)
	case wire.QueueCmd:
		h.handleQueue(p, c)
	case wire.ViewCmd:
		h.handleView(p, c)
	case wire.KickCmd:
		h.handleKick(p, c)
	case wire.OfferCmd:
		h.handleOffer(p, c)
	case wire.AnswerCmd:
		h.handleAnswer(p, c)
	case wire.CandidateCmd:
		h.handleCandidate(p, c)
	case wire.ReadyCmd:
		h.handleReady(p, c)
	case wire.StartCmd:
		h.handleStart(p, c)
	}
}

func (h *Hub) handleID(p *Peer, c wire.IDCmd) {
	if c.Game == "" {
		h.closePeer(p, wire.CloseUnknownPeer, wire.ErrUnknownPeer.Reason)
		return
	}
	p.Game = c.Game
}

func (h *Hub) handleHost(p *Peer, c wire.HostCmd) {
	if c.Game == "" || int(c.MaxPeers) < 2 {
		p.send(wire.EncodeErr(wire.ErrBadHost))
		return
	}

	code, err := idgen.LobbyCode(h.directory.has)
	if err != nil {
		h.log.Errorw("lobby code generation failed", "err", err)
		p.send(wire.EncodeErr(wire.ErrBadHost))
		return
	}

	kind := KindPrivate
	if c.IsPublic {
		kind = KindPublic
	}
	lobby := &Lobby{
		Code:     code,
		Kind:     kind,
		MaxPeers: int(c.MaxPeers),
		IsMesh:   meshOrDefault(c.IsMesh),
		Tags:     c.Tags,
		Game:     c.Game,
		IsActive: true,
	}

	p.IsHost = true
	p.LobbyID = 1
	p.Lobby = lobby
	lobby.Peers = append(lobby.Peers, p)
	h.directory.insert(lobby)
	h.metrics.lobbiesActive.Set(float64(h.directory.len()))
	h.scheduleReap(lobby)

	p.send(wire.EncodeHost(1, lobby.Code, lobby.IsMesh))
}

func (h *Hub) handleJoin(p *Peer, c wire.JoinCmd) {
	if c.Game == "" || c.LobbyCode == "" {
		p.send(wire.EncodeErr(wire.ErrBadJoin))
		return
	}

	lobby, ok := h.directory.get(c.LobbyCode)
	if !ok || !lobby.IsActive || lobby.full() {
		// JOIN does not validate c.Game against the lobby's stored game:
		// the server trusts the lobby code alone.
		p.send(wire.EncodeErr(wire.ErrLobbyNotFound))
		return
	}

	others := append([]*Peer(nil), lobby.Peers...)
	p.IsHost = false
	p.LobbyID = p.ID
	p.Lobby = lobby
	lobby.Peers = append(lobby.Peers, p)

	p.send(wire.EncodeJoin(p.ID, lobby.IsMesh, lobby.Code))
	h.scheduleAdd(p, others, lobby)
}

func (h *Hub) handleQueue(p *Peer, c wire.QueueCmd) {
	maxPeers := int(c.MaxPeers)
	if c.Game == "" || maxPeers < 1 {
		p.send(wire.EncodeErr(wire.ErrBadQueue))
		return
	}

	// "more than one match" is a deliberately literal guard: a single
	// existing match is NOT joined, only two or more matches route the new
	// peer into the first one. See DESIGN.md for why this reading was kept
	// over the "at least one" alternative.
	matches := h.directory.findQueueMatches(c.Game, maxPeers, c.Tags)
	if len(matches) > 1 {
		lobby := matches[0]
		others := append([]*Peer(nil), lobby.Peers...)
		p.IsHost = false
		p.LobbyID = p.ID
		p.Lobby = lobby
		lobby.Peers = append(lobby.Peers, p)

		p.send(wire.EncodeQueue(p.ID, lobby.Code, lobby.IsMesh, false))
		h.scheduleAdd(p, others, lobby)
		return
	}

	code, err := idgen.LobbyCode(h.directory.has)
	if err != nil {
		h.log.Errorw("lobby code generation failed", "err", err)
		p.send(wire.EncodeErr(wire.ErrBadQueue))
		return
	}
	lobby := &Lobby{
		Code:     code,
		Kind:     KindQueue,
		MaxPeers: maxPeers,
		IsMesh:   meshOrDefault(c.IsMesh),
		Tags:     c.Tags,
		Game:     c.Game,
		IsActive: true,
	}

	p.IsHost = true
	p.LobbyID = 1
	p.Lobby = lobby
	lobby.Peers = append(lobby.Peers, p)
	h.directory.insert(lobby)
	h.metrics.lobbiesActive.Set(float64(h.directory.len()))
	h.scheduleReap(lobby)
	h.scheduleQueueProbe(lobby)

	p.send(wire.EncodeQueue(1, lobby.Code, lobby.IsMesh, true))
}

func (h *Hub) handleView(p *Peer, c wire.ViewCmd) {
	if c.Game == "" {
		p.send(wire.EncodeErr(wire.ErrBadView))
		return
	}

	lobbies := h.directory.listPublic(c.Game, c.LobbyCode)
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].Code < lobbies[j].Code })

	list := make([]wire.LobbyView, 0, len(lobbies))
	for _, l := range lobbies {
		list = append(list, wire.LobbyView{
			LobbyCode: l.Code,
			PeerCount: len(l.Peers),
			IsActive:  l.IsActive,
			LobbyType: l.Kind.String(),
			MaxPeers:  l.MaxPeers,
			Tags:      l.Tags,
			IsMesh:    l.IsMesh,
		})
	}
	p.send(wire.EncodeView(list))
}

// handleKick looks the target peer up in lobby.Peers directly by its
// lobby-scoped id.
func (h *Hub) handleKick(p *Peer, c wire.KickCmd) {
	if p.Lobby == nil || c.ID == nil {
		p.send(wire.EncodeErr(wire.ErrBadMessage))
		return
	}
	lobby := p.Lobby
	targetLobbyID := int(*c.ID)

	if p.IsHost {
		if targetLobbyID == p.LobbyID {
			h.hostKicksSelf(p, lobby)
			return
		}
		target := lobby.findByLobbyID(targetLobbyID)
		if target == nil {
			return // no-op: kicking an id that isn't a member
		}
		lobby.removePeer(target.ID)
		target.Lobby = nil
		for _, m := range lobby.Peers {
			m.send(wire.EncodeKick(targetLobbyID, true))
		}
		target.send(wire.EncodeKick(targetLobbyID, true))
		return
	}

	// Non-host KICK is always a self-kick: only the host can kick another
	// member.
	lobby.removePeer(p.ID)
	p.Lobby = nil
	for _, m := range lobby.Peers {
		m.send(wire.EncodeKick(p.LobbyID, true))
	}
	p.send(wire.EncodeKick(p.LobbyID, true))
}

func (h *Hub) hostKicksSelf(p *Peer, lobby *Lobby) {
	members := append([]*Peer(nil), lobby.Peers...)
	hostLobbyID := p.LobbyID
	h.destroyLobby(lobby)
	for _, m := range members {
		m.send(wire.EncodeKick(hostLobbyID, false))
	}
}

func (h *Hub) handleOffer(p *Peer, c wire.OfferCmd) {
	h.relay(p, int(c.ToID), func(dst *Peer) {
		dst.send(wire.EncodeOffer(p.LobbyID, c.Offer))
	})
}

func (h *Hub) handleAnswer(p *Peer, c wire.AnswerCmd) {
	h.relay(p, int(c.ToID), func(dst *Peer) {
		dst.send(wire.EncodeAnswer(p.LobbyID, c.Answer))
	})
}

func (h *Hub) handleCandidate(p *Peer, c wire.CandidateCmd) {
	h.relay(p, int(c.ToID), func(dst *Peer) {
		dst.send(wire.EncodeCandidate(p.LobbyID, c.Media, int(c.Index), c.Sdp))
	})
}

// relay is the pure-relay backbone of OFFER/ANSWER/CANDIDATE: it never
// inspects the payload, only routes it by lobbyId.
func (h *Hub) relay(p *Peer, toID int, send func(*Peer)) {
	if p.Lobby == nil {
		p.send(wire.EncodeErr(wire.ErrBadMessage))
		return
	}
	dst := p.Lobby.findByLobbyID(toID)
	if dst == nil {
		p.send(wire.EncodeErr(wire.ErrBadMessage))
		return
	}
	send(dst)
}

func (h *Hub) handleReady(p *Peer, c wire.ReadyCmd) {
	if p.Lobby == nil {
		p.send(wire.EncodeErr(wire.ErrBadMessage))
		return
	}
	lobby := p.Lobby

	if !p.IsHost {
		// Forward verbatim to the host; readiness payloads are opaque to
		// the server.
		if host := lobby.Host(); host != nil {
			host.send(wire.EncodeReadyRaw(c.Raw))
		}
		return
	}

	lobby.IsActive = false
	peerCount := len(lobby.Peers) - 1

	if c.ID == nil {
		targets := make([]*Peer, 0, peerCount)
		for _, m := range lobby.Peers {
			if m != p {
				targets = append(targets, m)
			}
		}
		h.clock.AfterFunc(h.cfg.ReadySettleDelay, func() {
			h.taskCh <- func(h *Hub) { h.fireReadyProbe(targets, lobby, peerCount) }
		})
		return
	}

	targetLobbyID := int(*c.ID)
	target := lobby.findByLobbyID(targetLobbyID)
	if target == nil {
		return
	}
	h.clock.AfterFunc(h.cfg.ReadySettleDelay, func() {
		h.taskCh <- func(h *Hub) { h.fireReadyProbe([]*Peer{target}, lobby, peerCount) }
	})
}

// fireReadyProbe sends the settled READY probe(s), re-checking that each
// target is still registered and still a member of the same lobby — the
// settle delay is long enough that either could have changed.
func (h *Hub) fireReadyProbe(targets []*Peer, lobby *Lobby, peerCount int) {
	for _, m := range targets {
		if _, ok := h.registry.get(m.ID); !ok {
			continue
		}
		if m.Lobby != lobby {
			continue
		}
		m.send(wire.EncodeReady(m.LobbyID, peerCount))
	}
}

func (h *Hub) handleStart(p *Peer, c wire.StartCmd) {
	if !p.IsHost || p.Lobby == nil {
		p.send(wire.EncodeErr(wire.ErrBadMessage))
		return
	}
	lobby := p.Lobby
	lobby.IsActive = false

	nonHosts := make([]*Peer, 0, len(lobby.Peers))
	for _, m := range lobby.Peers {
		if m != p {
			nonHosts = append(nonHosts, m)
		}
	}
	for _, m := range nonHosts {
		m.send(wire.EncodeStart())
	}
	for _, m := range nonHosts {
		member := m
		h.clock.AfterFunc(h.cfg.StartCloseStagger, func() {
			h.taskCh <- func(h *Hub) { h.closeForStartGame(member.ID) }
		})
	}

	p.send(wire.EncodeStart())
	h.clock.AfterFunc(h.cfg.StartCloseStagger, func() {
		h.taskCh <- func(h *Hub) { h.closeForStartGame(p.ID) }
	})
}

func (h *Hub) closeForStartGame(peerID int) {
	p, ok := h.registry.get(peerID)
	if !ok {
		return
	}
	h.closePeer(p, wire.CloseStartGame, wire.CloseReasonStartGame)
}

// scheduleAdd defers the ADD notifications crossing a newly joined peer
// with the lobby's existing members until after the join reply has been
// sent, via a tiny yield, so the join reply reaches the client first.
func (h *Hub) scheduleAdd(newPeer *Peer, others []*Peer, lobby *Lobby) {
	newPeerID := newPeer.ID
	h.clock.AfterFunc(h.cfg.AddNotifyYield, func() {
		h.taskCh <- func(h *Hub) { h.fireAddNotify(newPeerID, others, lobby) }
	})
}

func (h *Hub) fireAddNotify(newPeerID int, others []*Peer, lobby *Lobby) {
	np, ok := h.registry.get(newPeerID)
	if !ok || np.Lobby != lobby {
		return
	}
	for _, existing := range others {
		if _, ok := h.registry.get(existing.ID); !ok || existing.Lobby != lobby {
			continue
		}
		existing.send(wire.EncodeAdd(np.LobbyID))
		np.send(wire.EncodeAdd(existing.LobbyID))
	}
}

func (h *Hub) scheduleReap(lobby *Lobby) {
	code := lobby.Code
	lobby.reapTimer = h.clock.AfterFunc(h.cfg.ReapTimeout, func() {
		h.taskCh <- func(h *Hub) { h.fireReapTimer(code) }
	})
}

func (h *Hub) scheduleQueueProbe(lobby *Lobby) {
	code := lobby.Code
	lobby.queueTimer = h.clock.AfterFunc(h.cfg.QueueProbeInterval, func() {
		h.taskCh <- func(h *Hub) { h.fireQueueProbe(code) }
	})
}

func meshOrDefault(isMesh *bool) bool {
	// HOST/QUEUE default isMesh to true when the field is omitted.
	if isMesh == nil {
		return true
	}
	return *isMesh
}
