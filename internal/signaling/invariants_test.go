package signaling

import (
	"math/rand"
	"testing"
	"time"
)

// assertInvariants checks the seven state invariants that must hold after
// every dispatch, directly against the hub's registry and directory.
// transports lets it additionally cross-check registry membership against
// each peer's fake transport, rather than trusting registry bookkeeping on
// its own.
func assertInvariants(t *testing.T, h *Hub, transports map[int]*fakeTransport) {
	t.Helper()

	memberOf := make(map[int]string) // peerID -> lobby code it was found in

	for code, lobby := range h.directory.lobbies {
		if lobby.Code != code {
			t.Fatalf("invariant 3: lobby stored under code %q reports Code=%q", code, lobby.Code)
		}
		if len(lobby.Peers) == 0 {
			t.Fatalf("invariant 6: empty lobby %q is still in the directory", code)
		}
		if len(lobby.Peers) > lobby.MaxPeers {
			t.Fatalf("invariant 4: lobby %q has %d peers, maxPeers=%d", code, len(lobby.Peers), lobby.MaxPeers)
		}

		hostCount := 0
		lobbyIDs := make(map[int]bool, len(lobby.Peers))
		for i, p := range lobby.Peers {
			if p.IsHost {
				hostCount++
				if i != 0 {
					t.Fatalf("invariant 2: host peer %d sits at index %d in lobby %q, want 0", p.ID, i, code)
				}
				if p.LobbyID != 1 {
					t.Fatalf("invariant 2: host peer %d has lobbyId %d in lobby %q, want 1", p.ID, p.LobbyID, code)
				}
			}
			if lobbyIDs[p.LobbyID] {
				t.Fatalf("invariant 5: duplicate lobbyId %d in lobby %q", p.LobbyID, code)
			}
			lobbyIDs[p.LobbyID] = true

			if prev, ok := memberOf[p.ID]; ok {
				t.Fatalf("invariant 1: peer %d appears in both lobby %q and %q", p.ID, prev, code)
			}
			memberOf[p.ID] = code

			if p.Lobby != lobby {
				t.Fatalf("invariant 1: peer %d is listed in lobby %q but its own Lobby pointer disagrees", p.ID, code)
			}
		}
		if hostCount != 1 {
			t.Fatalf("invariant 2: lobby %q has %d hosts, want exactly 1", code, hostCount)
		}
	}

	live := 0
	for id, p := range h.registry.peers {
		live++
		if p.Lobby != nil {
			if _, ok := memberOf[p.ID]; !ok {
				t.Fatalf("invariant 1: peer %d's Lobby pointer names a lobby absent from the directory", id)
			}
		}
		if tr, ok := transports[id]; ok && tr.closed {
			t.Fatalf("invariant 7: peer %d is registered but its transport is closed", id)
		}
	}
	for id, tr := range transports {
		if _, ok := h.registry.peers[id]; !ok && !tr.closed {
			t.Fatalf("invariant 7: peer %d's transport is still open but it is not registered", id)
		}
	}
	if h.registry.len() != live {
		t.Fatalf("invariant 7: registry.len()=%d disagrees with its own peer map (%d entries)", h.registry.len(), live)
	}
}

func allPeers(h *Hub) []*Peer {
	out := make([]*Peer, 0, len(h.registry.peers))
	for _, p := range h.registry.peers {
		out = append(out, p)
	}
	return out
}

func freePeers(h *Hub) []*Peer {
	var out []*Peer
	for _, p := range h.registry.peers {
		if p.Lobby == nil {
			out = append(out, p)
		}
	}
	return out
}

func peersInLobby(h *Hub) []*Peer {
	var out []*Peer
	for _, p := range h.registry.peers {
		if p.Lobby != nil {
			out = append(out, p)
		}
	}
	return out
}

func activeLobbies(h *Hub) []*Lobby {
	var out []*Lobby
	for _, l := range h.directory.lobbies {
		if l.IsActive && !l.full() {
			out = append(out, l)
		}
	}
	return out
}

func stepConnect(t *testing.T, h *Hub, transports map[int]*fakeTransport) {
	p, tr := connectPeer(t, h)
	transports[p.ID] = tr
}

func stepHost(h *Hub) {
	free := freePeers(h)
	if len(free) == 0 {
		return
	}
	p := free[rand.Intn(len(free))]
	send(h, p, 1, map[string]interface{}{
		"game": "go", "isPublic": rand.Intn(2) == 0, "maxPeers": 2 + rand.Intn(3),
	})
}

func stepJoin(h *Hub) {
	free := freePeers(h)
	lobbies := activeLobbies(h)
	if len(free) == 0 || len(lobbies) == 0 {
		return
	}
	p := free[rand.Intn(len(free))]
	l := lobbies[rand.Intn(len(lobbies))]
	send(h, p, 2, map[string]interface{}{"game": "go", "lobbyCode": l.Code})
}

func stepQueue(h *Hub) {
	free := freePeers(h)
	if len(free) == 0 {
		return
	}
	p := free[rand.Intn(len(free))]
	send(h, p, 3, map[string]interface{}{"game": "go", "maxPeers": 3})
}

func stepKick(h *Hub) {
	inLobby := peersInLobby(h)
	if len(inLobby) == 0 {
		return
	}
	p := inLobby[rand.Intn(len(inLobby))]
	targetID := p.LobbyID
	if p.IsHost && len(p.Lobby.Peers) > 1 && rand.Intn(2) == 0 {
		var others []*Peer
		for _, m := range p.Lobby.Peers {
			if m != p {
				others = append(others, m)
			}
		}
		targetID = others[rand.Intn(len(others))].LobbyID
	}
	send(h, p, 6, map[string]interface{}{"id": targetID})
}

func stepDisconnect(h *Hub) {
	all := allPeers(h)
	if len(all) == 0 {
		return
	}
	p := all[rand.Intn(len(all))]
	// Hub.Disconnect reports a transport that has already closed, so close
	// the fake transport first, as the real read pump's exit would.
	_ = p.transport.Close(1001, "going away")
	h.Disconnect(p.ID)
	drain(h)
}

// TestInvariantsHoldUnderRandomizedSequences randomizes connect/HOST/JOIN/
// QUEUE/KICK/disconnect and checks all seven invariants after every step,
// across several independent trials.
func TestInvariantsHoldUnderRandomizedSequences(t *testing.T) {
	rand.Seed(time.Now().UTC().UnixNano())

	for trial := 0; trial < 8; trial++ {
		h, _ := newTestHub()
		transports := make(map[int]*fakeTransport)
		assertInvariants(t, h, transports)

		for step := 0; step < 60; step++ {
			switch rand.Intn(6) {
			case 0:
				stepConnect(t, h, transports)
			case 1:
				stepHost(h)
			case 2:
				stepJoin(h)
			case 3:
				stepQueue(h)
			case 4:
				stepKick(h)
			case 5:
				stepDisconnect(h)
			}
			assertInvariants(t, h, transports)
		}
		h.Shutdown()
	}
}
