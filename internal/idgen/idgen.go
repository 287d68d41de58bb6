// Package idgen mints the two identifier spaces the lobby directory and
// peer registry need: six-letter lobby codes and 31-bit peer ids. Both are
// uniform draws with a caller-supplied uniqueness check and retry, the same
// shape as a dynamic port bind loop: try a candidate, and on collision try
// again until one sticks.
package idgen

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	lobbyCodeLen   = 6
	lobbyCodeBase  = 26
	lobbyCodeSpace = 308915776 // 26^6
	// lobbyCodeDrawLimit is the largest multiple of lobbyCodeSpace that fits
	// in a uint32; draws at or above it are redrawn so the modulo is unbiased.
	lobbyCodeDrawLimit = (1 << 32) / lobbyCodeSpace * lobbyCodeSpace

	peerIDMask = 0x7FFFFFFF // 31 bits, non-negative

	maxAttempts = 64
)

// draw returns a uniformly-distributed uint32 using a UUIDv4's random bits
// as entropy, folded down from 128 bits to 32.
func draw() uint32 {
	id := uuid.New()
	return binary.BigEndian.Uint32(id[0:4]) ^
		binary.BigEndian.Uint32(id[4:8]) ^
		binary.BigEndian.Uint32(id[8:12]) ^
		binary.BigEndian.Uint32(id[12:16])
}

func encodeBase26(n uint32) string {
	buf := make([]byte, lobbyCodeLen)
	for i := lobbyCodeLen - 1; i >= 0; i-- {
		buf[i] = byte('A' + n%lobbyCodeBase)
		n /= lobbyCodeBase
	}
	return string(buf)
}

// LobbyCode draws a uniform six-letter code in [AAAAAA, ZZZZZZ] and retries
// on collision, detected by the taken predicate, which must report whether
// a code is already held by an active lobby.
func LobbyCode(taken func(code string) bool) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		n := draw()
		for n >= lobbyCodeDrawLimit {
			n = draw()
		}
		code := encodeBase26(n % lobbyCodeSpace)
		if !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("idgen: no unique lobby code after %d attempts", maxAttempts)
}

// TraceID returns a fresh UUID string for log correlation only; it has no
// protocol meaning and is distinct from both lobby codes and peer ids.
func TraceID() string {
	return uuid.New().String()
}

// PeerID draws a uniform non-negative 31-bit integer and retries on
// collision, detected by the taken predicate, which must report whether an
// id is already held by a connected peer.
//
// This replaces the source formula "random * (2^31-2) - 2", which admits
// negative outputs; the intent was evidently a uniform non-negative 31-bit
// draw, so that's what this does directly.
func PeerID(taken func(id int) bool) (int, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id := int(draw() & peerIDMask)
		if !taken(id) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("idgen: no unique peer id after %d attempts", maxAttempts)
}
