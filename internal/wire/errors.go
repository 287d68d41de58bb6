package wire

// Close codes used both as WebSocket close codes and as the "code" field of
// an ERR envelope.
const (
	CloseStartGame      = 1000
	CloseBadView        = 4000
	CloseBadJoin        = 4001
	CloseUnknownPeer    = 4003
	CloseLobbyNotFound  = 4004
	CloseBadProto       = 4005
	CloseBadHost        = 4006
	CloseIdleSocketConn = 4008
	CloseBadQueue       = 4010
	CloseUnknownErr     = 4017
	CloseBadMessage     = 4022
	CloseTooManyPeers   = 4029
)

// CloseReasonStartGame is the human-readable text paired with CloseStartGame in
// transport.Close calls; the other close codes carry their ERR reason
// string as the close reason too.
const CloseReasonStartGame = "Closing peer connection to start game"

// ErrKind pairs a close/error code with its reason string, used both to
// populate an ERR{code,reason} envelope and, where the contract calls for
// it, as the close code/reason pair.
type ErrKind struct {
	Code   int
	Reason string
}

var (
	ErrBadProto       = ErrKind{CloseBadProto, "BAD_PROTO"}
	ErrBadHost        = ErrKind{CloseBadHost, "BAD_HOST"}
	ErrLobbyNotFound  = ErrKind{CloseLobbyNotFound, "LOBBY_NOT_FOUND"}
	ErrBadMessage     = ErrKind{CloseBadMessage, "BAD_MESSAGE"}
	ErrTooManyPeers   = ErrKind{CloseTooManyPeers, "TOO_MANY_PEERS"}
	ErrUnknownPeer    = ErrKind{CloseUnknownPeer, "UNKNOWN_PEER"}
	ErrBadView        = ErrKind{CloseBadView, "BAD_VIEW"}
	ErrBadJoin        = ErrKind{CloseBadJoin, "BAD_JOIN"}
	ErrBadQueue       = ErrKind{CloseBadQueue, "BAD_QUEUE"}
	ErrUnknownErr     = ErrKind{CloseUnknownErr, "UNKNOWN_ERR"}
	ErrIdleSocketConn = ErrKind{CloseIdleSocketConn, "IDLE_SOCKET_CONN"}
)
