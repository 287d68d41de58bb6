package signaling

// Transport is the message channel the core imports instead of owning: a
// WebSocket connection in production, a fake in tests. The core never
// inspects its internals, only sends frames through it and tells it to
// close with a protocol-level code and reason.
type Transport interface {
	// Send writes a single text frame. Fire-and-forget: the core does not
	// wait for delivery.
	Send(data []byte) error
	// Close closes the connection, reporting the given close code and
	// reason to the remote end where the transport supports it.
	Close(code int, reason string) error
	// Ping sends a transport-level heartbeat (a WebSocket ping control
	// frame in production). It carries no application data and is never
	// part of the {call,data} protocol.
	Ping() error
}
