package core

// Conn is the duplex channel a transport hands to the core for one client.
// Implementations must make Send safe for concurrent use and non-blocking:
// a slow peer returns ErrSlowConsumer instead of stalling the caller.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// RemoteAddr is the peer address in host:port form.
	RemoteAddr() string
	// Send queues one already-terminated protocol frame or text line.
	Send(line string) error
	// Close tears the connection down. Safe to call more than once.
	Close() error
}
