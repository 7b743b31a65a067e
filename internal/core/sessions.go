package core

import "sync"

// Sessions maps live connections to their chosen nicknames and enforces
// nickname uniqueness. It owns nothing about rooms; the two registries are
// never locked together.
type Sessions struct {
	mu     sync.Mutex
	limits Limits
	byConn map[Conn]string
	byNick map[string]Conn
}

// NewSessions builds an empty session registry.
func NewSessions(limits Limits) *Sessions {
	return &Sessions{
		limits: limits,
		byConn: make(map[Conn]string),
		byNick: make(map[string]Conn),
	}
}

// Bind associates conn with nick. It reports whether this was the
// connection's initial bind (as opposed to a rename) so the dispatcher can
// branch without re-deriving it. Fails with ErrNickInvalid on bad format
// and ErrNickTaken when another live connection holds the nickname.
func (s *Sessions) Bind(conn Conn, nick string) (initial bool, err error) {
	if err := s.limits.ValidateNickname(nick); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if holder, ok := s.byNick[nick]; ok && holder != conn {
		return false, ErrNickTaken
	}

	prev, had := s.byConn[conn]
	if had {
		delete(s.byNick, prev)
	}
	s.byConn[conn] = nick
	s.byNick[nick] = conn
	return !had, nil
}

// Unbind removes the association for conn and returns the nickname that
// was freed, if any.
func (s *Sessions) Unbind(conn Conn) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nick, ok := s.byConn[conn]
	if !ok {
		return "", false
	}
	delete(s.byConn, conn)
	delete(s.byNick, nick)
	return nick, true
}

// ConnFor resolves the live connection holding nick.
func (s *Sessions) ConnFor(nick string) (Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byNick[nick]
	return c, ok
}

// NickFor returns the nickname bound to conn, if any.
func (s *Sessions) NickFor(conn Conn) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byConn[conn]
	return n, ok
}

// Count reports how many connections currently hold a nickname.
func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byConn)
}

// Nicks returns a snapshot of all bound nicknames.
func (s *Sessions) Nicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nicks := make([]string, 0, len(s.byNick))
	for n := range s.byNick {
		nicks = append(nicks, n)
	}
	return nicks
}
