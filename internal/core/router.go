package core

import "github.com/rs/zerolog"

// Router fans messages out to the connections of current room members. It
// holds no state of its own: membership and connections are re-resolved on
// every call, since both can change between sends. Resolution takes one
// registry lock at a time and delivery happens with no lock held, so a
// slow peer can never stall the registries.
type Router struct {
	sessions *Sessions
	rooms    *Rooms
	log      *zerolog.Logger
}

// NewRouter builds a router over the two registries.
func NewRouter(sessions *Sessions, rooms *Rooms, logger *zerolog.Logger) *Router {
	return &Router{sessions: sessions, rooms: rooms, log: logger}
}

// BroadcastToRoom delivers line to every live member of the room except
// the excluded connection (typically the sender; nil excludes nobody).
// Per-recipient delivery failures are swallowed: one dead peer must not
// abort delivery to the rest.
func (r *Router) BroadcastToRoom(name, line string, exclude Conn) {
	members := r.rooms.MembersOf(name)

	conns := make([]Conn, 0, len(members))
	for _, nick := range members {
		conn, ok := r.sessions.ConnFor(nick)
		if !ok || conn == exclude {
			continue
		}
		conns = append(conns, conn)
	}

	for _, conn := range conns {
		if err := conn.Send(line); err != nil {
			r.log.Debug().Err(err).Str("conn_id", conn.ID()).Str("room", name).Msg("broadcast delivery dropped")
		}
	}
}

// Notify delivers line to the single connection holding nick. Silent no-op
// if the nickname is offline.
func (r *Router) Notify(nick, line string) {
	conn, ok := r.sessions.ConnFor(nick)
	if !ok {
		return
	}
	if err := conn.Send(line); err != nil {
		r.log.Debug().Err(err).Str("nick", nick).Msg("notify delivery dropped")
	}
}
