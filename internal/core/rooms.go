package core

import "sync"

// ServerOwner is the sentinel owner of rooms created at startup. No live
// connection can hold it: it fails nickname validation only by convention,
// so the registry must never accept it from a client (the dispatcher's
// bind path rejects it before it reaches here).
const ServerOwner = "Server"

// RoomInfo is a read-only snapshot of one room's public attributes. It
// never exposes the password itself.
type RoomInfo struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Owner       string `json:"owner"`
	Members     int    `json:"members"`
	Private     bool   `json:"private"`
	HasPassword bool   `json:"has_password"`
}

type room struct {
	name         string
	topic        string
	private      bool
	passwordHash string
	owner        string
	members      map[string]struct{}
	invited      map[string]struct{}
	banned       map[string]struct{}
}

func newRoom(name, topic string, private bool, passwordHash, owner string) *room {
	return &room{
		name:         name,
		topic:        topic,
		private:      private,
		passwordHash: passwordHash,
		owner:        owner,
		members:      make(map[string]struct{}),
		invited:      make(map[string]struct{}),
		banned:       make(map[string]struct{}),
	}
}

// Rooms owns all room state: membership, topic, privacy, password, owner,
// invite and ban sets. A single mutex serializes every operation, so each
// exported method is atomic with respect to the others. Rooms are never
// deleted; an empty room persists until process restart.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRooms builds an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*room)}
}

// Create adds a new room. Returns false if the name is already taken;
// existing rooms are never overwritten. A non-empty password is stored
// hashed.
func (r *Rooms) Create(name, topic string, private bool, password, owner string) bool {
	var hash string
	if password != "" {
		h, err := hashPassword(password)
		if err != nil {
			return false
		}
		hash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[name]; exists {
		return false
	}
	r.rooms[name] = newRoom(name, topic, private, hash, owner)
	return true
}

// Join adds nick to the named room, removing it from every other room
// first so a nickname occupies at most one room. A missing room is
// auto-created as public with nick as owner; any supplied password is
// ignored on that path. Otherwise bans, privacy, and the room password are
// checked in that order before membership changes.
func (r *Rooms) Join(nick, name, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		rm = newRoom(name, "", false, "", nick)
		r.rooms[name] = rm
	} else {
		if _, banned := rm.banned[nick]; banned {
			return ErrBanned
		}
		if rm.private && nick != rm.owner {
			if _, invited := rm.invited[nick]; !invited {
				return ErrPrivateNoInvite
			}
		}
		if rm.passwordHash != "" && !checkPassword(rm.passwordHash, password) {
			return ErrWrongPassword
		}
	}

	r.leaveAllLocked(nick)
	rm.members[nick] = struct{}{}
	return nil
}

// Leave removes nick from the named room. Idempotent; no error if nick was
// not a member or the room does not exist.
func (r *Rooms) Leave(nick, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[name]; ok {
		delete(rm.members, nick)
	}
}

// LeaveAll removes nick from every room's member set.
func (r *Rooms) LeaveAll(nick string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveAllLocked(nick)
}

func (r *Rooms) leaveAllLocked(nick string) {
	for _, rm := range r.rooms {
		delete(rm.members, nick)
	}
}

// Invite lets the room owner add invitee to the invite list.
func (r *Rooms) Invite(name, inviter, invitee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != inviter {
		return ErrNotOwner
	}
	rm.invited[invitee] = struct{}{}
	return nil
}

// Kick removes kickee from the room. Owner-only; self-target rejected.
func (r *Rooms) Kick(name, kicker, kickee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != kicker {
		return ErrNotOwner
	}
	if kicker == kickee {
		return ErrCannotTargetSelf
	}
	delete(rm.members, kickee)
	return nil
}

// Ban removes banee from the room and its invite list and records the ban,
// so a banned nickname is never simultaneously a member or an invitee.
// Owner-only; self-target rejected.
func (r *Rooms) Ban(name, banner, banee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != banner {
		return ErrNotOwner
	}
	if banner == banee {
		return ErrCannotTargetSelf
	}
	rm.banned[banee] = struct{}{}
	delete(rm.members, banee)
	delete(rm.invited, banee)
	return nil
}

// SetPassword sets or, with an empty password, clears the room password.
// Owner-only.
func (r *Rooms) SetPassword(name, setter, password string) error {
	var hash string
	if password != "" {
		h, err := hashPassword(password)
		if err != nil {
			return err
		}
		hash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != setter {
		return ErrNotOwner
	}
	rm.passwordHash = hash
	return nil
}

// MakePrivate marks the room private and snapshots current members into
// the invite list so existing occupants are not locked out. Owner-only.
func (r *Rooms) MakePrivate(name, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != requester {
		return ErrNotOwner
	}
	rm.private = true
	for nick := range rm.members {
		rm.invited[nick] = struct{}{}
	}
	return nil
}

// MakePublic clears the private flag and the invite list. Owner-only.
func (r *Rooms) MakePublic(name, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.owner != requester {
		return ErrNotOwner
	}
	rm.private = false
	rm.invited = make(map[string]struct{})
	return nil
}

// Rename replaces from with to across every room's member, invite, and ban
// sets and ownership, so a rename carries membership and standing with it.
func (r *Rooms) Rename(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rm := range r.rooms {
		if rm.owner == from {
			rm.owner = to
		}
		renameIn(rm.members, from, to)
		renameIn(rm.invited, from, to)
		renameIn(rm.banned, from, to)
	}
}

func renameIn(set map[string]struct{}, from, to string) {
	if _, ok := set[from]; ok {
		delete(set, from)
		set[to] = struct{}{}
	}
}

// MembersOf returns a snapshot of the room's member set. Nil if the room
// does not exist.
func (r *Rooms) MembersOf(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(rm.members))
	for nick := range rm.members {
		members = append(members, nick)
	}
	return members
}

// RoomOf finds which room nick occupies. Linear scan; fine at the target
// scale of tens of rooms.
func (r *Rooms) RoomOf(nick string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, rm := range r.rooms {
		if _, ok := rm.members[nick]; ok {
			return name, true
		}
	}
	return "", false
}

// Exists reports whether a room with the given name exists.
func (r *Rooms) Exists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[name]
	return ok
}

// Info returns a snapshot of one room.
func (r *Rooms) Info(name string) (RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return RoomInfo{}, false
	}
	return rm.info(), true
}

// List returns a snapshot of every room keyed by name.
func (r *Rooms) List() map[string]RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]RoomInfo, len(r.rooms))
	for name, rm := range r.rooms {
		out[name] = rm.info()
	}
	return out
}

func (rm *room) info() RoomInfo {
	return RoomInfo{
		Name:        rm.name,
		Topic:       rm.topic,
		Owner:       rm.owner,
		Members:     len(rm.members),
		Private:     rm.private,
		HasPassword: rm.passwordHash != "",
	}
}
