package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linechat/linechat-server/internal/proto"
)

const motd = `Welcome to linechat, an IRC-style terminal chat.
Type /help for the command list.`

const helpText = `Available commands:
  /nick <name>          Set or change your nickname
  /join <room>[:pass]   Join a room (creates it if missing)
  /leave                Leave your current room
  /pm <user> <text>     Send a private message
  /users                List users in your current room
  /rooms                List all rooms
  /whoami               Show your info
  /create <room>[:pass[:topic]]  Create a room you own
  /invite <user>[:room] Invite a user (owner only)
  /kick <user>[:room]   Kick a user (owner only)
  /ban <user>[:room]    Ban a user (owner only)
  /setpass <pass>[:room]  Set or clear the room password (owner only)
  /private [room]       Make a room invite-only (owner only)
  /public [room]        Make a room public again (owner only)
  /roominfo [room]      Show room details
  /quit                 Disconnect
Messages without a leading command go to your current room.`

// Dispatcher decodes inbound frames into core operations. Each connection
// is in one of two states: unauthenticated (no nickname bound) or active.
// NICK is the only command accepted in both and is the sole transition
// between them.
type Dispatcher struct {
	sessions *Sessions
	rooms    *Rooms
	limiter  *RateLimiter
	router   *Router
	limits   Limits
	autoJoin string
	log      *zerolog.Logger
}

// NewDispatcher wires the dispatcher over the core components. autoJoin is
// the room a client enters on its first successful NICK.
func NewDispatcher(sessions *Sessions, rooms *Rooms, limiter *RateLimiter, router *Router, limits Limits, autoJoin string, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		rooms:    rooms,
		limiter:  limiter,
		router:   router,
		limits:   limits,
		autoJoin: autoJoin,
		log:      logger,
	}
}

// Greet sends the banner and welcome reply to a freshly accepted
// connection.
func (d *Dispatcher) Greet(conn Conn) {
	for _, line := range strings.Split(motd, "\n") {
		d.text(conn, line)
	}
	d.reply(conn, proto.RplWelcome, "Welcome! Please set your nickname with /nick <name>")
}

// Dispatch handles one inbound frame. It returns false when the connection
// should be closed (QUIT); the caller then runs Disconnect.
func (d *Dispatcher) Dispatch(conn Conn, line string) bool {
	command, args := proto.Decode(line)
	nick, bound := d.sessions.NickFor(conn)

	switch command {
	case proto.CmdQuit:
		return false
	case proto.CmdNick:
		d.handleNick(conn, nick, args)
		return true
	case proto.CmdHelp:
		d.handleHelp(conn)
		return true
	}

	if !bound {
		d.text(conn, "Set nickname first with /nick <name>")
		return true
	}

	switch command {
	case proto.CmdJoin:
		d.handleJoin(conn, nick, args)
	case proto.CmdLeave:
		d.handleLeave(conn, nick)
	case proto.CmdMsg:
		d.handleMsg(conn, nick, args)
	case proto.CmdPM:
		d.handlePM(conn, nick, args)
	case proto.CmdUsers:
		d.handleUsers(conn, nick)
	case proto.CmdRooms:
		d.handleRooms(conn)
	case proto.CmdWhoami:
		d.handleWhoami(conn, nick)
	case proto.CmdCreate:
		d.handleCreate(conn, nick, args)
	case proto.CmdInvite:
		d.handleInvite(conn, nick, args)
	case proto.CmdKick:
		d.handleKick(conn, nick, args)
	case proto.CmdBan:
		d.handleBan(conn, nick, args)
	case proto.CmdSetPass:
		d.handleSetPass(conn, nick, args)
	case proto.CmdPrivate:
		d.handlePrivate(conn, nick, args)
	case proto.CmdPublic:
		d.handlePublic(conn, nick, args)
	case proto.CmdRoomInfo:
		d.handleRoomInfo(conn, nick, args)
	default:
		// Unknown frames are chat text for the current room.
		d.handleMsg(conn, nick, strings.TrimSpace(line))
	}
	return true
}

// Disconnect runs cleanup for a closed connection: unbind the nickname,
// leave all rooms, reset rate-limit history, and announce the departure if
// a room was occupied. Safe to call for connections that never bound.
func (d *Dispatcher) Disconnect(conn Conn) {
	nick, ok := d.sessions.Unbind(conn)
	if !ok {
		return
	}

	room, occupied := d.rooms.RoomOf(nick)
	d.rooms.LeaveAll(nick)
	d.limiter.Reset(nick)

	if occupied {
		d.router.BroadcastToRoom(room, serverText(nick+" has left"), conn)
	}
	d.log.Info().Str("nick", nick).Str("addr", conn.RemoteAddr()).Msg("client disconnected")
}

func (d *Dispatcher) handleNick(conn Conn, old, args string) {
	nick := strings.TrimSpace(args)
	if nick == ServerOwner {
		d.reply(conn, proto.RplNickErr, "Nickname is reserved")
		return
	}

	initial, err := d.sessions.Bind(conn, nick)
	switch {
	case errors.Is(err, ErrNickInvalid):
		d.reply(conn, proto.RplNickErr, err.Error())
		return
	case errors.Is(err, ErrNickTaken):
		d.reply(conn, proto.RplNickErr, "Nickname already in use")
		return
	case err != nil:
		d.reply(conn, proto.RplNickErr, "Nickname rejected")
		return
	}

	d.reply(conn, proto.RplNickOK, "Nickname set to "+nick)

	if initial {
		if err := d.rooms.Join(nick, d.autoJoin, ""); err != nil {
			d.log.Warn().Err(err).Str("nick", nick).Str("room", d.autoJoin).Msg("auto-join failed")
			return
		}
		d.router.BroadcastToRoom(d.autoJoin, serverText(nick+" has joined #"+d.autoJoin), conn)
		d.log.Info().Str("nick", nick).Str("addr", conn.RemoteAddr()).Msg("client connected")
		return
	}

	if old != nick {
		d.rooms.Rename(old, nick)
		if room, ok := d.rooms.RoomOf(nick); ok {
			d.router.BroadcastToRoom(room, serverText(old+" is now known as "+nick), conn)
		}
	}
}

func (d *Dispatcher) handleJoin(conn Conn, nick, args string) {
	roomArg, password, _ := proto.SplitArg(args)
	room := d.limits.NormalizeRoomName(roomArg)
	if room == "" {
		d.reply(conn, proto.ErrNoRoom, "Invalid room name")
		return
	}

	oldRoom, hadOld := d.rooms.RoomOf(nick)

	switch err := d.rooms.Join(nick, room, password); {
	case errors.Is(err, ErrBanned):
		d.reply(conn, proto.ErrNoPermission, "You are banned from #"+room)
		return
	case errors.Is(err, ErrPrivateNoInvite):
		d.reply(conn, proto.ErrNoPermission, "#"+room+" is private, you need an invite")
		return
	case errors.Is(err, ErrWrongPassword):
		d.reply(conn, proto.ErrWrongPass, "Wrong password for #"+room)
		return
	case err != nil:
		d.reply(conn, proto.ErrNoRoom, "Could not join #"+room)
		return
	}

	d.announceJoin(conn, nick, room, oldRoom, hadOld)
}

func (d *Dispatcher) announceJoin(conn Conn, nick, room, oldRoom string, hadOld bool) {
	if hadOld && oldRoom != room {
		d.router.BroadcastToRoom(oldRoom, serverText(nick+" left #"+oldRoom), conn)
	}
	d.router.BroadcastToRoom(room, serverText(nick+" joined #"+room), conn)

	users := strings.Join(sorted(d.rooms.MembersOf(room)), ", ")
	d.reply(conn, proto.RplJoined, room, "Users in #"+room+": "+users)
}

func (d *Dispatcher) handleLeave(conn Conn, nick string) {
	room, ok := d.rooms.RoomOf(nick)
	if !ok {
		d.text(conn, "You are not in any room")
		return
	}
	d.rooms.Leave(nick, room)
	d.router.BroadcastToRoom(room, serverText(nick+" left #"+room), conn)
	d.reply(conn, proto.RplInfo, "Left #"+room)
}

func (d *Dispatcher) handleMsg(conn Conn, nick, text string) {
	if !d.limiter.Allow(nick) {
		wait := d.limiter.WaitTime(nick)
		d.reply(conn, proto.ErrRateLimit, fmt.Sprintf("Rate limit exceeded. Wait %ds", ceilSeconds(wait)))
		return
	}

	clean, err := d.limits.CleanMessage(text)
	if err != nil {
		d.text(conn, "Error: "+err.Error())
		return
	}
	if strings.TrimSpace(clean) == "" {
		return
	}

	room, ok := d.rooms.RoomOf(nick)
	if !ok {
		d.text(conn, "Join a room first with /join <room>")
		return
	}
	d.router.BroadcastToRoom(room, fmt.Sprintf("[#%s] %s: %s\n", room, nick, clean), conn)
}

func (d *Dispatcher) handlePM(conn Conn, nick, args string) {
	recipient, text, ok := proto.SplitArg(args)
	recipient = strings.TrimSpace(recipient)
	if !ok || recipient == "" || text == "" {
		d.text(conn, "Usage: /pm <user> <message>")
		return
	}

	clean, err := d.limits.CleanMessage(text)
	if err != nil {
		d.text(conn, "Error: "+err.Error())
		return
	}

	if _, online := d.sessions.ConnFor(recipient); !online {
		d.reply(conn, proto.ErrNoUser, "User "+recipient+" not found")
		return
	}

	d.router.Notify(recipient, proto.Encode(proto.RplPM, nick, clean))
	d.reply(conn, proto.RplInfo, fmt.Sprintf("[PM to %s] %s", recipient, clean))
}

func (d *Dispatcher) handleUsers(conn Conn, nick string) {
	room, ok := d.rooms.RoomOf(nick)
	if !ok {
		d.text(conn, "You are not in any room")
		return
	}
	users := strings.Join(sorted(d.rooms.MembersOf(room)), ", ")
	d.reply(conn, proto.RplUserList, "Users in #"+room+": "+users)
}

func (d *Dispatcher) handleRooms(conn Conn) {
	list := d.rooms.List()
	if len(list) == 0 {
		d.text(conn, "No rooms available")
		return
	}

	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		info := list[name]
		entry := fmt.Sprintf("#%s (%d users)", name, info.Members)
		if info.Private {
			entry += " [private]"
		}
		if info.HasPassword {
			entry += " [locked]"
		}
		parts = append(parts, entry)
	}
	d.reply(conn, proto.RplRoomList, "Available rooms: "+strings.Join(parts, ", "))
}

func (d *Dispatcher) handleWhoami(conn Conn, nick string) {
	room, ok := d.rooms.RoomOf(nick)
	if !ok {
		room = "none"
	}
	d.reply(conn, proto.RplInfo, fmt.Sprintf("Nickname: %s | Room: #%s | Address: %s", nick, room, conn.RemoteAddr()))
}

func (d *Dispatcher) handleHelp(conn Conn) {
	for _, line := range strings.Split(helpText, "\n") {
		d.text(conn, line)
	}
}

func (d *Dispatcher) handleCreate(conn Conn, nick, args string) {
	roomArg, rest, _ := proto.SplitArg(args)
	password, topic, _ := proto.SplitArg(rest)

	room := d.limits.NormalizeRoomName(roomArg)
	if room == "" {
		d.reply(conn, proto.ErrNoRoom, "Invalid room name")
		return
	}

	if !d.rooms.Create(room, topic, false, password, nick) {
		d.reply(conn, proto.ErrNoRoom, "Room #"+room+" already exists")
		return
	}

	oldRoom, hadOld := d.rooms.RoomOf(nick)
	if err := d.rooms.Join(nick, room, password); err != nil {
		d.reply(conn, proto.ErrNoRoom, "Could not join #"+room)
		return
	}
	d.announceJoin(conn, nick, room, oldRoom, hadOld)
}

func (d *Dispatcher) handleInvite(conn Conn, nick, args string) {
	target, room, ok := d.targetAndRoom(conn, nick, args)
	if !ok {
		return
	}

	if err := d.rooms.Invite(room, nick, target); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	d.reply(conn, proto.RplInfo, "Invited "+target+" to #"+room)
	d.router.Notify(target, proto.Encode(proto.RplInfo, nick+" invited you to #"+room))
}

func (d *Dispatcher) handleKick(conn Conn, nick, args string) {
	target, room, ok := d.targetAndRoom(conn, nick, args)
	if !ok {
		return
	}

	if err := d.rooms.Kick(room, nick, target); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	d.router.Notify(target, proto.Encode(proto.RplInfo, "You were kicked from #"+room))
	d.router.BroadcastToRoom(room, serverText(target+" was kicked from #"+room), nil)
	d.reply(conn, proto.RplInfo, "Kicked "+target+" from #"+room)
}

func (d *Dispatcher) handleBan(conn Conn, nick, args string) {
	target, room, ok := d.targetAndRoom(conn, nick, args)
	if !ok {
		return
	}

	if err := d.rooms.Ban(room, nick, target); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	d.router.Notify(target, proto.Encode(proto.RplInfo, "You were banned from #"+room))
	d.router.BroadcastToRoom(room, serverText(target+" was banned from #"+room), nil)
	d.reply(conn, proto.RplInfo, "Banned "+target+" from #"+room)
}

func (d *Dispatcher) handleSetPass(conn Conn, nick, args string) {
	password, room, ok := d.targetAndRoom(conn, nick, args)
	if !ok {
		return
	}

	if err := d.rooms.SetPassword(room, nick, password); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	if password == "" {
		d.reply(conn, proto.RplInfo, "Password cleared for #"+room)
		return
	}
	d.reply(conn, proto.RplInfo, "Password set for #"+room)
}

func (d *Dispatcher) handlePrivate(conn Conn, nick, args string) {
	room, ok := d.roomOrCurrent(conn, nick, args)
	if !ok {
		return
	}
	if err := d.rooms.MakePrivate(room, nick); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	d.reply(conn, proto.RplInfo, "#"+room+" is now private")
}

func (d *Dispatcher) handlePublic(conn Conn, nick, args string) {
	room, ok := d.roomOrCurrent(conn, nick, args)
	if !ok {
		return
	}
	if err := d.rooms.MakePublic(room, nick); err != nil {
		d.replyRoomError(conn, room, err)
		return
	}
	d.reply(conn, proto.RplInfo, "#"+room+" is now public")
}

func (d *Dispatcher) handleRoomInfo(conn Conn, nick, args string) {
	room, ok := d.roomOrCurrent(conn, nick, args)
	if !ok {
		return
	}
	info, found := d.rooms.Info(room)
	if !found {
		d.reply(conn, proto.ErrNoRoom, "No such room: #"+room)
		return
	}
	d.reply(conn, proto.RplRoomInfo,
		info.Name,
		info.Topic,
		info.Owner,
		strconv.Itoa(info.Members),
		strconv.FormatBool(info.Private),
		strconv.FormatBool(info.HasPassword),
	)
}

// targetAndRoom parses the target[:room] payload used by the admin
// commands, resolving an omitted room to the caller's current one.
func (d *Dispatcher) targetAndRoom(conn Conn, nick, args string) (target, room string, ok bool) {
	target, roomArg, _ := proto.SplitArg(args)
	target = strings.TrimSpace(target)

	room, ok = d.roomOrCurrent(conn, nick, roomArg)
	return target, room, ok
}

// roomOrCurrent normalizes an explicit room argument, or falls back to the
// caller's current room when the argument is empty.
func (d *Dispatcher) roomOrCurrent(conn Conn, nick, roomArg string) (string, bool) {
	if strings.TrimSpace(roomArg) != "" {
		room := d.limits.NormalizeRoomName(roomArg)
		if room == "" {
			d.reply(conn, proto.ErrNoRoom, "Invalid room name")
			return "", false
		}
		return room, true
	}

	room, ok := d.rooms.RoomOf(nick)
	if !ok {
		d.text(conn, "You are not in any room")
		return "", false
	}
	return room, true
}

func (d *Dispatcher) replyRoomError(conn Conn, room string, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		d.reply(conn, proto.ErrNoRoom, "No such room: #"+room)
	case errors.Is(err, ErrNotOwner):
		d.reply(conn, proto.ErrNoPermission, "Only the owner of #"+room+" may do that")
	case errors.Is(err, ErrCannotTargetSelf):
		d.reply(conn, proto.ErrNoPermission, "You cannot target yourself")
	default:
		d.reply(conn, proto.ErrNoRoom, "Operation failed for #"+room)
	}
}

func (d *Dispatcher) reply(conn Conn, code string, args ...string) {
	if err := conn.Send(proto.Encode(code, args...)); err != nil {
		d.log.Debug().Err(err).Str("conn_id", conn.ID()).Str("code", code).Msg("reply dropped")
	}
}

func (d *Dispatcher) text(conn Conn, s string) {
	if err := conn.Send(s + "\n"); err != nil {
		d.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("text dropped")
	}
}

func serverText(s string) string {
	return "[SERVER] " + s + "\n"
}

func ceilSeconds(dur time.Duration) int {
	secs := int(dur / time.Second)
	if dur%time.Second > 0 {
		secs++
	}
	return secs
}

func sorted(values []string) []string {
	sort.Strings(values)
	return values
}
