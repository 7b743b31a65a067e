package core

import (
	"strings"
	"testing"
	"time"

	"github.com/linechat/linechat-server/internal/log"
	"github.com/linechat/linechat-server/internal/proto"
)

func TestCommandsRequireNickname(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	conn := newFakeConn("c1")

	for _, cmd := range []string{"JOIN:dev", "MSG:hi", "PM:bob:hi", "USERS", "ROOMS", "WHOAMI", "CREATE:dev", "INVITE:bob", "KICK:bob", "BAN:bob", "SETPASS:pw", "PRIVATE", "PUBLIC", "ROOMINFO"} {
		conn.reset()
		if !d.Dispatch(conn, cmd) {
			t.Fatalf("%s must not close the connection", cmd)
		}
		if !conn.has("Set nickname first") {
			t.Fatalf("%s while unauthenticated: got %v", cmd, conn.received())
		}
	}
}

func TestQuitWorksInBothStates(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	conn := newFakeConn("c1")

	if d.Dispatch(conn, "QUIT") {
		t.Fatal("QUIT while unauthenticated must request close")
	}

	conn2 := newFakeConn("c2")
	if !d.Dispatch(conn2, "NICK:alice") {
		t.Fatal("NICK closed the connection")
	}
	if d.Dispatch(conn2, "QUIT") {
		t.Fatal("QUIT while active must request close")
	}
}

func TestNickBindsAndAutoJoins(t *testing.T) {
	d, sessions, rooms, _ := newTestDispatcher()
	conn := newFakeConn("c1")

	d.Dispatch(conn, "NICK:alice")

	if !conn.has(proto.RplNickOK + ":Nickname set to alice") {
		t.Fatalf("missing NICKOK: %v", conn.received())
	}
	if nick, ok := sessions.NickFor(conn); !ok || nick != "alice" {
		t.Fatalf("session nick = %q, %v", nick, ok)
	}
	if room, ok := rooms.RoomOf("alice"); !ok || room != "general" {
		t.Fatalf("auto-join room = %q, %v; want general", room, ok)
	}
}

func TestNickRejectionsKeepState(t *testing.T) {
	d, sessions, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")

	d.Dispatch(a, "NICK:alice")

	b.reset()
	d.Dispatch(b, "NICK:alice")
	if !b.has(proto.RplNickErr + ":Nickname already in use") {
		t.Fatalf("taken nick: %v", b.received())
	}

	b.reset()
	d.Dispatch(b, "NICK:x")
	if !b.has(proto.RplNickErr) {
		t.Fatalf("invalid nick: %v", b.received())
	}

	b.reset()
	d.Dispatch(b, "NICK:Server")
	if !b.has(proto.RplNickErr + ":Nickname is reserved") {
		t.Fatalf("reserved nick: %v", b.received())
	}

	if _, ok := sessions.NickFor(b); ok {
		t.Fatal("rejected binds must leave the connection unauthenticated")
	}
}

func TestNickRenameKeepsMembershipAndAnnounces(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	b.reset()
	d.Dispatch(a, "NICK:alicia")

	if room, ok := rooms.RoomOf("alicia"); !ok || room != "general" {
		t.Fatalf("rename changed membership: %q %v", room, ok)
	}
	if !b.has("alice is now known as alicia") {
		t.Fatalf("room was not told about the rename: %v", b.received())
	}
}

func TestJoinSwitchesRoomsAndAnnounces(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	b.reset()
	a.reset()
	d.Dispatch(a, "JOIN:dev")

	if room, _ := rooms.RoomOf("alice"); room != "dev" {
		t.Fatalf("alice in %q, want dev", room)
	}
	if !b.has("alice left #general") {
		t.Fatalf("old room missed the departure: %v", b.received())
	}
	if !a.has(proto.RplJoined + ":dev:") {
		t.Fatalf("missing JOINED reply: %v", a.received())
	}
}

func TestJoinNormalizesRoomName(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")

	d.Dispatch(a, "JOIN:#Dev Room!")
	if room, _ := rooms.RoomOf("alice"); room != "devroom" {
		t.Fatalf("normalized room = %q, want devroom", room)
	}

	a.reset()
	d.Dispatch(a, "JOIN:###")
	if !a.has(proto.ErrNoRoom + ":Invalid room name") {
		t.Fatalf("unusable name: %v", a.received())
	}
}

func TestJoinErrorReplies(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	owner, other := newFakeConn("o"), newFakeConn("x")
	d.Dispatch(owner, "NICK:alice")
	d.Dispatch(other, "NICK:bob")

	rooms.Create("vault", "", true, "pw1", "alice")
	rooms.Ban("vault", "alice", "mallory")

	other.reset()
	d.Dispatch(other, "JOIN:vault")
	if !other.has(proto.ErrNoPermission) {
		t.Fatalf("private join: %v", other.received())
	}

	rooms.Invite("vault", "alice", "bob")
	other.reset()
	d.Dispatch(other, "JOIN:vault:wrong")
	if !other.has(proto.ErrWrongPass) {
		t.Fatalf("wrong password: %v", other.received())
	}

	other.reset()
	d.Dispatch(other, "JOIN:vault:pw1")
	if !other.has(proto.RplJoined) {
		t.Fatalf("correct password: %v", other.received())
	}
}

func TestMsgBroadcastsToRoom(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	b.reset()
	d.Dispatch(a, "MSG:hello there")

	if !b.has("[#general] alice: hello there") {
		t.Fatalf("message not delivered: %v", b.received())
	}
	if a.has("[#general] alice: hello there") {
		t.Fatal("sender received its own message")
	}
}

func TestUnknownCommandIsChatText(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	b.reset()
	d.Dispatch(a, "just chatting")

	if !b.has("[#general] alice: just chatting") {
		t.Fatalf("raw line not treated as chat: %v", b.received())
	}
}

func TestMsgRateLimitReply(t *testing.T) {
	limits := DefaultLimits()
	sessions := NewSessions(limits)
	rooms := NewRooms()
	rooms.Create("general", "", false, "", ServerOwner)
	limiter := NewRateLimiter(1, 60*time.Second)
	router := NewRouter(sessions, rooms, log.Discard())
	d := NewDispatcher(sessions, rooms, limiter, router, limits, "general", log.Discard())

	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")

	d.Dispatch(a, "MSG:one")
	a.reset()
	d.Dispatch(a, "MSG:two")

	if !a.has(proto.ErrRateLimit + ":Rate limit exceeded") {
		t.Fatalf("missing rate-limit reply: %v", a.received())
	}
}

func TestMsgValidation(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	a.reset()
	d.Dispatch(a, "MSG:"+strings.Repeat("x", 501))
	if !a.has("too long") {
		t.Fatalf("oversize message: %v", a.received())
	}

	// Control bytes are stripped, not fatal.
	b.reset()
	d.Dispatch(a, "MSG:he\x00llo\r")
	if !b.has("[#general] alice: hello") {
		t.Fatalf("stripped message not delivered: %v", b.received())
	}
}

func TestPMDeliversWithColonsInPayload(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	b.reset()
	d.Dispatch(a, "PM:bob:note to self: 12:30 standup")

	want := proto.RplPM + ":alice:note to self: 12:30 standup"
	if !b.has(want) {
		t.Fatalf("PM payload mangled: %v", b.received())
	}
	if !a.has("[PM to bob]") {
		t.Fatalf("missing sender confirmation: %v", a.received())
	}
}

func TestPMUnknownRecipient(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")

	a.reset()
	d.Dispatch(a, "PM:nobody:hi")
	if !a.has(proto.ErrNoUser + ":User nobody not found") {
		t.Fatalf("unknown recipient: %v", a.received())
	}
}

func TestCreateJoinsOwner(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")

	a.reset()
	d.Dispatch(a, "CREATE:dev:pw1:build chatter")

	info, ok := rooms.Info("dev")
	if !ok {
		t.Fatal("room not created")
	}
	if info.Owner != "alice" || !info.HasPassword || info.Topic != "build chatter" {
		t.Fatalf("unexpected room: %+v", info)
	}
	if room, _ := rooms.RoomOf("alice"); room != "dev" {
		t.Fatalf("creator not joined: in %q", room)
	}

	a.reset()
	d.Dispatch(a, "CREATE:dev")
	if !a.has("already exists") {
		t.Fatalf("duplicate create: %v", a.received())
	}
}

func TestInviteNotifiesTarget(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")
	d.Dispatch(a, "CREATE:dev")

	b.reset()
	d.Dispatch(a, "INVITE:bob")

	if !b.has("alice invited you to #dev") {
		t.Fatalf("target not notified: %v", b.received())
	}
}

func TestAdminCommandsAreOwnerOnly(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")
	d.Dispatch(a, "CREATE:dev")
	d.Dispatch(b, "JOIN:dev")

	for _, cmd := range []string{"INVITE:carol", "KICK:alice", "BAN:alice", "SETPASS:pw", "PRIVATE", "PUBLIC"} {
		b.reset()
		d.Dispatch(b, cmd)
		if !b.has(proto.ErrNoPermission) {
			t.Fatalf("%s by non-owner: %v", cmd, b.received())
		}
	}
}

func TestKickRemovesAndNotifies(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")
	d.Dispatch(a, "CREATE:dev")
	d.Dispatch(b, "JOIN:dev")

	b.reset()
	d.Dispatch(a, "KICK:bob")

	if !b.has("You were kicked from #dev") {
		t.Fatalf("kickee not notified: %v", b.received())
	}
	for _, m := range rooms.MembersOf("dev") {
		if m == "bob" {
			t.Fatal("kickee still a member")
		}
	}
}

func TestBanViaDispatcherBlocksRejoin(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")
	d.Dispatch(a, "CREATE:dev")
	d.Dispatch(b, "JOIN:dev")

	d.Dispatch(a, "BAN:bob")

	b.reset()
	d.Dispatch(b, "JOIN:dev")
	if !b.has("banned") {
		t.Fatalf("rejoin after ban: %v", b.received())
	}
}

func TestAdminRoomDefaultsToCurrent(t *testing.T) {
	d, _, rooms, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(a, "CREATE:dev")

	// Explicit room argument while standing elsewhere.
	d.Dispatch(a, "JOIN:general")
	d.Dispatch(a, "SETPASS:pw1:dev")

	info, _ := rooms.Info("dev")
	if !info.HasPassword {
		t.Fatal("explicit room argument ignored")
	}

	// No room argument and no current room.
	d.Dispatch(a, "LEAVE")
	a.reset()
	d.Dispatch(a, "SETPASS:pw2")
	if !a.has("You are not in any room") {
		t.Fatalf("missing fallback error: %v", a.received())
	}
}

func TestRoomInfoReply(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(a, "CREATE:dev:pw1:builds")
	d.Dispatch(a, "PRIVATE")

	a.reset()
	d.Dispatch(a, "ROOMINFO")
	if !a.has(proto.RplRoomInfo + ":dev:builds:alice:1:true:true") {
		t.Fatalf("room info reply: %v", a.received())
	}
}

func TestUsersAndWhoami(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")

	a.reset()
	d.Dispatch(a, "USERS")
	if !a.has("Users in #general: alice, bob") {
		t.Fatalf("user list: %v", a.received())
	}

	a.reset()
	d.Dispatch(a, "WHOAMI")
	if !a.has("Nickname: alice") || !a.has("Room: #general") {
		t.Fatalf("whoami: %v", a.received())
	}
}

func TestRoomsListing(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a := newFakeConn("a")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(a, "CREATE:vault:pw")
	d.Dispatch(a, "PRIVATE")

	a.reset()
	d.Dispatch(a, "ROOMS")
	last := a.last()
	if !strings.Contains(last, "#general (0 users)") {
		t.Fatalf("room list missing general: %q", last)
	}
	if !strings.Contains(last, "#vault (1 users) [private] [locked]") {
		t.Fatalf("room list missing vault flags: %q", last)
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	d, sessions, rooms, limiter := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Dispatch(a, "NICK:alice")
	d.Dispatch(b, "NICK:bob")
	d.Dispatch(a, "MSG:hi")

	b.reset()
	d.Disconnect(a)

	if _, ok := sessions.ConnFor("alice"); ok {
		t.Fatal("nickname still bound after disconnect")
	}
	if _, ok := rooms.RoomOf("alice"); ok {
		t.Fatal("membership survived disconnect")
	}
	if !b.has("alice has left") {
		t.Fatalf("departure not announced: %v", b.received())
	}
	if !limiter.Allow("alice") {
		t.Fatal("rate-limit history survived disconnect")
	}

	// Disconnect of a connection that never bound is harmless.
	d.Disconnect(newFakeConn("ghost"))
}

func TestGreetSendsWelcome(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	a := newFakeConn("a")

	d.Greet(a)
	if !a.has(proto.RplWelcome) {
		t.Fatalf("missing welcome reply: %v", a.received())
	}
}
