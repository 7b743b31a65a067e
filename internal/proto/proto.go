// Package proto implements the line-oriented wire protocol: one frame per
// line, COMMAND or COMMAND:args, with the args payload split on the first
// colon only so nested payloads may themselves contain colons.
package proto

import "strings"

// Client to server commands.
const (
	CmdNick     = "NICK"
	CmdJoin     = "JOIN"
	CmdLeave    = "LEAVE"
	CmdMsg      = "MSG"
	CmdPM       = "PM"
	CmdUsers    = "USERS"
	CmdRooms    = "ROOMS"
	CmdWhoami   = "WHOAMI"
	CmdHelp     = "HELP"
	CmdQuit     = "QUIT"
	CmdCreate   = "CREATE"
	CmdInvite   = "INVITE"
	CmdKick     = "KICK"
	CmdBan      = "BAN"
	CmdSetPass  = "SETPASS"
	CmdPrivate  = "PRIVATE"
	CmdPublic   = "PUBLIC"
	CmdRoomInfo = "ROOMINFO"
)

// Server to client reply codes.
const (
	RplWelcome  = "001"
	RplNickOK   = "002"
	RplNickErr  = "003"
	RplUserList = "004"
	RplJoined   = "005"
	RplRoomList = "006"
	RplPM       = "007"
	RplInfo     = "008"
	RplRoomInfo = "009"

	ErrNoUser       = "401"
	ErrNoRoom       = "402"
	ErrRateLimit    = "403"
	ErrNoPermission = "404"
	ErrWrongPass    = "405"
)

// Out-of-band signals sent as plain text rather than protocol frames.
const (
	SignalServerFull     = "SERVER_FULL"
	SignalServerShutdown = "SERVER_SHUTDOWN"
)

// Encode builds a protocol frame: COMMAND:arg1:arg2...\n.
func Encode(command string, args ...string) string {
	if len(args) == 0 {
		return command + "\n"
	}
	return command + ":" + strings.Join(args, ":") + "\n"
}

// Decode parses a frame into its command and argument payload. The payload
// is everything after the first colon, uninterpreted.
func Decode(line string) (command, args string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return line, ""
}

// SplitArg splits an argument payload on its first colon. Used for nested
// payloads such as PM's recipient:message.
func SplitArg(args string) (head, rest string, ok bool) {
	if i := strings.IndexByte(args, ':'); i >= 0 {
		return args[:i], args[i+1:], true
	}
	return args, "", false
}
