package core

import "errors"

// Sentinel errors for registry operations. The dispatcher maps these onto
// protocol error replies.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrBanned           = errors.New("banned from room")
	ErrPrivateNoInvite  = errors.New("room is private, invite required")
	ErrWrongPassword    = errors.New("wrong room password")
	ErrNotOwner         = errors.New("only the room owner may do that")
	ErrCannotTargetSelf = errors.New("cannot target yourself")

	ErrNickInvalid = errors.New("invalid nickname")
	ErrNickTaken   = errors.New("nickname already in use")

	ErrUserNotFound = errors.New("user not found")
	ErrNotInRoom    = errors.New("not in any room")

	ErrMessageInvalid = errors.New("invalid message")

	// ErrSlowConsumer is returned by a Conn whose outbound buffer is full.
	// The broadcast router drops the frame rather than stalling.
	ErrSlowConsumer = errors.New("slow consumer, frame dropped")
)
