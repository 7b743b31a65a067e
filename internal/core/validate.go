package core

import (
	"fmt"
	"regexp"
	"strings"
)

// MinNicknameLen is the shortest nickname accepted.
const MinNicknameLen = 2

var (
	nickPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	roomNameStrip   = regexp.MustCompile(`[^a-z0-9_-]`)
	messageStripper = strings.NewReplacer("\x00", "", "\r", "")
)

// Limits bounds user-supplied input. Zero values are replaced by defaults.
type Limits struct {
	MaxMessageLen  int
	MaxNicknameLen int
	MaxRoomNameLen int
}

// DefaultLimits returns the stock input limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageLen:  500,
		MaxNicknameLen: 20,
		MaxRoomNameLen: 30,
	}
}

// ValidateNickname checks length and charset. The returned error wraps
// ErrNickInvalid and carries a human-readable reason.
func (l Limits) ValidateNickname(nick string) error {
	if nick == "" {
		return fmt.Errorf("%w: nickname cannot be empty", ErrNickInvalid)
	}
	if len(nick) < MinNicknameLen {
		return fmt.Errorf("%w: too short (min %d chars)", ErrNickInvalid, MinNicknameLen)
	}
	if len(nick) > l.MaxNicknameLen {
		return fmt.Errorf("%w: too long (max %d)", ErrNickInvalid, l.MaxNicknameLen)
	}
	if !nickPattern.MatchString(nick) {
		return fmt.Errorf("%w: only letters, numbers, _, - allowed", ErrNickInvalid)
	}
	return nil
}

// CleanMessage strips NUL and CR bytes and enforces the length limit. The
// length check runs after stripping so control bytes cannot push a valid
// message over the limit.
func (l Limits) CleanMessage(msg string) (string, error) {
	msg = messageStripper.Replace(msg)
	if len(msg) > l.MaxMessageLen {
		return "", fmt.Errorf("%w: too long (max %d)", ErrMessageInvalid, l.MaxMessageLen)
	}
	return msg, nil
}

// NormalizeRoomName lowercases, strips a leading #, drops disallowed
// characters, and truncates to the room name limit. An empty result means
// the supplied name had no usable characters.
func (l Limits) NormalizeRoomName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "#")
	name = roomNameStrip.ReplaceAllString(name, "")
	if len(name) > l.MaxRoomNameLen {
		name = name[:l.MaxRoomNameLen]
	}
	return name
}
