package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateNickname(t *testing.T) {
	limits := DefaultLimits()

	for _, nick := range []string{"ab", "alice", "user_42", "some-one", strings.Repeat("a", 20)} {
		if err := limits.ValidateNickname(nick); err != nil {
			t.Fatalf("ValidateNickname(%q) = %v, want nil", nick, err)
		}
	}

	for _, nick := range []string{"", "a", strings.Repeat("a", 21), "has space", "semi;colon", "tab\tname"} {
		if err := limits.ValidateNickname(nick); !errors.Is(err, ErrNickInvalid) {
			t.Fatalf("ValidateNickname(%q) = %v, want ErrNickInvalid", nick, err)
		}
	}
}

func TestNormalizeRoomName(t *testing.T) {
	limits := DefaultLimits()

	cases := []struct {
		in, want string
	}{
		{"general", "general"},
		{"#general", "general"},
		{"  #Dev Room!  ", "devroom"},
		{"UPPER_case-9", "upper_case-9"},
		{"###", ""},
		{strings.Repeat("r", 40), strings.Repeat("r", 30)},
	}
	for _, tc := range cases {
		if got := limits.NormalizeRoomName(tc.in); got != tc.want {
			t.Fatalf("NormalizeRoomName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanMessage(t *testing.T) {
	limits := DefaultLimits()

	got, err := limits.CleanMessage("he\x00llo\rworld")
	if err != nil || got != "helloworld" {
		t.Fatalf("CleanMessage = %q, %v", got, err)
	}

	if _, err := limits.CleanMessage(strings.Repeat("x", 501)); !errors.Is(err, ErrMessageInvalid) {
		t.Fatalf("oversize = %v, want ErrMessageInvalid", err)
	}

	// Stripping happens before the length check.
	padded := strings.Repeat("x", 500) + "\r"
	if _, err := limits.CleanMessage(padded); err != nil {
		t.Fatalf("stripped-to-limit message rejected: %v", err)
	}
}
