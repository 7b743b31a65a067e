package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestBindValidatesFormat(t *testing.T) {
	s := NewSessions(DefaultLimits())
	conn := newFakeConn("c1")

	cases := []string{
		"",
		"a",
		"this-nickname-is-way-too-long",
		"bad name",
		"bad:name",
		"emoji👾",
	}
	for _, nick := range cases {
		if _, err := s.Bind(conn, nick); !errors.Is(err, ErrNickInvalid) {
			t.Fatalf("Bind(%q) = %v, want ErrNickInvalid", nick, err)
		}
	}
}

func TestBindRejectsTakenNick(t *testing.T) {
	s := NewSessions(DefaultLimits())
	a := newFakeConn("a")
	b := newFakeConn("b")

	if _, err := s.Bind(a, "alice"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if _, err := s.Bind(b, "alice"); !errors.Is(err, ErrNickTaken) {
		t.Fatalf("second bind = %v, want ErrNickTaken", err)
	}
}

func TestBindReportsInitialVsRename(t *testing.T) {
	s := NewSessions(DefaultLimits())
	conn := newFakeConn("c1")

	initial, err := s.Bind(conn, "alice")
	if err != nil || !initial {
		t.Fatalf("first bind = (%v, %v), want (true, nil)", initial, err)
	}

	initial, err = s.Bind(conn, "alicia")
	if err != nil || initial {
		t.Fatalf("rename = (%v, %v), want (false, nil)", initial, err)
	}

	// The old nickname is free again.
	other := newFakeConn("c2")
	if _, err := s.Bind(other, "alice"); err != nil {
		t.Fatalf("rebinding freed nickname: %v", err)
	}
}

func TestRebindSameNickIsNoop(t *testing.T) {
	s := NewSessions(DefaultLimits())
	conn := newFakeConn("c1")

	if _, err := s.Bind(conn, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	initial, err := s.Bind(conn, "alice")
	if err != nil || initial {
		t.Fatalf("rebind = (%v, %v), want (false, nil)", initial, err)
	}
}

func TestUnbindFreesNickname(t *testing.T) {
	s := NewSessions(DefaultLimits())
	conn := newFakeConn("c1")

	if _, err := s.Bind(conn, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	nick, ok := s.Unbind(conn)
	if !ok || nick != "alice" {
		t.Fatalf("Unbind = (%q, %v), want (alice, true)", nick, ok)
	}
	if _, ok := s.ConnFor("alice"); ok {
		t.Fatal("nickname still resolvable after unbind")
	}
	if _, ok := s.Unbind(conn); ok {
		t.Fatal("second unbind must report nothing freed")
	}
}

func TestConcurrentBindSingleWinner(t *testing.T) {
	s := NewSessions(DefaultLimits())

	const contenders = 32
	var wg sync.WaitGroup
	results := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn(fmt.Sprintf("c%d", i))
			_, results[i] = s.Bind(conn, "highlander")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrNickTaken) {
			t.Fatalf("unexpected bind error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}
