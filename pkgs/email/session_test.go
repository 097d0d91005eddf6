package email

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/emx-mail/export/pkgs/predicate"
)

// newConnectedSession returns an authenticated session for the test server.
func newConnectedSession(t *testing.T, addr string) *Session {
	t.Helper()
	s := NewSession(nil)
	if err := s.Connect(context.Background(), testConfig(t, addr)); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { s.Disconnect() })
	return s
}

func mustInstance(t *testing.T, name string, args ...any) *predicate.Instance {
	t.Helper()
	d, ok := predicate.Lookup(name)
	if !ok {
		t.Fatalf("predicate %s not found", name)
	}
	inst, err := predicate.NewInstance(d, args)
	if err != nil {
		t.Fatal(err)
	}
	return inst
}

// newSilentListener accepts connections and never sends a greeting.
func newSilentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestSessionConnect(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	s := newConnectedSession(t, addr)

	if s.State() != StateAuthenticated {
		t.Errorf("State() = %s, want authenticated", s.State())
	}
}

func TestSessionConnect_AlreadyConnected(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	s := newConnectedSession(t, addr)

	if err := s.Connect(context.Background(), testConfig(t, addr)); err == nil {
		t.Error("expected error connecting an authenticated session")
	}
	if s.State() != StateAuthenticated {
		t.Errorf("State() = %s, want authenticated", s.State())
	}
}

func TestSessionConnect_BadCredentials(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	cfg := testConfig(t, addr)
	cfg.Password = "wrong"

	s := NewSession(nil)
	err := s.Connect(context.Background(), cfg)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("auth failure must not match ErrTimeout")
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", s.State())
	}
}

func TestSessionConnect_AuthPlain(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	cfg := testConfig(t, addr)
	cfg.Auth = AuthPlain

	s := NewSession(nil)
	if err := s.Connect(context.Background(), cfg); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	s.Disconnect()
}

func TestSessionConnect_SSL(t *testing.T) {
	addr := newTestIMAPServer(t, newTestTLSConfig(t))
	cfg := testConfig(t, addr)
	cfg.SSL = true
	cfg.TLSConfig = insecureTLSConfig()

	s := NewSession(nil)
	if err := s.Connect(context.Background(), cfg); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	s.Disconnect()
}

func TestSessionConnect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := NewSession(nil)
	err = s.Connect(context.Background(), testConfig(t, addr))
	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Auth || ce.Timeout {
		t.Fatalf("expected plain ConnectError, got %v", err)
	}
}

func TestSessionConnect_TimeoutThenReconnect(t *testing.T) {
	silent := newSilentListener(t)
	cfg := testConfig(t, silent)
	cfg.Timeout = 200 * time.Millisecond

	s := NewSession(nil)
	start := time.Now()
	err := s.Connect(context.Background(), cfg)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect took %v, expected to give up near the timeout", elapsed)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("State() = %s, want disconnected", s.State())
	}

	addr := newTestIMAPServer(t, nil)
	if err := s.Connect(context.Background(), testConfig(t, addr)); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	defer s.Disconnect()
	if s.State() != StateAuthenticated {
		t.Errorf("State() = %s, want authenticated", s.State())
	}
}

func TestSessionDisconnect_Idempotent(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	s := newConnectedSession(t, addr)

	if err := s.Disconnect(); err != nil {
		t.Errorf("first Disconnect() error: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error: %v", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", s.State())
	}

	if err := NewSession(nil).Disconnect(); err != nil {
		t.Errorf("Disconnect() on fresh session error: %v", err)
	}
}

func TestSessionSearch_NotConnected(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Search(context.Background(), mustInstance(t, "All"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSessionSearch(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	appendTestMail(t, addr, "INBOX", testMail("Invoice Q3", "one"))
	appendTestMail(t, addr, "INBOX", testMail("Hello", "two"), imap.FlagSeen)
	appendTestMail(t, addr, "INBOX", testMail("Final invoice", "three"))
	s := newConnectedSession(t, addr)

	tests := []struct {
		name string
		inst *predicate.Instance
		want int
	}{
		{"all", mustInstance(t, "All"), 3},
		{"subject", mustInstance(t, "Subject", "invoice"), 2},
		{"seen", mustInstance(t, "Seen"), 1},
		{"unseen", mustInstance(t, "Unseen"), 2},
		{"no match", mustInstance(t, "Subject", "nothing-like-this"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Search(context.Background(), tt.inst)
			if err != nil {
				t.Fatalf("Search() error: %v", err)
			}
			if result.Len() != tt.want {
				t.Errorf("got %d matches (%v), want %d", result.Len(), result.UIDs(), tt.want)
			}
			if result.Mailbox != DefaultMailbox {
				t.Errorf("Mailbox = %q", result.Mailbox)
			}
		})
	}
}

func TestSessionSearch_OtherMailbox(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	appendTestMail(t, addr, "INBOX", testMail("inbox", "x"))
	appendTestMail(t, addr, "Archive", testMail("archived", "y"))

	cfg := testConfig(t, addr)
	cfg.Mailbox = "Archive"
	s := NewSession(nil)
	if err := s.Connect(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	result, err := s.Search(context.Background(), mustInstance(t, "All"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Len() != 1 || result.Mailbox != "Archive" {
		t.Errorf("unexpected result %s: %v", result.Mailbox, result.UIDs())
	}
}

func TestSessionSearch_MissingMailbox(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	cfg := testConfig(t, addr)
	cfg.Mailbox = "NoSuchFolder"
	s := NewSession(nil)
	if err := s.Connect(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	_, err := s.Search(context.Background(), mustInstance(t, "All"))
	var se *SearchError
	if !errors.As(err, &se) || se.Mailbox != "NoSuchFolder" {
		t.Fatalf("expected SearchError, got %v", err)
	}
}

func TestSessionSearch_InvalidArgument(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	s := newConnectedSession(t, addr)

	_, err := s.Search(context.Background(), mustInstance(t, "Since", predicate.Unset))
	if !errors.Is(err, predicate.ErrDateUnset) {
		t.Fatalf("expected ErrDateUnset, got %v", err)
	}
	if s.State() != StateAuthenticated {
		t.Errorf("argument error must not drop the session, state %s", s.State())
	}
}

func TestSessionFetch(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	appendTestMail(t, addr, "INBOX", testMailNested)
	s := newConnectedSession(t, addr)

	result, err := s.Search(context.Background(), mustInstance(t, "All"))
	if err != nil {
		t.Fatal(err)
	}
	uid := result.UIDs()[0]

	msg, err := s.Fetch(context.Background(), uid)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if msg.UID != uid {
		t.Errorf("UID = %d, want %d", msg.UID, uid)
	}
	if msg.Subject != "Nested Multipart" {
		t.Errorf("unexpected Subject: %q", msg.Subject)
	}
	if len(msg.Attachments) != 1 || len(msg.AlternativeViews) != 1 {
		t.Errorf("unexpected parts: %d attachments, %d views", len(msg.Attachments), len(msg.AlternativeViews))
	}

	unseen, err := s.Search(context.Background(), mustInstance(t, "Unseen"))
	if err != nil {
		t.Fatal(err)
	}
	if unseen.Len() != 1 {
		t.Error("Fetch must not mark the message as seen")
	}
}

func TestSessionFetch_Missing(t *testing.T) {
	addr := newTestIMAPServer(t, nil)
	s := newConnectedSession(t, addr)

	_, err := s.Fetch(context.Background(), 999)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.UID != 999 {
		t.Fatalf("expected FetchError for UID 999, got %v", err)
	}
}
