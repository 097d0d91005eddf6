package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-sasl"

	"github.com/emx-mail/export/pkgs/predicate"
)

// ConnectTimeout bounds the dial and authentication handshake.
const ConnectTimeout = 6 * time.Second

// DefaultMailbox is searched when IMAPConfig.Mailbox is empty.
const DefaultMailbox = "INBOX"

// AuthMethod selects how credentials are presented.
type AuthMethod string

const (
	AuthLogin AuthMethod = "login" // LOGIN command
	AuthPlain AuthMethod = "plain" // AUTHENTICATE PLAIN
)

// IMAPConfig holds IMAP configuration
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	StartTLS bool
	Auth     AuthMethod
	Mailbox  string

	// Timeout overrides ConnectTimeout when positive.
	Timeout time.Duration
	// TLSConfig is used for SSL and StartTLS. ServerName defaults to Host.
	TLSConfig *tls.Config
}

func (c IMAPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c IMAPConfig) mailbox() string {
	if c.Mailbox == "" {
		return DefaultMailbox
	}
	return c.Mailbox
}

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session owns one authenticated IMAP connection and all network I/O on
// it. Callers must not run Search, Fetch and Disconnect concurrently.
type Session struct {
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	config   IMAPConfig
	client   *imapclient.Client
	selected bool
}

// NewSession returns a disconnected session.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{logger: logger.With("component", "imap")}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.logger.Debug("session state", "from", prev.String(), "to", state.String())
	}
}

// Connect dials the server and authenticates. The handshake runs in the
// background; if it does not finish within the timeout, Connect reports a
// timeout and the session returns to StateDisconnected. An abandoned
// handshake is closed when it eventually completes.
func (s *Session) Connect(ctx context.Context, config IMAPConfig) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateAuthenticated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session is already %s", state)
	}
	s.mu.Unlock()
	s.setState(StateConnecting)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		client *imapclient.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := dial(config, timeout)
		done <- result{client: c, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.fail(r.err)
			return r.err
		}
		s.mu.Lock()
		s.client = r.client
		s.config = config
		s.selected = false
		s.mu.Unlock()
		s.setState(StateAuthenticated)
		s.logger.Info("connected", "addr", config.addr(), "user", config.Username)
		return nil

	case <-ctx.Done():
		go func() {
			if r := <-done; r.client != nil {
				r.client.Close()
			}
		}()
		err := &ConnectError{Addr: config.addr(), Err: ctx.Err()}
		if ctx.Err() == context.DeadlineExceeded {
			err.Timeout = true
		}
		s.fail(err)
		return err
	}
}

// fail records a failed connection attempt and reverts to disconnected.
func (s *Session) fail(err error) {
	s.setState(StateFailed)
	s.logger.Warn("connect failed", "error", err)
	s.setState(StateDisconnected)
}

// dial opens the transport and authenticates.
func dial(config IMAPConfig, timeout time.Duration) (*imapclient.Client, error) {
	addr := config.addr()
	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.ServerName = config.Host
	}
	options := &imapclient.Options{
		TLSConfig:   tlsConfig,
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}

	dialer := &net.Dialer{Timeout: timeout}
	var client *imapclient.Client
	if config.SSL {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		client = imapclient.New(conn, options)
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		if config.StartTLS {
			client, err = imapclient.NewStartTLS(conn, options)
			if err != nil {
				conn.Close()
				return nil, &ConnectError{Addr: addr, Err: err}
			}
		} else {
			client = imapclient.New(conn, options)
		}
	}

	var err error
	switch config.Auth {
	case AuthPlain:
		err = client.Authenticate(sasl.NewPlainClient("", config.Username, config.Password))
	default:
		err = client.Login(config.Username, config.Password).Wait()
	}
	if err != nil {
		client.Close()
		return nil, &ConnectError{Addr: addr, Auth: true, Err: err}
	}
	return client, nil
}

// Disconnect logs out and closes the connection. It is a no-op when the
// session is not connected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.selected = false
	s.mu.Unlock()

	if client == nil {
		s.setState(StateDisconnected)
		return nil
	}
	_ = client.Logout().Wait()
	err := client.Close()
	s.setState(StateDisconnected)
	s.logger.Info("disconnected")
	return err
}

// authenticated returns the live client and its config.
func (s *Session) authenticated() (*imapclient.Client, IMAPConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.client == nil {
		return nil, IMAPConfig{}, ErrNotConnected
	}
	return s.client, s.config, nil
}

// ensureSelected selects the configured mailbox once per connection.
func (s *Session) ensureSelected(client *imapclient.Client, mailbox string) error {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected {
		return nil
	}
	if _, err := client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("failed to select folder %s: %w", mailbox, err)
	}
	s.mu.Lock()
	s.selected = true
	s.mu.Unlock()
	return nil
}

// checkAlive drops the session when the connection has died under an
// operation.
func (s *Session) checkAlive(client *imapclient.Client) {
	if client.State() != imap.ConnStateLogout {
		return
	}
	s.mu.Lock()
	if s.client == client {
		s.client = nil
		s.selected = false
	}
	s.mu.Unlock()
	s.setState(StateDisconnected)
	s.logger.Warn("connection lost")
}

// Search runs UID SEARCH for the predicate against the configured mailbox.
// Argument errors from the predicate are returned as is, before any I/O.
func (s *Session) Search(ctx context.Context, inst *predicate.Instance) (*SearchResult, error) {
	client, config, err := s.authenticated()
	if err != nil {
		return nil, err
	}
	criteria, err := inst.Criteria()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mailbox := config.mailbox()
	if err := s.ensureSelected(client, mailbox); err != nil {
		s.checkAlive(client)
		return nil, &SearchError{Mailbox: mailbox, Err: err}
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		s.checkAlive(client)
		return nil, &SearchError{Mailbox: mailbox, Err: err}
	}

	found := data.AllUIDs()
	uids := make([]uint32, len(found))
	for i, uid := range found {
		uids[i] = uint32(uid)
	}
	s.logger.Info("search complete", "mailbox", mailbox, "predicate", inst.String(), "matches", len(uids))
	return NewSearchResult(mailbox, inst.String(), uids), nil
}

// Fetch retrieves one message by UID, including body, attachments and
// alternative views. The message is not marked as seen.
func (s *Session) Fetch(ctx context.Context, uid uint32) (*Message, error) {
	client, config, err := s.authenticated()
	if err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}
	if err := s.ensureSelected(client, config.mailbox()); err != nil {
		s.checkAlive(client)
		return nil, &FetchError{UID: uid, Err: err}
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true, // don't mark as read
	}
	fetchOptions := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	msgs, err := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOptions).Collect()
	if err != nil {
		s.checkAlive(client)
		return nil, &FetchError{UID: uid, Err: err}
	}
	if len(msgs) == 0 {
		return nil, &FetchError{UID: uid, Err: fmt.Errorf("message not found in %s", config.mailbox())}
	}

	raw := msgs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, &FetchError{UID: uid, Err: fmt.Errorf("server returned no body")}
	}
	msg, err := ParseMessage(raw)
	if err != nil {
		return nil, &FetchError{UID: uid, Err: err}
	}
	msg.UID = uid
	return msg, nil
}
