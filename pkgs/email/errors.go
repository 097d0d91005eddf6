package email

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout matches a ConnectError caused by the handshake timeout.
	ErrTimeout = errors.New("connection timed out")
	// ErrAuth matches a ConnectError caused by rejected credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrNotConnected is returned by operations on a session that is not
	// authenticated.
	ErrNotConnected = errors.New("not connected")
)

// ConnectError reports a failed Connect.
type ConnectError struct {
	Addr    string
	Timeout bool
	Auth    bool
	Err     error
}

func (e *ConnectError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("connecting to %s: no response within timeout", e.Addr)
	case e.Auth:
		return fmt.Sprintf("IMAP authentication failed: %v", e.Err)
	default:
		return fmt.Sprintf("failed to connect to IMAP server %s: %v", e.Addr, e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrTimeout and ErrAuth.
func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Timeout
	case ErrAuth:
		return e.Auth
	}
	return false
}

// SearchError reports a failed search.
type SearchError struct {
	Mailbox string
	Err     error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("failed to search %s: %v", e.Mailbox, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// FetchError reports a failed fetch of one message.
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch message UID %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
