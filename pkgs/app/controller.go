// Package app coordinates a mail session, its last search result and
// download jobs on behalf of a front end.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emx-mail/export/pkgs/email"
	"github.com/emx-mail/export/pkgs/export"
	"github.com/emx-mail/export/pkgs/predicate"
)

var (
	// ErrBusy is returned while another operation is running.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNotConnected is returned when an operation needs a session.
	ErrNotConnected = errors.New("not connected")
	// ErrNoResults is returned by Download when there is nothing to export.
	ErrNoResults = errors.New("no search results to download")
)

// Mailer is the session surface the controller drives. *email.Session
// implements it.
type Mailer interface {
	Connect(ctx context.Context, config email.IMAPConfig) error
	Search(ctx context.Context, inst *predicate.Instance) (*email.SearchResult, error)
	Fetch(ctx context.Context, uid uint32) (*email.Message, error)
	Disconnect() error
	State() email.State
}

// Summary is the user-facing outcome of an operation.
type Summary struct {
	Title   string
	Message string
}

func (s Summary) String() string {
	if s.Message == "" {
		return s.Title
	}
	return s.Title + ": " + s.Message
}

// DownloadOptions configures one download.
type DownloadOptions struct {
	// OutputDir holds the job root. Empty means the working directory.
	OutputDir string
	Formatter export.Formatter
	// IncludeHost adds the server host to the job root name.
	IncludeHost bool
	Progress    func(done, total int)
}

// Controller serializes Connect, Search, Download and Disconnect. While
// one runs, the others fail fast with ErrBusy.
type Controller struct {
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	account email.IMAPConfig
	result  *email.SearchResult
}

// New returns a controller driving m.
func New(m Mailer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		mailer: m,
		logger: logger.With("component", "app"),
		now:    time.Now,
	}
}

func (c *Controller) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Controller) release() { c.busy.Store(false) }

// Busy reports whether an operation is running.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Connected reports whether the session is authenticated.
func (c *Controller) Connected() bool {
	return c.mailer.State() == email.StateAuthenticated
}

// Result returns the last successful search result, or nil.
func (c *Controller) Result() *email.SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Connect opens the session. Any previous result is discarded.
func (c *Controller) Connect(ctx context.Context, config email.IMAPConfig) (Summary, error) {
	if err := c.acquire(); err != nil {
		return Summary{}, err
	}
	defer c.release()

	if err := c.mailer.Connect(ctx, config); err != nil {
		switch {
		case errors.Is(err, email.ErrTimeout):
			timeout := config.Timeout
			if timeout <= 0 {
				timeout = email.ConnectTimeout
			}
			return Summary{
				Title:   "Authentication Timeout",
				Message: fmt.Sprintf("%s passed but still no response from %s", timeout, config.Host),
			}, err
		case errors.Is(err, email.ErrAuth):
			return Summary{Title: "Authentication Failed", Message: errorCause(err)}, err
		}
		return Summary{Title: "Connection Failed", Message: errorCause(err)}, err
	}

	c.mu.Lock()
	c.account = config
	c.result = nil
	c.mu.Unlock()
	return Summary{Title: "Connected", Message: fmt.Sprintf("Logged in as %s", config.Username)}, nil
}

// Search runs inst and, on success, replaces the last result. A failed
// search leaves the previous result in place.
func (c *Controller) Search(ctx context.Context, inst *predicate.Instance) (*email.SearchResult, Summary, error) {
	if err := c.acquire(); err != nil {
		return nil, Summary{}, err
	}
	defer c.release()

	if !c.Connected() {
		return nil, Summary{Title: "Search Failed", Message: ErrNotConnected.Error()}, ErrNotConnected
	}
	result, err := c.mailer.Search(ctx, inst)
	if err != nil {
		c.logger.Warn("search failed", "predicate", inst.String(), "error", err)
		return nil, Summary{Title: "Search Failed", Message: err.Error()}, err
	}

	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	return result, Summary{
		Title:   "Search Complete",
		Message: fmt.Sprintf("Found %d messages", result.Len()),
	}, nil
}

// Download exports every message of the last result.
func (c *Controller) Download(ctx context.Context, opts DownloadOptions) (*export.Report, Summary, error) {
	if err := c.acquire(); err != nil {
		return nil, Summary{}, err
	}
	defer c.release()

	c.mu.Lock()
	result, account := c.result, c.account
	c.mu.Unlock()

	if result == nil || result.Len() == 0 {
		return nil, Summary{Title: "Downloading Failed", Message: ErrNoResults.Error()}, ErrNoResults
	}
	if !c.Connected() {
		return nil, Summary{Title: "Downloading Failed", Message: ErrNotConnected.Error()}, ErrNotConnected
	}

	host := ""
	if opts.IncludeHost {
		host = account.Host
	}
	root := filepath.Join(opts.OutputDir, export.JobDirName(c.now(), account.Username, host))

	report, err := export.Run(ctx, c.mailer, result.UIDs(), export.Options{
		Root:      root,
		Formatter: opts.Formatter,
		Progress:  opts.Progress,
		Logger:    c.logger,
	})
	counts := fmt.Sprintf("(%d/%d)", report.Succeeded, report.Total)
	if err != nil {
		return report, Summary{Title: "Downloading Failed " + counts, Message: err.Error()}, err
	}

	title := "Downloading Complete " + counts
	if report.Canceled {
		title = "Downloading Canceled " + counts
	}
	return report, Summary{
		Title:   title,
		Message: fmt.Sprintf("Emails saved to %s\nFailed count: %d", report.Path, report.Failed),
	}, nil
}

// Disconnect closes the session and forgets the last result.
func (c *Controller) Disconnect() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.result = nil
	c.mu.Unlock()
	return c.mailer.Disconnect()
}

// errorCause returns the innermost error message.
func errorCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
