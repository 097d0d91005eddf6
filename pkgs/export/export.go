// Package export writes fetched messages to disk, one job per search result.
package export

import (
	"context"
	"fmt"

	"github.com/emx-mail/export/pkgs/email"
)

// Fetcher retrieves one message by UID. *email.Session implements it.
type Fetcher interface {
	Fetch(ctx context.Context, uid uint32) (*email.Message, error)
}

// Formatter writes one message below the job root and returns the path of
// what it wrote.
type Formatter interface {
	Write(root string, index int, msg *email.Message) (string, error)
}

// Finisher is implemented by formatters that hold state across a job.
// Finish is called once after the last item, even when the job is canceled.
type Finisher interface {
	Finish() error
}

// Report summarizes a job.
type Report struct {
	JobID     string
	Path      string
	Total     int
	Succeeded int
	Failed    int
	Canceled  bool
	Outcomes  []Outcome
}

// Processed returns the number of attempted items.
func (r *Report) Processed() int {
	return r.Succeeded + r.Failed
}

// Outcome is the result of one attempted item.
type Outcome struct {
	Index int
	UID   uint32
	Path  string
	Err   error
}

// WriteError reports a failed filesystem write for one item.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// AbortError reports a failure that stopped the whole job.
type AbortError struct {
	Path string
	Err  error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("export aborted: %s: %v", e.Path, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }
