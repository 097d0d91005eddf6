package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxRootAttempts bounds the suffixes tried when the job root exists.
const maxRootAttempts = 1000

// Options configures one job.
type Options struct {
	// Root is the job directory. A job never reuses an existing
	// directory: when Root exists, "_2", "_3", ... is appended.
	Root      string
	Formatter Formatter
	// Progress, if set, is called after each successful item.
	Progress func(done, total int)
	Logger   *slog.Logger
}

// Run fetches and writes each UID in order. A failed item is logged and
// counted and the job continues. Cancellation of ctx is checked before
// each item, so an item in flight always completes.
//
// The returned error is non-nil only when the job could not run at all
// (*AbortError); the report is returned in every case.
func Run(ctx context.Context, fetcher Fetcher, uids []uint32, opts Options) (*Report, error) {
	report := &Report{
		JobID: uuid.NewString(),
		Path:  opts.Root,
		Total: len(uids),
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "export", "job_id", report.JobID)

	root, err := claimRoot(opts.Root)
	if err != nil {
		logger.Error("cannot create job root", "path", opts.Root, "error", err)
		return report, &AbortError{Path: opts.Root, Err: err}
	}
	report.Path = root
	logger.Info("export started", "path", root, "total", report.Total)

	for index, uid := range uids {
		if ctx.Err() != nil {
			report.Canceled = true
			logger.Info("export canceled", "processed", report.Processed())
			break
		}

		outcome := Outcome{Index: index, UID: uid}
		outcome.Path, outcome.Err = exportOne(ctx, fetcher, opts.Formatter, root, index, uid)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Err != nil {
			report.Failed++
			logger.Warn("message export failed", "index", index, "uid", uid, "error", outcome.Err)
			continue
		}
		report.Succeeded++
		if opts.Progress != nil {
			opts.Progress(report.Succeeded, report.Total)
		}
	}

	if f, ok := opts.Formatter.(Finisher); ok {
		if err := f.Finish(); err != nil {
			logger.Warn("finishing export output failed", "error", err)
		}
	}

	logger.Info("export finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"total", report.Total,
		"canceled", report.Canceled)
	return report, nil
}

// claimRoot creates a new directory at root, or at the first free
// root_N, and returns its path.
func claimRoot(root string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return "", err
	}
	path := root
	for n := 2; n <= maxRootAttempts+1; n++ {
		err := os.Mkdir(path, 0755)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		path = fmt.Sprintf("%s_%d", root, n)
	}
	return "", fmt.Errorf("no free job directory after %d attempts", maxRootAttempts)
}

func exportOne(ctx context.Context, fetcher Fetcher, formatter Formatter, root string, index int, uid uint32) (string, error) {
	msg, err := fetcher.Fetch(ctx, uid)
	if err != nil {
		return "", err
	}
	return formatter.Write(root, index, msg)
}
