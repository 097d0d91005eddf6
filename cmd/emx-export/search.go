package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"github.com/emx-mail/export/pkgs/predicate"
)

type searchFlags struct {
	predicate string
	args      []string
	not       bool
}

func parseSearchFlags(name string, args []string) (*flag.FlagSet, searchFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var f searchFlags
	fs.StringVar(&f.predicate, "predicate", "", "Predicate name")
	fs.StringArrayVar(&f.args, "arg", nil, "Predicate argument (repeat in parameter order)")
	fs.BoolVar(&f.not, "not", false, "Negate the predicate")
	addConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		fatal("%s: %v", name, err)
	}
	return fs, f
}

// connectAndSearch builds the predicate before connecting so argument
// errors surface without touching the network.
func (a *app) connectAndSearch(ctx context.Context, name string, args []string) (*runtime, error) {
	fs, f := parseSearchFlags(name, args)
	inst, err := buildInstance(f.predicate, f.args, f.not)
	if err != nil {
		return nil, err
	}
	cfg, err := a.loadConfig(fs)
	if err != nil {
		return nil, err
	}

	r := newRuntime(cfg)
	if summary, err := r.controller.Connect(ctx, cfg.SessionConfig()); err != nil {
		r.close()
		return nil, fmt.Errorf("%s", summary)
	}
	if err := search(ctx, r, inst); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

func search(ctx context.Context, r *runtime, inst *predicate.Instance) error {
	result, summary, err := r.controller.Search(ctx, inst)
	if err != nil {
		return fmt.Errorf("%s", summary)
	}
	fmt.Printf("%s: %d messages in %s match %s\n", summary.Title, result.Len(), result.Mailbox, result.Predicate)
	return nil
}

func (a *app) handleSearch(args []string) error {
	r, err := a.connectAndSearch(context.Background(), "search", args)
	if err != nil {
		return err
	}
	r.close()
	return nil
}

func (a *app) handleDownload(args []string) error {
	r, err := a.connectAndSearch(context.Background(), "download", args)
	if err != nil {
		return err
	}
	defer r.close()

	if r.controller.Result().Len() == 0 {
		return nil
	}
	return download(context.Background(), r)
}

// interruptible returns a context canceled by the first SIGINT until stop
// is called. After stop, SIGINT gets its default behavior back.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// download runs one export job. SIGINT cancels only this job, between
// items.
func download(parent context.Context, r *runtime) error {
	ctx, stop := interruptible(parent)
	defer stop()

	report, summary, err := r.controller.Download(ctx, r.downloadOptions())
	if report != nil && report.Succeeded > 0 {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("%s", summary)
	}
	fmt.Println(summary.Title)
	fmt.Println(summary.Message)
	return nil
}
