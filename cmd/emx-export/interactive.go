package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	flag "github.com/spf13/pflag"

	"github.com/emx-mail/export/pkgs/predicate"
)

func (a *app) handleInteractive(args []string) error {
	fs := flag.NewFlagSet("interactive", flag.ExitOnError)
	addConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		fatal("interactive: %v", err)
	}
	cfg, err := a.loadConfig(fs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	r := newRuntime(cfg)
	defer r.close()
	summary, err := r.controller.Connect(ctx, cfg.SessionConfig())
	fmt.Println(summary)
	if err != nil {
		return err
	}

	for {
		inst, err := pickPredicate()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := search(ctx, r, inst); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else if r.controller.Result().Len() > 0 {
			var confirm bool
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Download %d messages (%s mode)?", r.controller.Result().Len(), cfg.Export.Mode)).
				Value(&confirm).
				Run()
			if err != nil && !errors.Is(err, huh.ErrUserAborted) {
				return err
			}
			if confirm {
				if err := download(ctx, r); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}
		}

		again := true
		if err := huh.NewConfirm().Title("Run another search?").Value(&again).Run(); err != nil || !again {
			return nil
		}
	}
}

// pickPredicate asks for a predicate and then one input per parameter,
// validated by the parameter's editor.
func pickPredicate() (*predicate.Instance, error) {
	catalog := predicate.ListPredicates()
	options := make([]huh.Option[int], len(catalog))
	for i, d := range catalog {
		options[i] = huh.NewOption(fmt.Sprintf("%-12s %s", d.Name, d.Summary), i)
	}

	var choice int
	var negate bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Search predicate").
				Options(options...).
				Value(&choice),
			huh.NewConfirm().
				Title("Negate?").
				Value(&negate),
		),
	).Run()
	if err != nil {
		return nil, err
	}

	b, err := predicate.Bind(catalog[choice])
	if err != nil {
		return nil, err
	}
	if len(b.Editors) > 0 {
		fields := make([]huh.Field, len(b.Editors))
		values := make([]string, len(b.Editors))
		for i, ed := range b.Editors {
			values[i] = ed.Text()
			fields[i] = huh.NewInput().
				Title(ed.Spec().Name).
				Description(editorHint(ed)).
				Value(&values[i]).
				Validate(ed.Validate)
		}
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return nil, err
		}
		for i, ed := range b.Editors {
			ed.Set(values[i])
		}
	}

	inst, err := b.Instance()
	if err != nil {
		return nil, err
	}
	if negate {
		return predicate.Negate(inst)
	}
	return inst, nil
}

func editorHint(ed predicate.Editor) string {
	switch e := ed.(type) {
	case *predicate.IntegerEditor:
		lo, hi := e.Bounds()
		return fmt.Sprintf("integer %s..%s", lo, hi)
	case *predicate.DateEditor:
		return "date as " + predicate.DateLayout + ", empty for unset"
	}
	return "text"
}
