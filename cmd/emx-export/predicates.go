package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/emx-mail/export/pkgs/predicate"
)

func handlePredicates(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, d := range predicate.ListPredicates() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, formatParams(d.Params), d.Summary)
	}
	tw.Flush()
}

func formatParams(params []predicate.ParameterSpec) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + p.Kind.String()
	}
	return strings.Join(parts, ", ")
}

// buildInstance looks up name, feeds args to its editors in order and
// returns the bound predicate, negated when not is set. Criteria are built
// once here so every argument error is reported before connecting.
func buildInstance(name string, args []string, not bool) (*predicate.Instance, error) {
	if name == "" {
		return nil, fmt.Errorf("--predicate is required")
	}
	d, ok := predicate.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q (see 'emx-export predicates')", name)
	}
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("%s takes %d argument(s) (%s), got %d", d.Name, len(d.Params), formatParams(d.Params), len(args))
	}

	b, err := predicate.Bind(d)
	if err != nil {
		return nil, err
	}
	for i, ed := range b.Editors {
		ed.Set(args[i])
	}
	inst, err := b.Instance()
	if err != nil {
		return nil, err
	}
	if not {
		if inst, err = predicate.Negate(inst); err != nil {
			return nil, err
		}
	}
	if _, err := inst.Criteria(); err != nil {
		return nil, err
	}
	return inst, nil
}
