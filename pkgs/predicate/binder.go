package predicate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the input format of date editors.
const DateLayout = "2006-01-02"

type unsetDate struct{}

func (unsetDate) String() string { return "unset" }

// Unset is collected from a date editor left blank. Whether a blank date is
// acceptable is decided when the predicate is built.
var Unset any = unsetDate{}

// Editor is an input slot for one parameter. The concrete editors are
// *IntegerEditor, *TextEditor and *DateEditor.
type Editor interface {
	Spec() ParameterSpec
	// Text returns the current raw input.
	Text() string
	// Set replaces the raw input. It does not validate.
	Set(input string)
	// Validate checks input without storing it.
	Validate(input string) error
	// Value coerces the current input to the parameter's Go type.
	Value() (any, error)
}

// IntegerEditor edits KindInt64 and KindUint32 parameters.
type IntegerEditor struct {
	spec  ParameterSpec
	input string
}

func (e *IntegerEditor) Spec() ParameterSpec { return e.spec }
func (e *IntegerEditor) Text() string        { return e.input }
func (e *IntegerEditor) Set(input string)    { e.input = input }

// Bounds returns the inclusive range of the editor's kind.
func (e *IntegerEditor) Bounds() (min, max string) {
	if e.spec.Kind == KindUint32 {
		return "0", strconv.FormatUint(math.MaxUint32, 10)
	}
	return strconv.FormatInt(math.MinInt64, 10), strconv.FormatInt(math.MaxInt64, 10)
}

func (e *IntegerEditor) Validate(input string) error {
	_, err := e.parse(strings.TrimSpace(input), input)
	return err
}

func (e *IntegerEditor) Value() (any, error) {
	return e.parse(strings.TrimSpace(e.input), e.input)
}

// parse converts the trimmed s; raw is reported on failure.
func (e *IntegerEditor) parse(s, raw string) (any, error) {
	if e.spec.Kind == KindUint32 {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, e.parseError(raw, err)
		}
		return uint32(n), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, e.parseError(raw, err)
	}
	return n, nil
}

func (e *IntegerEditor) parseError(raw string, err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		err = ne.Err
	}
	return &ParseError{Param: e.spec.Name, Kind: e.spec.Kind, Input: raw, Err: err}
}

// TextEditor edits KindText parameters. Any input is accepted verbatim.
type TextEditor struct {
	spec  ParameterSpec
	input string
}

func (e *TextEditor) Spec() ParameterSpec   { return e.spec }
func (e *TextEditor) Text() string          { return e.input }
func (e *TextEditor) Set(input string)      { e.input = input }
func (e *TextEditor) Validate(string) error { return nil }
func (e *TextEditor) Value() (any, error)   { return e.input, nil }

// DateEditor edits KindDate parameters in DateLayout. Blank means unset.
type DateEditor struct {
	spec  ParameterSpec
	input string
}

func (e *DateEditor) Spec() ParameterSpec { return e.spec }
func (e *DateEditor) Text() string        { return e.input }
func (e *DateEditor) Set(input string)    { e.input = input }

// SetDate selects t, or clears the editor when t is zero.
func (e *DateEditor) SetDate(t time.Time) {
	if t.IsZero() {
		e.input = ""
		return
	}
	e.input = t.Format(DateLayout)
}

func (e *DateEditor) Validate(input string) error {
	_, err := e.parse(input)
	return err
}

func (e *DateEditor) Value() (any, error) {
	return e.parse(e.input)
}

func (e *DateEditor) parse(input string) (any, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Unset, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, &ParseError{Param: e.spec.Name, Kind: e.spec.Kind, Input: input, Err: err}
	}
	return t, nil
}

// NewEditor returns the editor variant for spec.Kind with its default
// value: 1 for integers, empty text, unset date.
func NewEditor(spec ParameterSpec) (Editor, error) {
	switch spec.Kind {
	case KindInt64, KindUint32:
		return &IntegerEditor{spec: spec, input: "1"}, nil
	case KindText:
		return &TextEditor{spec: spec}, nil
	case KindDate:
		return &DateEditor{spec: spec}, nil
	}
	return nil, fmt.Errorf("parameter %s: no editor for kind %s", spec.Name, spec.Kind)
}

// Binding is the set of editors for one descriptor.
type Binding struct {
	desc    Descriptor
	Editors []Editor
}

// Bind creates one editor per parameter of d, in order.
func Bind(d Descriptor) (*Binding, error) {
	b := &Binding{desc: d.clone(), Editors: make([]Editor, 0, len(d.Params))}
	for _, spec := range d.Params {
		ed, err := NewEditor(spec)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", d.Name, err)
		}
		b.Editors = append(b.Editors, ed)
	}
	return b, nil
}

// Descriptor returns the bound descriptor.
func (b *Binding) Descriptor() Descriptor { return b.desc.clone() }

// Equal reports whether both bindings wrap the same descriptor. Editor
// values are not compared.
func (b *Binding) Equal(other *Binding) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.desc.Equal(other.desc)
}

// Values collects the editors' current values.
func (b *Binding) Values() ([]any, error) {
	return Collect(b.Editors, b.desc.Params)
}

// Instance collects the current values and binds them to the descriptor.
func (b *Binding) Instance() (*Instance, error) {
	args, err := b.Values()
	if err != nil {
		return nil, err
	}
	return NewInstance(b.desc, args)
}

// Collect reads every editor's value in order. It fails on the first value
// that cannot be coerced, or when editors and specs disagree.
func Collect(editors []Editor, specs []ParameterSpec) ([]any, error) {
	if len(editors) != len(specs) {
		return nil, fmt.Errorf("have %d editors for %d parameters", len(editors), len(specs))
	}
	out := make([]any, len(editors))
	for i, ed := range editors {
		if ed.Spec().Kind != specs[i].Kind {
			return nil, fmt.Errorf("parameter %s: editor kind %s, want %s", specs[i].Name, ed.Spec().Kind, specs[i].Kind)
		}
		v, err := ed.Value()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
