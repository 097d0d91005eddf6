package predicate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// flagRecent is gone from IMAP4rev2 but IMAP4rev1 servers still honor it.
const flagRecent = imap.Flag(`\Recent`)

// Instance is a descriptor bound to concrete arguments. An Instance is built
// per search and never reused.
type Instance struct {
	Descriptor Descriptor
	Args       []any
}

// NewInstance binds args to d. Argument count and Go types must match the
// descriptor's parameters: int64, uint32, string, time.Time or Unset,
// *Instance, []*Instance and []uint32 respectively.
func NewInstance(d Descriptor, args []any) (*Instance, error) {
	if len(args) != len(d.Params) {
		return nil, &ArgumentError{
			Predicate: d.Name,
			Err:       fmt.Errorf("expected %d arguments, got %d", len(d.Params), len(args)),
		}
	}
	for i, spec := range d.Params {
		if !argMatches(spec.Kind, args[i]) {
			return nil, &ArgumentError{
				Predicate: d.Name,
				Param:     spec.Name,
				Err:       fmt.Errorf("argument of type %T does not fit %s", args[i], spec.Kind),
			}
		}
	}
	return &Instance{Descriptor: d.clone(), Args: append([]any(nil), args...)}, nil
}

func argMatches(kind Kind, v any) bool {
	switch kind {
	case KindInt64:
		_, ok := v.(int64)
		return ok
	case KindUint32:
		_, ok := v.(uint32)
		return ok
	case KindText:
		_, ok := v.(string)
		return ok
	case KindDate:
		switch v.(type) {
		case time.Time, unsetDate:
			return true
		}
		return false
	case KindPredicate:
		inst, ok := v.(*Instance)
		return ok && inst != nil
	case KindPredicateList:
		_, ok := v.([]*Instance)
		return ok
	case KindUint32List:
		_, ok := v.([]uint32)
		return ok
	}
	return false
}

// Criteria builds fresh search criteria for the instance.
func (in *Instance) Criteria() (*imap.SearchCriteria, error) {
	if in.Descriptor.build == nil {
		return nil, &ArgumentError{Predicate: in.Descriptor.Name, Err: fmt.Errorf("unknown predicate")}
	}
	c, err := in.Descriptor.build(in.Args)
	if err != nil {
		return nil, &ArgumentError{Predicate: in.Descriptor.Name, Err: err}
	}
	return c, nil
}

// Negate wraps the instance in the composite NOT predicate.
func Negate(in *Instance) (*Instance, error) {
	for _, d := range registry {
		if d.Name == "Not" {
			return NewInstance(d, []any{in})
		}
	}
	return nil, fmt.Errorf("predicate: NOT is not registered")
}

// String renders the instance as Name(arg, ...) for logs and summaries.
func (in *Instance) String() string {
	parts := make([]string, len(in.Args))
	for i, a := range in.Args {
		switch v := a.(type) {
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		case time.Time:
			parts[i] = v.Format(DateLayout)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return in.Descriptor.Name + "(" + strings.Join(parts, ", ") + ")"
}

// --- builders ---

func all([]any) (*imap.SearchCriteria, error) {
	return &imap.SearchCriteria{}, nil
}

func withFlag(f imap.Flag) builder {
	return func([]any) (*imap.SearchCriteria, error) {
		return &imap.SearchCriteria{Flag: []imap.Flag{f}}, nil
	}
}

func withoutFlag(f imap.Flag) builder {
	return func([]any) (*imap.SearchCriteria, error) {
		return &imap.SearchCriteria{NotFlag: []imap.Flag{f}}, nil
	}
}

func recentUnseen([]any) (*imap.SearchCriteria, error) {
	return &imap.SearchCriteria{
		Flag:    []imap.Flag{flagRecent},
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil
}

func headerContains(key string) builder {
	return func(args []any) (*imap.SearchCriteria, error) {
		return &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: key, Value: args[0].(string)}},
		}, nil
	}
}

func header(args []any) (*imap.SearchCriteria, error) {
	name := strings.TrimSpace(args[0].(string))
	if name == "" {
		return nil, fmt.Errorf("header name is required")
	}
	return &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: name, Value: args[1].(string)}},
	}, nil
}

func body(args []any) (*imap.SearchCriteria, error) {
	return &imap.SearchCriteria{Body: []string{args[0].(string)}}, nil
}

func text(args []any) (*imap.SearchCriteria, error) {
	return &imap.SearchCriteria{Text: []string{args[0].(string)}}, nil
}

func keyword(args []any) (*imap.SearchCriteria, error) {
	kw, err := keywordArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Flag: []imap.Flag{kw}}, nil
}

func unkeyword(args []any) (*imap.SearchCriteria, error) {
	kw, err := keywordArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{NotFlag: []imap.Flag{kw}}, nil
}

func keywordArg(v any) (imap.Flag, error) {
	kw := strings.TrimSpace(v.(string))
	if kw == "" || strings.ContainsAny(kw, " ()") {
		return "", fmt.Errorf("invalid keyword %q", kw)
	}
	return imap.Flag(kw), nil
}

func larger(args []any) (*imap.SearchCriteria, error) {
	n := args[0].(int64)
	if n < 0 {
		return nil, fmt.Errorf("size must not be negative")
	}
	return &imap.SearchCriteria{Larger: n}, nil
}

func smaller(args []any) (*imap.SearchCriteria, error) {
	n := args[0].(int64)
	if n <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}
	return &imap.SearchCriteria{Smaller: n}, nil
}

func before(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Before: d}, nil
}

func since(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Since: d}, nil
}

func on(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Since: d, Before: d.AddDate(0, 0, 1)}, nil
}

func sentBefore(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{SentBefore: d}, nil
}

func sentSince(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{SentSince: d}, nil
}

func sentOn(args []any) (*imap.SearchCriteria, error) {
	d, err := dateArg(args[0])
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{SentSince: d, SentBefore: d.AddDate(0, 0, 1)}, nil
}

// dateArg drops the time of day; IMAP compares dates only.
func dateArg(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, ErrDateUnset
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func uid(args []any) (*imap.SearchCriteria, error) {
	n := args[0].(uint32)
	if n == 0 {
		return nil, fmt.Errorf("uid must be positive")
	}
	return &imap.SearchCriteria{UID: []imap.UIDSet{imap.UIDSetNum(imap.UID(n))}}, nil
}

func greaterThan(args []any) (*imap.SearchCriteria, error) {
	n := args[0].(uint32)
	if n == math.MaxUint32 {
		return nil, fmt.Errorf("no uid is greater than %d", n)
	}
	var set imap.UIDSet
	set.AddRange(imap.UID(n+1), 0) // n+1:*
	return &imap.SearchCriteria{UID: []imap.UIDSet{set}}, nil
}

func lessThan(args []any) (*imap.SearchCriteria, error) {
	n := args[0].(uint32)
	if n <= 1 {
		return nil, fmt.Errorf("no uid is less than %d", n)
	}
	var set imap.UIDSet
	set.AddRange(1, imap.UID(n-1))
	return &imap.SearchCriteria{UID: []imap.UIDSet{set}}, nil
}

func uids(args []any) (*imap.SearchCriteria, error) {
	list := args[0].([]uint32)
	if len(list) == 0 {
		return nil, fmt.Errorf("at least one uid is required")
	}
	set := make([]imap.UID, len(list))
	for i, n := range list {
		set[i] = imap.UID(n)
	}
	return &imap.SearchCriteria{UID: []imap.UIDSet{imap.UIDSetNum(set...)}}, nil
}

func not(args []any) (*imap.SearchCriteria, error) {
	inner, err := args[0].(*Instance).Criteria()
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Not: []imap.SearchCriteria{*inner}}, nil
}

func or(args []any) (*imap.SearchCriteria, error) {
	left, err := args[0].(*Instance).Criteria()
	if err != nil {
		return nil, err
	}
	right, err := args[1].(*Instance).Criteria()
	if err != nil {
		return nil, err
	}
	return &imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{*left, *right}}}, nil
}

func and(args []any) (*imap.SearchCriteria, error) {
	list := args[0].([]*Instance)
	if len(list) == 0 {
		return nil, fmt.Errorf("at least one predicate is required")
	}
	out := &imap.SearchCriteria{}
	for _, inst := range list {
		c, err := inst.Criteria()
		if err != nil {
			return nil, err
		}
		out.And(c)
	}
	return out, nil
}
