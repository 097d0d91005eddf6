// Package predicate holds the catalog of IMAP search predicates that can be
// offered to a user, and the binder that turns edited parameter values into
// a concrete search.
//
// The catalog is a static registry in IMAP SEARCH key order. Composite
// entries (AND, OR, NOT, UID lists) are registered so the registry mirrors
// the whole search surface, but only leaf predicates with scalar parameters
// are ever listed for selection.
package predicate

import (
	"strings"

	"github.com/emersion/go-imap/v2"
)

// Kind is the type of a predicate parameter.
type Kind int

const (
	KindInt64 Kind = iota
	KindUint32
	KindText
	KindDate

	// Non-bindable kinds, used by composite registry entries only.
	KindPredicate
	KindPredicateList
	KindUint32List
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindUint32:
		return "uint32"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindPredicate:
		return "predicate"
	case KindPredicateList:
		return "predicate[]"
	case KindUint32List:
		return "uint32[]"
	default:
		return "unknown"
	}
}

// Bindable reports whether an editor exists for the kind.
func (k Kind) Bindable() bool {
	return k >= KindInt64 && k <= KindDate
}

// ParameterSpec describes one positional parameter of a predicate.
type ParameterSpec struct {
	Name string
	Kind Kind
}

// builder turns type-checked arguments into search criteria.
type builder func(args []any) (*imap.SearchCriteria, error)

// Descriptor describes a predicate constructor. Its identity is Name.
type Descriptor struct {
	Name    string
	Summary string
	Params  []ParameterSpec

	build builder
}

// Equal reports whether both descriptors name the same constructor.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Name == other.Name
}

func (d Descriptor) clone() Descriptor {
	d.Params = append([]ParameterSpec(nil), d.Params...)
	return d
}

// leaf reports whether the descriptor can be parameterized by scalar
// inputs: it has no parameters, or its first parameter is neither a
// predicate nor a list of predicates nor a list of UIDs.
func (d Descriptor) leaf() bool {
	if len(d.Params) == 0 {
		return true
	}
	switch d.Params[0].Kind {
	case KindPredicate, KindPredicateList, KindUint32List:
		return false
	}
	return true
}

func p(name string, kind Kind) ParameterSpec {
	return ParameterSpec{Name: name, Kind: kind}
}

// registry lists every search constructor in declaration order. Every entry
// produces search criteria.
var registry = []Descriptor{
	{Name: "All", Summary: "All messages in the mailbox", build: all},
	{Name: "Answered", Summary: "Messages with the \\Answered flag", build: withFlag(imap.FlagAnswered)},
	{Name: "Bcc", Summary: "BCC header contains text", Params: []ParameterSpec{p("text", KindText)}, build: headerContains("Bcc")},
	{Name: "Before", Summary: "Internal date earlier than date", Params: []ParameterSpec{p("date", KindDate)}, build: before},
	{Name: "Body", Summary: "Body contains text", Params: []ParameterSpec{p("text", KindText)}, build: body},
	{Name: "Cc", Summary: "CC header contains text", Params: []ParameterSpec{p("text", KindText)}, build: headerContains("Cc")},
	{Name: "Deleted", Summary: "Messages with the \\Deleted flag", build: withFlag(imap.FlagDeleted)},
	{Name: "Draft", Summary: "Messages with the \\Draft flag", build: withFlag(imap.FlagDraft)},
	{Name: "Flagged", Summary: "Messages with the \\Flagged flag", build: withFlag(imap.FlagFlagged)},
	{Name: "From", Summary: "FROM header contains text", Params: []ParameterSpec{p("text", KindText)}, build: headerContains("From")},
	{Name: "GreaterThan", Summary: "UID greater than uid", Params: []ParameterSpec{p("uid", KindUint32)}, build: greaterThan},
	{Name: "Header", Summary: "Named header contains text", Params: []ParameterSpec{p("name", KindText), p("text", KindText)}, build: header},
	{Name: "Keyword", Summary: "Messages with the keyword flag", Params: []ParameterSpec{p("keyword", KindText)}, build: keyword},
	{Name: "Larger", Summary: "RFC 822 size larger than size bytes", Params: []ParameterSpec{p("size", KindInt64)}, build: larger},
	{Name: "LessThan", Summary: "UID less than uid", Params: []ParameterSpec{p("uid", KindUint32)}, build: lessThan},
	{Name: "New", Summary: "Recent messages not yet seen", build: recentUnseen},
	{Name: "Not", Summary: "Negation of a predicate", Params: []ParameterSpec{p("predicate", KindPredicate)}, build: not},
	{Name: "Old", Summary: "Messages without the \\Recent flag", build: withoutFlag(flagRecent)},
	{Name: "On", Summary: "Internal date within date", Params: []ParameterSpec{p("date", KindDate)}, build: on},
	{Name: "Or", Summary: "Either of two predicates", Params: []ParameterSpec{p("left", KindPredicate), p("right", KindPredicate)}, build: or},
	{Name: "And", Summary: "All of the given predicates", Params: []ParameterSpec{p("predicates", KindPredicateList)}, build: and},
	{Name: "Recent", Summary: "Messages with the \\Recent flag", build: withFlag(flagRecent)},
	{Name: "Seen", Summary: "Messages with the \\Seen flag", build: withFlag(imap.FlagSeen)},
	{Name: "SentBefore", Summary: "Date header earlier than date", Params: []ParameterSpec{p("date", KindDate)}, build: sentBefore},
	{Name: "SentOn", Summary: "Date header within date", Params: []ParameterSpec{p("date", KindDate)}, build: sentOn},
	{Name: "SentSince", Summary: "Date header within or later than date", Params: []ParameterSpec{p("date", KindDate)}, build: sentSince},
	{Name: "Since", Summary: "Internal date within or later than date", Params: []ParameterSpec{p("date", KindDate)}, build: since},
	{Name: "Smaller", Summary: "RFC 822 size smaller than size bytes", Params: []ParameterSpec{p("size", KindInt64)}, build: smaller},
	{Name: "Subject", Summary: "SUBJECT header contains text", Params: []ParameterSpec{p("text", KindText)}, build: headerContains("Subject")},
	{Name: "Text", Summary: "Header or body contains text", Params: []ParameterSpec{p("text", KindText)}, build: text},
	{Name: "To", Summary: "TO header contains text", Params: []ParameterSpec{p("text", KindText)}, build: headerContains("To")},
	{Name: "UID", Summary: "Message with the given uid", Params: []ParameterSpec{p("uid", KindUint32)}, build: uid},
	{Name: "UIDs", Summary: "Messages with any of the given uids", Params: []ParameterSpec{p("uids", KindUint32List)}, build: uids},
	{Name: "Unanswered", Summary: "Messages without the \\Answered flag", build: withoutFlag(imap.FlagAnswered)},
	{Name: "Undeleted", Summary: "Messages without the \\Deleted flag", build: withoutFlag(imap.FlagDeleted)},
	{Name: "Undraft", Summary: "Messages without the \\Draft flag", build: withoutFlag(imap.FlagDraft)},
	{Name: "Unflagged", Summary: "Messages without the \\Flagged flag", build: withoutFlag(imap.FlagFlagged)},
	{Name: "Unkeyword", Summary: "Messages without the keyword flag", Params: []ParameterSpec{p("keyword", KindText)}, build: unkeyword},
	{Name: "Unseen", Summary: "Messages without the \\Seen flag", build: withoutFlag(imap.FlagSeen)},
}

// ListPredicates returns the leaf predicates in registry order.
func ListPredicates() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		if d.leaf() {
			out = append(out, d.clone())
		}
	}
	return out
}

// Lookup finds a leaf predicate by name, ignoring case.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range registry {
		if d.leaf() && strings.EqualFold(d.Name, name) {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

