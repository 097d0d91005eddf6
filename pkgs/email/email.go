package email

import (
	"time"
)

// Message represents a fetched email message
type Message struct {
	// Envelope
	UID     uint32
	From    []Address
	To      []Address
	Cc      []Address
	Subject string
	Date    time.Time

	// Headers in order of first appearance, one value per name
	Headers []HeaderField

	// Content
	Body             string
	BodyType         string // media type of Body, e.g. "text/html"
	Attachments      []Attachment
	AlternativeViews []AlternativeView

	// Raw is the full RFC 5322 message as fetched
	Raw []byte
}

// Sender returns the first From address, or "".
func (m *Message) Sender() string {
	if len(m.From) == 0 {
		return ""
	}
	return m.From[0].Email
}

// FirstRecipient returns the first To address, or "".
func (m *Message) FirstRecipient() string {
	if len(m.To) == 0 {
		return ""
	}
	return m.To[0].Email
}

// Address represents an email address
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HeaderField is a single "Name: Value" header line
type HeaderField struct {
	Name  string
	Value string
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AlternativeView is a non-primary part of a multipart/alternative body
type AlternativeView struct {
	ContentType string
	Data        []byte
}

// Subtype returns the media subtype, e.g. "html" for "text/html".
func (v AlternativeView) Subtype() string {
	for i := 0; i < len(v.ContentType); i++ {
		if v.ContentType[i] == '/' {
			return v.ContentType[i+1:]
		}
	}
	return v.ContentType
}

// SearchResult is the ordered list of UIDs matched by one search. It is
// never modified after it is returned.
type SearchResult struct {
	Mailbox   string
	Predicate string
	uids      []uint32
}

// NewSearchResult copies uids into a new result.
func NewSearchResult(mailbox, predicate string, uids []uint32) *SearchResult {
	return &SearchResult{
		Mailbox:   mailbox,
		Predicate: predicate,
		uids:      append([]uint32(nil), uids...),
	}
}

// UIDs returns a copy of the matched UIDs in server order.
func (r *SearchResult) UIDs() []uint32 {
	return append([]uint32(nil), r.uids...)
}

// Len returns the number of matched messages. A nil result has none.
func (r *SearchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.uids)
}
