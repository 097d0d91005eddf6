package email

import (
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseMessage parses raw RFC 5322 bytes into a Message. The first text part
// becomes the body; further text parts of a multipart/alternative become
// alternative views; everything else is an attachment.
func ParseMessage(raw []byte) (*Message, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &Message{Raw: raw}
	parseHeader(msg, entity.Header)
	parseEntityBody(msg, entity, false)
	return msg, nil
}

// parseHeader fills the envelope fields and the ordered header list.
func parseHeader(msg *Message, h gomessage.Header) {
	seen := make(map[string]bool)
	fields := h.Fields()
	for fields.Next() {
		name := textproto.CanonicalMIMEHeaderKey(fields.Key())
		if seen[name] {
			continue
		}
		seen[name] = true
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		msg.Headers = append(msg.Headers, HeaderField{Name: name, Value: value})
	}

	mh := mail.Header{Header: h}
	if subject, err := mh.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mh.Get("Subject")
	}
	msg.Date, _ = mh.Date()
	msg.From = parseAddressList(mh, "From")
	msg.To = parseAddressList(mh, "To")
	msg.Cc = parseAddressList(mh, "Cc")
}

func parseAddressList(h mail.Header, key string) []Address {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, Address{Name: a.Name, Email: a.Address})
	}
	return out
}

// parseEntityBody walks single-part and (nested) multipart entities.
func parseEntityBody(msg *Message, entity *gomessage.Entity, alternative bool) {
	if mr := entity.MultipartReader(); mr != nil {
		ct, _, _ := entity.Header.ContentType()
		inAlt := ct == "multipart/alternative"
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			parseEntityBody(msg, part, inAlt)
		}
		return
	}
	parsePart(msg, entity, alternative)
}

func parsePart(msg *Message, part *gomessage.Entity, alternative bool) {
	ct, params, _ := part.Header.ContentType()
	if ct == "" {
		ct = "text/plain"
	}
	data, err := io.ReadAll(part.Body)
	if err != nil {
		return
	}
	disp, _, _ := part.Header.ContentDisposition()

	if strings.HasPrefix(ct, "text/") && disp != "attachment" {
		switch {
		case msg.BodyType == "":
			msg.Body = string(data)
			msg.BodyType = ct
			return
		case alternative:
			msg.AlternativeViews = append(msg.AlternativeViews, AlternativeView{
				ContentType: ct,
				Data:        data,
			})
			return
		}
	}

	h := mail.AttachmentHeader{Header: part.Header}
	filename, _ := h.Filename()
	if filename == "" {
		filename = params["name"]
	}
	msg.Attachments = append(msg.Attachments, Attachment{
		Filename:    filename,
		ContentType: ct,
		Data:        data,
	})
}
