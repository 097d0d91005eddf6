package export

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/emx-mail/export/pkgs/email"
)

// TemplateExt is the extension of files written by Template.
const TemplateExt = ".html"

// Template renders each message into a single file from a text template
// with positional placeholders:
//
//	{0} sender address
//	{1} first recipient address
//	{2} date
//	{3} subject
//	{4} body
//
// "{{" and "}}" produce literal braces.
type Template struct {
	Text string
}

// Render substitutes the placeholders for msg.
func (t Template) Render(msg *email.Message) string {
	date := ""
	if !msg.Date.IsZero() {
		date = msg.Date.Format(time.RFC1123Z)
	}
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		"{0}", msg.Sender(),
		"{1}", msg.FirstRecipient(),
		"{2}", date,
		"{3}", msg.Subject,
		"{4}", msg.Body,
	)
	return r.Replace(t.Text)
}

func (t Template) Write(root string, index int, msg *email.Message) (string, error) {
	path := filepath.Join(root, EntryName(index, msg.Subject)+TemplateExt)
	if err := writeFile(path, []byte(t.Render(msg))); err != nil {
		return "", err
	}
	return path, nil
}
