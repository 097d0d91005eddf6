package export

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emx-mail/export/pkgs/email"
)

// File and folder names of the structured layout.
const (
	HeadersFile         = "Headers.txt"
	BodyFile            = "Body.html"
	AttachmentsDir      = "Attachments"
	AlternativeViewsDir = "Alternative Views"
)

// Structured writes each message into its own folder: headers, body,
// numbered attachments and numbered alternative views.
type Structured struct{}

func (Structured) Write(root string, index int, msg *email.Message) (string, error) {
	dir := filepath.Join(root, EntryName(index, msg.Subject))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &WriteError{Path: dir, Err: err}
	}

	var headers strings.Builder
	for _, h := range msg.Headers {
		headers.WriteString(h.Name + ": " + h.Value + "\n")
	}
	if err := writeFile(filepath.Join(dir, HeadersFile), []byte(headers.String())); err != nil {
		return dir, err
	}
	if err := writeFile(filepath.Join(dir, BodyFile), []byte(msg.Body)); err != nil {
		return dir, err
	}

	if len(msg.Attachments) > 0 {
		sub := filepath.Join(dir, AttachmentsDir)
		if err := os.MkdirAll(sub, 0755); err != nil {
			return dir, &WriteError{Path: sub, Err: err}
		}
		for i, a := range msg.Attachments {
			name := strconv.Itoa(i+1) + SanitizeName(filepath.Ext(a.Filename))
			if err := writeFile(filepath.Join(sub, name), a.Data); err != nil {
				return dir, err
			}
		}
	}

	if len(msg.AlternativeViews) > 0 {
		sub := filepath.Join(dir, AlternativeViewsDir)
		if err := os.MkdirAll(sub, 0755); err != nil {
			return dir, &WriteError{Path: sub, Err: err}
		}
		for i, v := range msg.AlternativeViews {
			name := strconv.Itoa(i+1) + "." + SanitizeName(v.Subtype())
			if err := writeFile(filepath.Join(sub, name), v.Data); err != nil {
				return dir, err
			}
		}
	}
	return dir, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
