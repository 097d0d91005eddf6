package export

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-mbox"

	"github.com/emx-mail/export/pkgs/email"
)

// MboxFile is the name of the file written by Mbox in the job root.
const MboxFile = "messages.mbox"

// Mbox appends every message's raw bytes to a single mbox file. The file
// is created on the first successful fetch; Finish closes it.
type Mbox struct {
	path string
	file *os.File
	w    *mbox.Writer
}

func (m *Mbox) Write(root string, index int, msg *email.Message) (string, error) {
	if len(msg.Raw) == 0 {
		return "", errors.New("message has no raw content")
	}
	if m.w == nil {
		m.path = filepath.Join(root, MboxFile)
		f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return "", &WriteError{Path: m.path, Err: err}
		}
		m.file = f
		m.w = mbox.NewWriter(f)
	}

	from := msg.Sender()
	if from == "" {
		from = "unknown@unknown"
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	mw, err := m.w.CreateMessage(from, date)
	if err != nil {
		return "", &WriteError{Path: m.path, Err: err}
	}
	if _, err := mw.Write(msg.Raw); err != nil {
		return "", &WriteError{Path: m.path, Err: err}
	}
	return m.path, nil
}

// Finish flushes the mbox writer and closes the file.
func (m *Mbox) Finish() error {
	if m.w == nil {
		return nil
	}
	err := m.w.Close()
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	m.w, m.file = nil, nil
	return err
}
