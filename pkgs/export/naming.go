package export

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSubjectLen is the number of subject characters kept in entry names.
const MaxSubjectLen = 30

// TimestampLayout formats the job root timestamp.
const TimestampLayout = "20060102-150405"

// Characters that are invalid in a file name on common filesystems.
var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)

// SanitizeName replaces characters that are unsafe in filenames with "_".
func SanitizeName(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
}

// EntryName returns the per-message folder or file stem
// "{index}_{subject}" with the subject cut to MaxSubjectLen characters
// before sanitizing.
func EntryName(index int, subject string) string {
	if runes := []rune(subject); len(runes) > MaxSubjectLen {
		subject = string(runes[:MaxSubjectLen])
	}
	return strconv.Itoa(index) + "_" + SanitizeName(subject)
}

// JobDirName joins the non-empty identity parts and the timestamp with "_".
// JobDirName("alice@example.com", "imap.example.com", t) gives
// "alice@example.com_imap.example.com_20260210-080000".
func JobDirName(t time.Time, parts ...string) string {
	var names []string
	for _, p := range parts {
		if p != "" {
			names = append(names, p)
		}
	}
	names = append(names, t.Format(TimestampLayout))
	return SanitizeName(strings.Join(names, "_"))
}
