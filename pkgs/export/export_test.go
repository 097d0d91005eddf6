package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emx-mail/export/pkgs/email"
)

// fakeFetcher serves parsed messages by UID and fails for UIDs in failures.
type fakeFetcher struct {
	failures map[uint32]bool
	fetched  []uint32
}

func (f *fakeFetcher) Fetch(_ context.Context, uid uint32) (*email.Message, error) {
	f.fetched = append(f.fetched, uid)
	if f.failures[uid] {
		return nil, &email.FetchError{UID: uid, Err: errors.New("server said no")}
	}
	return testMessage(uid), nil
}

func testMessage(uid uint32) *email.Message {
	raw := "From: Sender <sender@example.com>\r\n" +
		"To: rcpt@example.com\r\n" +
		fmt.Sprintf("Subject: Message %d\r\n", uid) +
		"Date: Tue, 10 Feb 2026 08:00:00 +0000\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		fmt.Sprintf("<p>body %d</p>", uid)
	msg, err := email.ParseMessage([]byte(raw))
	if err != nil {
		panic(err)
	}
	msg.UID = uid
	return msg
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_PartialFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "job")
	fetcher := &fakeFetcher{failures: map[uint32]bool{103: true}}
	var progress []int

	report, err := Run(context.Background(), fetcher, []uint32{101, 102, 103, 104, 105}, Options{
		Root:      root,
		Formatter: Structured{},
		Progress:  func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Succeeded != 4 || report.Failed != 1 || report.Total != 5 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.Canceled {
		t.Error("report should not be canceled")
	}
	if report.JobID == "" {
		t.Error("expected a job id")
	}
	if got := entries(t, root); len(got) != 4 {
		t.Errorf("expected 4 output folders, got %v", got)
	}
	if len(progress) != 4 || progress[3] != 4 {
		t.Errorf("unexpected progress calls: %v", progress)
	}

	failed := report.Outcomes[2]
	var fe *email.FetchError
	if failed.UID != 103 || !errors.As(failed.Err, &fe) {
		t.Errorf("unexpected outcome for failed item: %+v", failed)
	}
	// Names keep their position in the result after a failure.
	if _, err := os.Stat(filepath.Join(root, "3_Message 104")); err != nil {
		t.Errorf("expected folder for index 3: %v", err)
	}
}

// blockingFormatter places a regular file where the entry directory for
// index block goes, so Structured cannot create it.
type blockingFormatter struct {
	Structured
	block int
}

func (f blockingFormatter) Write(root string, index int, msg *email.Message) (string, error) {
	if index == f.block {
		if err := os.WriteFile(filepath.Join(root, EntryName(index, msg.Subject)), nil, 0644); err != nil {
			return "", err
		}
	}
	return f.Structured.Write(root, index, msg)
}

func TestRun_WriteFailureContinues(t *testing.T) {
	root := filepath.Join(t.TempDir(), "job")
	fetcher := &fakeFetcher{}

	report, err := Run(context.Background(), fetcher, []uint32{101, 102, 103, 104, 105}, Options{
		Root:      root,
		Formatter: blockingFormatter{block: 2},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Succeeded != 4 || report.Failed != 1 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if len(fetcher.fetched) != 5 {
		t.Errorf("fetched %v, want all five", fetcher.fetched)
	}

	var we *WriteError
	if !errors.As(report.Outcomes[2].Err, &we) {
		t.Errorf("expected WriteError for index 2, got %v", report.Outcomes[2].Err)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if report.Outcomes[i].Err != nil {
			t.Errorf("item %d failed: %v", i, report.Outcomes[i].Err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "4_Message 105", "Body.html")); err != nil {
		t.Errorf("item after the failure not written: %v", err)
	}
}

func TestRun_ExistingRootNotReused(t *testing.T) {
	root := filepath.Join(t.TempDir(), "job")

	first, err := Run(context.Background(), &fakeFetcher{}, []uint32{1}, Options{Root: root, Formatter: Structured{}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(context.Background(), &fakeFetcher{}, []uint32{2}, Options{Root: root, Formatter: Structured{}})
	if err != nil {
		t.Fatal(err)
	}

	if first.Path != root {
		t.Errorf("first Path = %q, want %q", first.Path, root)
	}
	if second.Path != root+"_2" {
		t.Errorf("second Path = %q, want %q", second.Path, root+"_2")
	}
	if got := entries(t, root); len(got) != 1 || got[0] != "0_Message 1" {
		t.Errorf("first job entries changed: %v", got)
	}
	if got := entries(t, second.Path); len(got) != 1 || got[0] != "0_Message 2" {
		t.Errorf("second job entries: %v", got)
	}
}

func TestRun_CancelBetweenItems(t *testing.T) {
	root := filepath.Join(t.TempDir(), "job")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &fakeFetcher{}

	report, err := Run(ctx, fetcher, []uint32{1, 2, 3, 4, 5}, Options{
		Root:      root,
		Formatter: Structured{},
		Progress: func(done, total int) {
			if done == 2 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !report.Canceled || report.Processed() != 2 {
		t.Errorf("expected 2 processed and canceled, got %+v", report)
	}
	if len(fetcher.fetched) != 2 {
		t.Errorf("fetched %v, want only the first two", fetcher.fetched)
	}
	if got := entries(t, root); len(got) != 2 {
		t.Errorf("expected 2 output folders, got %v", got)
	}
}

func TestRun_RootCreationAborts(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{}

	report, err := Run(context.Background(), fetcher, []uint32{1}, Options{
		Root:      filepath.Join(blocker, "job"),
		Formatter: Structured{},
	})
	var ae *AbortError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if report == nil || report.Processed() != 0 || len(fetcher.fetched) != 0 {
		t.Errorf("nothing should be processed: %+v", report)
	}
}

func TestStructured_Layout(t *testing.T) {
	raw := "MIME-Version: 1.0\r\n" +
		"From: sender@example.com\r\n" +
		"Subject: Report\r\n" +
		"Content-Type: multipart/mixed; boundary=\"OUTER\"\r\n" +
		"\r\n" +
		"--OUTER\r\n" +
		"Content-Type: multipart/alternative; boundary=\"INNER\"\r\n" +
		"\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/html\r\n\r\n" +
		"<p>hi</p>\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hi\r\n" +
		"--INNER--\r\n" +
		"--OUTER\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"q3.pdf\"\r\n\r\n" +
		"PDF\r\n" +
		"--OUTER--\r\n"
	msg, err := email.ParseMessage([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	dir, err := Structured{}.Write(root, 0, msg)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if filepath.Base(dir) != "0_Report" {
		t.Errorf("unexpected folder %q", dir)
	}

	headers, _ := os.ReadFile(filepath.Join(dir, HeadersFile))
	if !strings.Contains(string(headers), "Subject: Report\n") {
		t.Errorf("unexpected headers:\n%s", headers)
	}
	body, _ := os.ReadFile(filepath.Join(dir, BodyFile))
	if string(body) != "<p>hi</p>" {
		t.Errorf("unexpected body %q", body)
	}
	pdf, err := os.ReadFile(filepath.Join(dir, AttachmentsDir, "1.pdf"))
	if err != nil || string(pdf) != "PDF" {
		t.Errorf("unexpected attachment %q: %v", pdf, err)
	}
	view, err := os.ReadFile(filepath.Join(dir, AlternativeViewsDir, "1.plain"))
	if err != nil || string(view) != "hi" {
		t.Errorf("unexpected alternative view %q: %v", view, err)
	}
}

func TestStructured_NoEmptySubfolders(t *testing.T) {
	dir, err := Structured{}.Write(t.TempDir(), 7, testMessage(7))
	if err != nil {
		t.Fatal(err)
	}
	got := entries(t, dir)
	if len(got) != 2 {
		t.Errorf("expected only headers and body, got %v", got)
	}
}
