package adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const alertMail = `From: LinkedIn Job Alerts <jobalerts-noreply@linkedin.com>
To: me@example.com
Subject: 2 new jobs for "go engineer"
Date: Thu, 20 Aug 2026 08:30:00 +0000
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain

Plain text fallback.
--b1
Content-Type: text/html

<html><body>
<a href="https://www.linkedin.com/jobs/view/4001?refId=track&trackingId=xyz">Senior Go Engineer
Acme Corp &#183; United States (Remote)</a>
<a href="https://www.linkedin.com/comm/jobs/view/4002?tracking=abc">Backend Engineer
Widget Inc &#183; Berlin, Germany</a>
<a href="https://www.linkedin.com/psettings/email">Unsubscribe</a>
</body></html>
--b1--
`

func writeMail(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLinkedIn_ParsesAlertMail(t *testing.T) {
	dir := t.TempDir()
	writeMail(t, dir, "alert-1.eml", alertMail)

	a := NewLinkedInAdapter(dir, "", discardLogger())
	listings, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 job links (unsubscribe ignored), got %d", len(listings))
	}

	first := listings[0]
	if first.Title != "Senior Go Engineer" || first.Company != "Acme Corp" {
		t.Fatalf("alert link split failed: %+v", first)
	}
	if first.Location != "United States (Remote)" {
		t.Fatalf("unexpected location %q", first.Location)
	}
	if first.URL != "https://www.linkedin.com/jobs/view/4001" {
		t.Fatalf("expected tracking params stripped, got %q", first.URL)
	}
	if first.PostedAt == nil || first.PostedAt.Day() != 20 {
		t.Fatalf("expected mail date as posted-at, got %v", first.PostedAt)
	}
}

func TestLinkedIn_SinceCursorSkipsOldMail(t *testing.T) {
	dir := t.TempDir()
	writeMail(t, dir, "alert-1.eml", alertMail)

	a := NewLinkedInAdapter(dir, "", discardLogger())
	since := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	listings, err := a.Fetch(context.Background(), since)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("expected old mail filtered out, got %d listings", len(listings))
	}
}

func TestLinkedIn_OneBadMailIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeMail(t, dir, "good.eml", alertMail)
	writeMail(t, dir, "garbage.eml", "this is not an rfc822 message")

	a := NewLinkedInAdapter(dir, "", discardLogger())
	listings, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("expected bad mail skipped, got %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected listings from the good mail, got %d", len(listings))
	}
}

func TestLinkedIn_AllMailsFailingIsParseError(t *testing.T) {
	dir := t.TempDir()
	writeMail(t, dir, "garbage-1.eml", "not a message")
	writeMail(t, dir, "garbage-2.eml", "also not a message")

	a := NewLinkedInAdapter(dir, "", discardLogger())
	_, err := a.Fetch(context.Background(), time.Time{})

	var ae *model.AdapterError
	if !errors.As(err, &ae) || ae.Kind != model.FailureParse {
		t.Fatalf("expected parse failure when every mail fails, got %v", err)
	}
}

func TestLinkedIn_MissingMailDirIsUnreachable(t *testing.T) {
	a := NewLinkedInAdapter("/nonexistent/maildir", "", discardLogger())
	_, err := a.Fetch(context.Background(), time.Time{})

	var ae *model.AdapterError
	if !errors.As(err, &ae) || ae.Kind != model.FailureUnreachable {
		t.Fatalf("expected unreachable failure, got %v", err)
	}
	if !ae.Transient() {
		t.Fatal("unreachable maildir should be retried")
	}
}

func TestLinkedIn_URLFile(t *testing.T) {
	dir := t.TempDir()
	urlFile := filepath.Join(dir, "urls.txt")
	content := `# pasted from the app
https://www.linkedin.com/jobs/view/5001?refId=x | Staff Engineer | Acme Corp

https://www.linkedin.com/jobs/view/5002
`
	if err := os.WriteFile(urlFile, []byte(content), 0o644); err != nil {
		t.Fatalf("writing url file: %v", err)
	}

	a := NewLinkedInAdapter("", urlFile, discardLogger())
	listings, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Title != "Staff Engineer" || listings[0].Company != "Acme Corp" {
		t.Fatalf("unexpected first listing: %+v", listings[0])
	}
	if listings[0].URL != "https://www.linkedin.com/jobs/view/5001" {
		t.Fatalf("expected tracking stripped, got %q", listings[0].URL)
	}
	if listings[1].Title != "" {
		t.Fatalf("bare URL line must leave title empty, got %q", listings[1].Title)
	}
}

func TestLinkedIn_MissingURLFileYieldsNothing(t *testing.T) {
	a := NewLinkedInAdapter("", filepath.Join(t.TempDir(), "absent.txt"), discardLogger())
	listings, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("expected absent url file tolerated, got %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}
