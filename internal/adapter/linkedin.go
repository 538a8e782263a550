package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsift/jobsift/internal/model"
)

// LinkedInAdapter ingests LinkedIn postings without touching linkedin.com.
// Direct automation is high-risk, so the primary contract is fulfilled by
// two offline sources: forwarded job-alert e-mails dropped into a maildir,
// and a file of manually pasted job URLs. A browser-automation variant is
// deliberately not implemented; its policy gate (opt-in flag, volume
// ceiling, business-hours window) lives in config so enabling it stays an
// explicit decision, and the platform-risk breaker policy already applies
// to this adapter.
type LinkedInAdapter struct {
	mailDir string
	urlFile string
	logger  *slog.Logger
}

var _ model.SourceAdapter = (*LinkedInAdapter)(nil)

// NewLinkedInAdapter creates the adapter. Either source path may be empty.
func NewLinkedInAdapter(mailDir, urlFile string, logger *slog.Logger) *LinkedInAdapter {
	return &LinkedInAdapter{mailDir: mailDir, urlFile: urlFile, logger: logger}
}

func (a *LinkedInAdapter) Platform() string { return "linkedin" }

// Fetch reads alert e-mails and pasted URLs. I/O errors on the maildir are
// unreachable-class (the directory may be a mounted sync target); a message
// that cannot be parsed is skipped, and only if every message fails does
// the adapter surface a parse error.
func (a *LinkedInAdapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	var listings []model.RawListing

	if a.mailDir != "" {
		fromMail, err := a.fetchFromMailDir(ctx, since)
		if err != nil {
			return nil, err
		}
		listings = append(listings, fromMail...)
	}

	if a.urlFile != "" {
		fromURLs, err := a.fetchFromURLFile()
		if err != nil {
			return nil, err
		}
		listings = append(listings, fromURLs...)
	}

	return listings, nil
}

func (a *LinkedInAdapter) fetchFromMailDir(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	entries, err := os.ReadDir(a.mailDir)
	if err != nil {
		return nil, &model.AdapterError{
			Platform: a.Platform(),
			Kind:     model.FailureUnreachable,
			Err:      fmt.Errorf("reading mail dir: %w", err),
		}
	}

	var (
		listings  []model.RawListing
		attempted int
		failed    int
	)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".eml") {
			continue
		}
		attempted++

		path := filepath.Join(a.mailDir, entry.Name())
		parsed, err := a.parseAlertMail(path, since)
		if err != nil {
			failed++
			a.logger.Warn("skipping unparseable alert mail", "file", entry.Name(), "error", err)
			continue
		}
		listings = append(listings, parsed...)
	}

	if attempted > 0 && failed == attempted {
		return nil, parseErr(a.Platform(), fmt.Errorf("all %d alert mails failed to parse; alert format may have changed", attempted))
	}

	return listings, nil
}

// parseAlertMail extracts job links and titles from one forwarded alert.
func (a *LinkedInAdapter) parseAlertMail(path string, since time.Time) ([]model.RawListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	var postedAt *time.Time
	if d, err := msg.Header.Date(); err == nil {
		postedAt = &d
	}
	if !postedSince(postedAt, since) {
		return nil, nil
	}

	htmlBody, err := extractHTMLPart(msg)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parse html body: %w", err)
	}

	var listings []model.RawListing
	doc.Find("a[href*='linkedin.com/jobs/view'], a[href*='linkedin.com/comm/jobs/view']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		text := strings.TrimSpace(link.Text())
		if text == "" || href == "" {
			return
		}

		// Alert links render as "Title\nCompany · Location" blocks; fall
		// back to the bare link text as a title when that shape is absent.
		title, company, location := splitAlertLink(text)
		listings = append(listings, model.RawListing{
			Platform: a.Platform(),
			Title:    title,
			Company:  company,
			Location: location,
			URL:      stripTracking(href),
			PostedAt: postedAt,
		})
	})

	return listings, nil
}

// extractHTMLPart returns the text/html body of msg, walking one level of
// multipart nesting (alert mails are multipart/alternative).
func extractHTMLPart(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// No content type: assume the body is the HTML.
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", fmt.Errorf("read body: %w", readErr)
		}
		return string(body), nil
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(body), nil
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read multipart: %w", err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if partType == "text/html" {
			body, err := io.ReadAll(part)
			if err != nil {
				return "", fmt.Errorf("read html part: %w", err)
			}
			return string(body), nil
		}
	}
	return "", fmt.Errorf("no text/html part found")
}

// splitAlertLink parses "Title\nCompany · Location" link text.
func splitAlertLink(text string) (title, company, location string) {
	lines := strings.Split(text, "\n")
	title = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		meta := strings.SplitN(lines[1], "·", 2)
		company = strings.TrimSpace(meta[0])
		if len(meta) > 1 {
			location = strings.TrimSpace(meta[1])
		}
	}
	return title, company, location
}

// stripTracking removes the query string from alert links, which carry only
// tracking parameters.
func stripTracking(href string) string {
	if i := strings.IndexByte(href, '?'); i >= 0 {
		return href[:i]
	}
	return href
}

func (a *LinkedInAdapter) fetchFromURLFile() ([]model.RawListing, error) {
	f, err := os.Open(a.urlFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.AdapterError{
			Platform: a.Platform(),
			Kind:     model.FailureUnreachable,
			Err:      fmt.Errorf("open url file: %w", err),
		}
	}
	defer f.Close()

	var listings []model.RawListing
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Pasted lines are "URL | Title | Company" with the URL mandatory.
		fields := strings.Split(line, "|")
		listing := model.RawListing{
			Platform: a.Platform(),
			URL:      stripTracking(strings.TrimSpace(fields[0])),
		}
		if len(fields) > 1 {
			listing.Title = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			listing.Company = strings.TrimSpace(fields[2])
		}
		listings = append(listings, listing)
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(a.Platform(), fmt.Errorf("scan url file: %w", err))
	}

	return listings, nil
}
