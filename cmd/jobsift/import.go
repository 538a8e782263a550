package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/dedupe"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/normalize"
	"github.com/jobsift/jobsift/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [\"URL | Title | Company\" ...]",
	Short: "Manually import job postings by URL",
	Long: `Import postings pasted from anywhere, one per argument (or per stdin line
when no arguments are given), in the form "URL | Title | Company".
Imported postings go through the same normalization and deduplication as
scraped ones.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	lines := args
	if len(lines) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}
	if len(lines) == 0 {
		return fmt.Errorf("nothing to import")
	}

	norm := normalize.New(cfg.Normalize, logger)
	imported, skipped := 0, 0

	for _, line := range lines {
		fields := strings.Split(line, "|")
		raw := model.RawListing{
			Platform: "manual",
			URL:      strings.TrimSpace(fields[0]),
		}
		if len(fields) > 1 {
			raw.Title = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			raw.Company = strings.TrimSpace(fields[2])
		}

		posting, err := norm.Normalize(raw)
		if err != nil {
			logger.Warn("skipping import line", "line", line, "error", err)
			skipped++
			continue
		}

		existing, err := st.FindByNaturalKey(posting.Title, posting.Company)
		if err != nil {
			return fmt.Errorf("looking up %q/%q: %w", posting.Title, posting.Company, err)
		}
		_, merged := dedupe.Reconcile(posting, existing)

		result, err := st.Upsert(merged)
		if err != nil {
			return fmt.Errorf("storing %q/%q: %w", posting.Title, posting.Company, err)
		}
		logger.Info("imported posting", "title", posting.Title, "company", posting.Company, "result", string(result))
		imported++
	}

	fmt.Printf("imported %d, skipped %d\n", imported, skipped)
	return nil
}
