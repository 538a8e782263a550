package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/review"
	"github.com/jobsift/jobsift/internal/store"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse ingested postings and mark keepers",
	Long:  "Open the interactive browser over the local store. Saved postings are exempt from retention cleanup.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 200, "maximum postings to load")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
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

	return review.Run(st, reviewLimit)
}
