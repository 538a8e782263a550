package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestStart_RejectsInvalidSpec(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(nil, "every now and then", logger)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
