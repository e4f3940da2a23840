package repository

import (
	"fmt"
	"strings"
	"time"
)

// Timestamps are stored as RFC3339 in UTC so string comparison in SQL
// matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
