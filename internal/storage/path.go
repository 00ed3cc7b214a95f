package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildJournalPath returns prefix/dt=YYYY-MM-DD/<batchID>.parquet using the UTC date of
// createdAt.
func BuildJournalPath(prefix string, createdAt time.Time, batchID string) (string, error) {
	if err := validatePathComponent(prefix, "journal prefix"); err != nil {
		return "", err
	}
	if err := validatePathComponent(batchID, "batch id"); err != nil {
		return "", err
	}
	ts := createdAt.UTC()
	return path.Join(
		prefix,
		fmt.Sprintf("dt=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		batchID+".parquet",
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
