package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Mode is the SQLite URI open mode.
type Mode string

const (
	ModeReadOnly        Mode = "ro"
	ModeReadWrite       Mode = "rw"
	ModeReadWriteCreate Mode = "rwc"
)

// SQLiteDSN builds a modernc.org/sqlite URI DSN for the database file at path.
// With ModeReadWrite or ModeReadOnly a missing file fails at connect time
// instead of being created empty.
func SQLiteDSN(path string, mode Mode) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}

	q := url.Values{}
	q.Set("mode", string(mode))
	q.Add("_pragma", "busy_timeout(5000)")
	if mode != ModeReadOnly {
		q.Add("_pragma", "foreign_keys(1)")
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String(), nil
}

// Exists reports whether a regular database file is present at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
