package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/liframe/internal/fsutil"
)

// File is one discovered dataset file.
type File struct {
	Base string // basename without extension
	Path string
}

// Discover lists files in dir whose extension matches ext (case-insensitive),
// ordered by the integer formed from the digits in each basename. Non-digit
// characters are ignored. A matching file whose basename has no digits fails
// the whole call. maxCount > 0 truncates the result.
func Discover(fsys fsutil.FileSystem, dir, ext string, maxCount int) ([]File, error) {
	names, err := fsys.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	type keyed struct {
		File
		key string
	}
	var files []keyed
	for _, name := range names {
		e := filepath.Ext(name)
		if !strings.EqualFold(e, ext) {
			continue
		}
		base := strings.TrimSuffix(name, e)
		key := digitKey(base)
		if key == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNoDigits)
		}
		files = append(files, keyed{File: File{Base: base, Path: filepath.Join(dir, name)}, key: key})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if c := compareNumeric(files[i].key, files[j].key); c != 0 {
			return c < 0
		}
		return files[i].Base < files[j].Base
	})

	if maxCount > 0 && len(files) > maxCount {
		files = files[:maxCount]
	}
	out := make([]File, len(files))
	for i, f := range files {
		out[i] = f.File
	}
	return out, nil
}

// digitKey returns the digits of s with leading zeros removed. A string of
// only zeros yields "0"; a string without digits yields "".
func digitKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" {
		return ""
	}
	d = strings.TrimLeft(d, "0")
	if d == "" {
		return "0"
	}
	return d
}

// compareNumeric compares two digit strings without leading zeros by value.
func compareNumeric(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
