package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	metaSuffix   = ".meta.json"
	bodySuffix   = ".body"
	resultSuffix = ".result.json"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes page and result entries older than maxAge. Page entries
// are aged by the SavedAt stamp in their meta file, results by mtime.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch name := d.Name(); {
		case strings.HasSuffix(name, metaSuffix):
			b, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil
			}
			var e HTTPEntry
			if json.Unmarshal(b, &e) != nil || now.Sub(e.SavedAt) <= maxAge {
				return nil
			}
			removed++
			_ = os.Remove(path)
			_ = os.Remove(strings.TrimSuffix(path, metaSuffix) + bodySuffix)
		case strings.HasSuffix(name, resultSuffix):
			info, infoErr := d.Info()
			if infoErr != nil || now.Sub(info.ModTime().UTC()) <= maxAge {
				return nil
			}
			removed++
			_ = os.Remove(path)
		}
		return nil
	})
	return removed, err
}

// EnforceLimits keeps at most maxEntries page entries and maxEntries result
// entries, evicting the least recently used first. Zero disables the limit.
func EnforceLimits(dir string, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	type item struct {
		paths []string
		used  time.Time
	}
	var pages, results []item
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		switch name := d.Name(); {
		case strings.HasSuffix(name, bodySuffix):
			base := strings.TrimSuffix(path, bodySuffix)
			pages = append(pages, item{paths: []string{path, base + metaSuffix}, used: info.ModTime()})
		case strings.HasSuffix(name, resultSuffix):
			results = append(results, item{paths: []string{path}, used: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, group := range [][]item{pages, results} {
		if len(group) <= maxEntries {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].used.Before(group[j].used) })
		for _, it := range group[:len(group)-maxEntries] {
			for _, p := range it.paths {
				_ = os.Remove(p)
			}
			removed++
		}
	}
	return removed, nil
}
