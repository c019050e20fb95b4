package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"

	"gitlab.com/ccsd.net/internal/static/errs"
)

// Entry is one configuration value addressed by an absolute path
type Entry struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Document is a versioned configuration tree flattened into path-ordered entries.
// A Document is never modified in place once built.
type Document struct {
	Version int64   `json:"version"`
	Entries []Entry `json:"entries"`
}

// NewDocument cleans every path, drops duplicates (the last one wins) and sorts by path
func NewDocument(version int64, entries []Entry) (*Document, error) {
	byPath := make(map[string]string, len(entries))
	for _, e := range entries {
		p, err := cleanPath(e.Path)
		if err != nil {
			return nil, err
		}
		byPath[p] = e.Value
	}

	normalized := lo.MapToSlice(byPath, func(p string, v string) Entry {
		return Entry{Path: p, Value: v}
	})
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Path < normalized[j].Path })

	return &Document{Version: version, Entries: normalized}, nil
}

// ParseDocument decodes a JSON document and normalizes it
func ParseDocument(data []byte) (*Document, error) {
	var raw Document
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", errs.InvalidRequest, err)
	}
	return NewDocument(raw.Version, raw.Entries)
}

// EmptyDocument returns version zero with no entries
func EmptyDocument() *Document {
	return &Document{Entries: []Entry{}}
}

func cleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: path %q is not absolute", errs.InvalidRequest, p)
	}
	return path.Clean(p), nil
}

// Resolve turns query into an absolute path. Relative queries are taken from cwp.
func Resolve(cwp, query string) string {
	if query == "" {
		return path.Clean(cwp)
	}
	if strings.HasPrefix(query, "/") {
		return path.Clean(query)
	}
	return path.Join(cwp, query)
}

// Match returns, in path order, the entries equal to pattern or matching it as a
// path.Match pattern
func (d *Document) Match(pattern string) []Entry {
	return lo.Filter(d.Entries, func(e Entry, _ int) bool {
		if e.Path == pattern {
			return true
		}
		ok, err := path.Match(pattern, e.Path)
		return err == nil && ok
	})
}

// Lookup returns the value stored at exactly p
func (d *Document) Lookup(p string) (string, bool) {
	i := sort.Search(len(d.Entries), func(i int) bool { return d.Entries[i].Path >= p })
	if i < len(d.Entries) && d.Entries[i].Path == p {
		return d.Entries[i].Value, true
	}
	return "", false
}

// HasPrefix reports whether any entry lies at or below p
func (d *Document) HasPrefix(p string) bool {
	p = path.Clean(p)
	if p == "/" {
		return true
	}
	return lo.ContainsBy(d.Entries, func(e Entry) bool {
		return e.Path == p || strings.HasPrefix(e.Path, p+"/")
	})
}

// With returns a copy of d with p set to value and the version bumped
func (d *Document) With(p, value string) (*Document, error) {
	entries := make([]Entry, 0, len(d.Entries)+1)
	entries = append(entries, d.Entries...)
	entries = append(entries, Entry{Path: p, Value: value})
	return NewDocument(d.Version+1, entries)
}

// Paths lists every entry path in order
func (d *Document) Paths() []string {
	return lo.Map(d.Entries, func(e Entry, _ int) string { return e.Path })
}

// Len returns the number of entries
func (d *Document) Len() int {
	return len(d.Entries)
}
