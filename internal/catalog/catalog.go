// Package catalog defines the read-only catalog of entities that uploaded
// images can be attached to, and the sources it can be loaded from.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Entry is one catalog entity eligible to receive an image.
// Entries are immutable once loaded.
type Entry struct {
	ID               string `json:"id" yaml:"id"`
	DisplayName      string `json:"display_name" yaml:"display_name"`
	HasExistingAsset bool   `json:"has_existing_asset" yaml:"has_existing_asset"`
	AssetURL         string `json:"asset_url,omitempty" yaml:"asset_url,omitempty"`
}

// Source returns the ordered list of catalog entries. Order matters: the
// matcher breaks score ties in favour of the earlier entry.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Static is an in-memory Source.
type Static []Entry

// Entries returns a copy of the static list.
func (s Static) Entries(_ context.Context) ([]Entry, error) {
	out := make([]Entry, len(s))
	copy(out, s)
	return out, nil
}

// Lookup finds an entry by id.
func Lookup(entries []Entry, id string) (Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// validate drops entries without an id or display name and reports
// duplicate ids. A nameless entry could never be matched.
func validate(entries []Entry) ([]Entry, error) {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for i, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" || strings.TrimSpace(e.DisplayName) == "" {
			continue
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out, nil
}
