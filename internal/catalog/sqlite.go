package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultQuery selects entries from a table laid out like the buildings API.
// Any query returning (id, display_name, has_existing_asset, asset_url) works.
const DefaultQuery = `SELECT uuid, title, has_image, COALESCE(image_url, '') FROM buildings ORDER BY title`

// SQLite reads entries from a SQLite database with a configurable query.
type SQLite struct {
	Path  string
	Query string
}

// Entries opens the database, runs the query and closes it again. The
// database must already exist.
func (s SQLite) Entries(ctx context.Context) ([]Entry, error) {
	query := s.Query
	if query == "" {
		query = DefaultQuery
	}

	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("catalog database: %w", err)
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", s.Path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.HasExistingAsset, &e.AssetURL); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog rows: %w", err)
	}
	return validate(entries)
}
