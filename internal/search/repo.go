package search

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ComponentRow represents a row in the components table.
type ComponentRow struct {
	Path        string
	Name        string
	Type        string
	Domain      string
	Description string
	Checksum    string
	UpdatedAt   time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Name    string
	Type    string
	Domain  string
	Snippet string
}

// UpsertComponent inserts or replaces a component row and its FTS entry
// within a transaction.
func (db *DB) UpsertComponent(c ComponentRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Upsert the components table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO components (path, name, type, domain, description, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name        = excluded.name,
			type        = excluded.type,
			domain      = excluded.domain,
			description = excluded.description,
			checksum    = excluded.checksum,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, c.Path, c.Name, c.Type, c.Domain, c.Description, c.Checksum, body, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("search: upsert component: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, c, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteComponent removes a component row and its FTS entry.
func (db *DB) DeleteComponent(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM components WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a component, or empty string if
// it is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM components WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetComponent returns one row by path, or nil when the path is not indexed.
func (db *DB) GetComponent(path string) (*ComponentRow, error) {
	var c ComponentRow
	err := db.conn.QueryRow(`
		SELECT path, name, type, domain, description, checksum, updated_at
		FROM components WHERE path = ?
	`, path).Scan(&c.Path, &c.Name, &c.Type, &c.Domain, &c.Description, &c.Checksum, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search: get component: %w", err)
	}
	return &c, nil
}

// ListComponents returns one page of rows plus the total count matching the
// filters. Empty filter values match everything. sort is "name" (default) or
// "updated" (most recent first).
func (db *DB) ListComponents(limit, offset int, typ, domain, sort string) ([]ComponentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if typ != "" {
		where = append(where, "type = ?")
		args = append(args, typ)
	}
	if domain != "" {
		where = append(where, "domain = ?")
		args = append(args, domain)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM components`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search: count components: %w", err)
	}

	order := "name, path"
	if sort == "updated" {
		order = "updated_at DESC, path"
	}

	rows, err := db.conn.Query(`
		SELECT path, name, type, domain, description, checksum, updated_at
		FROM components`+cond+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search: list components: %w", err)
	}
	defer rows.Close()

	var out []ComponentRow
	for rows.Next() {
		var c ComponentRow
		if err := rows.Scan(&c.Path, &c.Name, &c.Type, &c.Domain, &c.Description, &c.Checksum, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// AllChecksums returns every indexed path mapped to its stored checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM components`)
	if err != nil {
		return nil, fmt.Errorf("search: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
