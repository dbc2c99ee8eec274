//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS components_fts USING fts5(
			path UNINDEXED,
			type UNINDEXED,
			domain UNINDEXED,
			name,
			description,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, c ComponentRow, body string) error {
	_, _ = tx.Exec(`DELETE FROM components_fts WHERE path = ?`, c.Path)
	_, err := tx.Exec(`INSERT INTO components_fts (path, type, domain, name, description, body) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Path, c.Type, c.Domain, c.Name, c.Description, body)
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM components_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns matching results with
// snippets, best match first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       name,
		       type,
		       domain,
		       snippet(components_fts, 5, '<b>', '</b>', '...', 64)
		FROM components_fts
		WHERE components_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Type, &r.Domain, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
