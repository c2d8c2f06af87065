//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the headlines table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ HeadlineRow) error {
	// Content is already stored in the headlines table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := likePattern(query)
	rows, err := db.conn.Query(`
		SELECT h.document_id, h.headline_id, d.path, h.title, substr(h.content, 1, 200)
		FROM headlines h JOIN documents d ON d.id = h.document_id
		WHERE h.title LIKE ? ESCAPE '\' OR h.content LIKE ? ESCAPE '\' OR h.tags LIKE ? ESCAPE '\'
		ORDER BY d.path, h.headline_id
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocumentID, &r.HeadlineID, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
