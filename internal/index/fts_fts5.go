//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS headlines_fts USING fts5(
			document_id UNINDEXED,
			headline_id UNINDEXED,
			title,
			content,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, r HeadlineRow) error {
	_, err := tx.Exec(`INSERT INTO headlines_fts (document_id, headline_id, title, content, tags) VALUES (?, ?, ?, ?, ?)`,
		r.DocumentID, r.HeadlineID, r.Title, r.Content, strings.Join(r.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, documentID string) {
	_, _ = tx.Exec(`DELETE FROM headlines_fts WHERE document_id = ?`, documentID)
}

// Search performs an FTS5 full-text search and returns matching headlines with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.document_id,
		       f.headline_id,
		       d.path,
		       f.title,
		       snippet(headlines_fts, 3, '<b>', '</b>', '...', 32)
		FROM headlines_fts f JOIN documents d ON d.id = f.document_id
		WHERE headlines_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
