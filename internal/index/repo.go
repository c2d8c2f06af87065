package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/todo"
)

// HeadlineRow is one headline as stored in the headlines table.
type HeadlineRow struct {
	DocumentID string
	HeadlineID string
	Level      int
	Title      string
	Todo       string
	Priority   string
	Tags       []string
	Category   string
	Content    string
	ETag       string
}

// SearchResult represents one search hit.
type SearchResult struct {
	DocumentID string `json:"document_id"`
	HeadlineID string `json:"headline_id"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

func rowsFor(doc *models.Document) []HeadlineRow {
	var out []HeadlineRow
	doc.Walk(func(h *models.Headline) bool {
		out = append(out, HeadlineRow{
			DocumentID: doc.ID,
			HeadlineID: h.ID.String(),
			Level:      h.Level,
			Title:      h.Title.Raw,
			Todo:       h.Title.TodoKeyword,
			Priority:   h.Title.Priority,
			Tags:       h.Title.Tags,
			Category:   todo.EffectiveCategory(doc, h),
			Content:    h.Content,
			ETag:       h.ETag,
		})
		return true
	})
	return out
}

// ReplaceDocument stores doc and replaces all of its headline rows within a
// transaction.
func (db *DB) ReplaceDocument(doc *models.Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fileTags, _ := json.Marshal(nonNil(doc.FileTags))
	_, err = tx.Exec(`
		INSERT INTO documents (id, path, title, etag, file_tags, category, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path      = excluded.path,
			title     = excluded.title,
			etag      = excluded.etag,
			file_tags = excluded.file_tags,
			category  = excluded.category,
			parsed_at = excluded.parsed_at
	`, doc.ID, doc.Path, doc.Title, doc.ETag, string(fileTags), doc.Category, doc.ParsedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM headlines WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("index: clear headlines: %w", err)
	}
	ftsDelete(tx, doc.ID)

	rows := rowsFor(doc)
	if len(rows) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO headlines (document_id, headline_id, level, title, todo, priority, tags, category, content, etag)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare headline insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			tags, _ := json.Marshal(nonNil(r.Tags))
			if _, err := stmt.Exec(r.DocumentID, r.HeadlineID, r.Level, r.Title, r.Todo, r.Priority,
				string(tags), r.Category, r.Content, r.ETag); err != nil {
				return fmt.Errorf("index: insert headline %s: %w", r.HeadlineID, err)
			}
			if err := ftsInsert(tx, r); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its headlines and their FTS entries.
func (db *DB) DeleteDocument(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM headlines WHERE document_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE id = ?`, id)

	return tx.Commit()
}

// DocumentETag returns the stored fingerprint of a document, or empty string if not found.
func (db *DB) DocumentETag(id string) (string, error) {
	var etag string
	err := db.conn.QueryRow(`SELECT etag FROM documents WHERE id = ?`, id).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: document etag: %w", err)
	}
	return etag, nil
}

// DocumentIDs returns every indexed document id.
func (db *DB) DocumentIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: document ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// HeadlinesWithTodo returns the indexed headlines carrying keyword.
func (db *DB) HeadlinesWithTodo(keyword string) ([]HeadlineRow, error) {
	rows, err := db.conn.Query(`
		SELECT document_id, headline_id, level, title, todo, priority, tags, category, content, etag
		FROM headlines WHERE todo = ?
		ORDER BY document_id, headline_id`, keyword)
	if err != nil {
		return nil, fmt.Errorf("index: headlines with todo: %w", err)
	}
	defer rows.Close()

	var out []HeadlineRow
	for rows.Next() {
		var r HeadlineRow
		var tags string
		if err := rows.Scan(&r.DocumentID, &r.HeadlineID, &r.Level, &r.Title, &r.Todo, &r.Priority,
			&tags, &r.Category, &r.Content, &r.ETag); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &r.Tags)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes every indexed document whose id is not in keep and returns
// how many were removed. It drops rows left over from a previous run.
func (db *DB) Prune(keep map[string]struct{}) (int, error) {
	ids, err := db.DocumentIDs()
	if err != nil {
		return 0, err
	}
	n := 0
	for id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := db.DeleteDocument(id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
