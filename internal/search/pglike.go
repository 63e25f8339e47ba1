package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PGLike implements Searcher using a Postgres ILIKE scan as a fallback. It
// satisfies the list-filter contract (case-insensitive substring over title,
// company, or notes) without typo tolerance or highlighting.
type PGLike struct {
	db *sql.DB
}

// NewPGLike creates a Postgres fallback searcher.
func NewPGLike(db *sql.DB) *PGLike {
	return &PGLike{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PGLike) Healthy() bool {
	return true
}

func (p *PGLike) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + escapeLike(q.Text) + "%"

	var total int
	err := p.db.QueryRow(`
		SELECT COUNT(*) FROM applications
		WHERE user_id = $1 AND (form_title ILIKE $2 OR company ILIKE $2 OR notes ILIKE $2)
	`, q.OwnerID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	rows, err := p.db.Query(`
		SELECT id, form_title, company, category, status, LEFT(notes, 160)
		FROM applications
		WHERE user_id = $1 AND (form_title ILIKE $2 OR company ILIKE $2 OR notes ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, q.OwnerID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search applications: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.FormTitle, &r.Company, &r.Category, &r.Status, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
