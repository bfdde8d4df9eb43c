// Package postgres stores documents in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cgillinger/facebook-stats/internal/storage"
)

// DocumentRepo implements storage.Backend on the fbstats_documents table.
type DocumentRepo struct{ db *sql.DB }

// NewDocumentRepo creates a Postgres-backed document store. Run Migrate
// first.
func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

var _ storage.Backend = (*DocumentRepo)(nil)

func (r *DocumentRepo) Save(ctx context.Context, category, key string, v interface{}) error {
	if err := storage.CheckKey(category, key); err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", category, key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO fbstats_documents (category, doc_key, body, size_bytes, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (category, doc_key)
		DO UPDATE SET body = EXCLUDED.body, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()
	`, category, key, body, len(body))
	if err != nil {
		return fmt.Errorf("save document %s/%s: %w", category, key, err)
	}
	return nil
}

func (r *DocumentRepo) Load(ctx context.Context, category, key string, target interface{}) error {
	if err := storage.CheckKey(category, key); err != nil {
		return err
	}
	var body []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT body FROM fbstats_documents WHERE category = $1 AND doc_key = $2
	`, category, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document %s/%s: %w", category, key, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", category, key, err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, category, key string) error {
	if err := storage.CheckKey(category, key); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM fbstats_documents WHERE category = $1 AND doc_key = $2
	`, category, key)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", category, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", category, key, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) List(ctx context.Context, category string) ([]storage.DocumentInfo, error) {
	if err := storage.CheckKey(category, "x"); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc_key, size_bytes, updated_at
		FROM fbstats_documents
		WHERE category = $1
		ORDER BY doc_key
	`, category)
	if err != nil {
		return nil, fmt.Errorf("list documents %s: %w", category, err)
	}
	defer rows.Close()

	out := []storage.DocumentInfo{}
	for rows.Next() {
		info := storage.DocumentInfo{Category: category}
		var updated time.Time
		if err := rows.Scan(&info.Key, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		info.UpdatedAt = updated.UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) Stats(ctx context.Context) (*storage.Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM fbstats_documents
		GROUP BY category
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}
	defer rows.Close()

	stats := storage.NewStats("postgres")
	for rows.Next() {
		var (
			category string
			count    int
			bytes    int64
		)
		if err := rows.Scan(&category, &count, &bytes); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Categories[category] = storage.CategoryStats{Documents: count, Bytes: bytes}
		stats.Documents += count
		stats.Bytes += bytes
	}
	return stats, rows.Err()
}
