package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
)

// SQLiteRepository stores each record as a JSON document; seq keeps insertion order.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path and prepares the schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS webinars (id TEXT PRIMARY KEY, seq INTEGER NOT NULL, data TEXT NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS idx_webinars_seq ON webinars (seq);`,
	}
	for _, q := range stmts {
		if _, err := r.db.Exec(q); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Webinar, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM webinars ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webinars: %w", err)
	}
	defer rows.Close()

	var list []models.Webinar
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var w models.Webinar
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			return nil, fmt.Errorf("decode webinar: %w", err)
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Webinar, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM webinars WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webinar %s: %w", id, err)
	}
	var w models.Webinar
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("decode webinar: %w", err)
	}
	return &w, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, w *models.Webinar) error {
	if w == nil || w.ID == "" {
		return &errs.ValidationError{Fields: []string{"id"}}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode webinar: %w", err)
	}
	const q = `INSERT INTO webinars (id, seq, data)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM webinars), ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`
	if _, err := r.db.ExecContext(ctx, q, w.ID, string(data)); err != nil {
		return fmt.Errorf("put webinar %s: %w", w.ID, err)
	}
	return nil
}
