package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
)

const webinarColumns = `id, name, description, schedule_date, schedule_time, period, cta_label, tags, cta_type, product, thumbnail,
	stream_call_id, stream_token, host_id, created_at`

// PostgresRepository stores records in the webinars table (see pkg/database/migrations).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed registry.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Webinar, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+webinarColumns+` FROM webinars ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webinars: %w", err)
	}
	defer rows.Close()

	var list []models.Webinar
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Webinar, error) {
	w, err := scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webinar %s: %w", id, err)
	}
	return w, nil
}

func (r *PostgresRepository) Put(ctx context.Context, w *models.Webinar) error {
	if w == nil || w.ID == "" {
		return &errs.ValidationError{Fields: []string{"id"}}
	}
	const q = `INSERT INTO webinars (` + webinarColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, schedule_date = EXCLUDED.schedule_date,
			schedule_time = EXCLUDED.schedule_time, period = EXCLUDED.period, cta_label = EXCLUDED.cta_label,
			tags = EXCLUDED.tags, cta_type = EXCLUDED.cta_type, product = EXCLUDED.product,
			thumbnail = EXCLUDED.thumbnail, stream_call_id = EXCLUDED.stream_call_id,
			stream_token = EXCLUDED.stream_token, host_id = EXCLUDED.host_id,
			created_at = EXCLUDED.created_at`
	_, err := r.pool.Exec(ctx, q, w.ID, w.Name, w.Description, w.Date, w.Time, string(w.Period),
		w.CTALabel, w.Tags, string(w.CTAType), w.Product, w.Thumbnail,
		w.StreamCallID, w.StreamToken, w.HostID, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("put webinar %s: %w", w.ID, err)
	}
	return nil
}

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	var period, ctaType string
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Date, &w.Time, &period, &w.CTALabel, &w.Tags,
		&ctaType, &w.Product, &w.Thumbnail, &w.StreamCallID, &w.StreamToken, &w.HostID, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Period = models.Period(period)
	w.CTAType = models.CTAType(ctaType)
	return &w, nil
}
