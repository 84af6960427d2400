package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the single automation settings row. The stored JSONB is
// decoded on top of Defaults so fields added after the row was written keep
// their default values.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context) (Settings, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT settings FROM automation_settings WHERE id = 1
	`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	current := Defaults()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			return Settings{}, err
		}
	}
	return current, nil
}

func (r *Repository) Save(ctx context.Context, s Settings) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO automation_settings (id, settings, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()
	`, encoded)
	return err
}
