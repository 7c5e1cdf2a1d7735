package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepo reads and writes the key/value settings table.
type SettingsRepo struct{ DB *pgxpool.Pool }

func (r *SettingsRepo) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *SettingsRepo) Put(ctx context.Context, key, value string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}
