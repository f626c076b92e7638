package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"vodfetch/internal/domain"
)

const settingsKey = "settings"

// SettingsRepository stores the daemon settings as a single JSON row so new
// fields never need a schema migration.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings, or defaults when nothing was saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}
	s := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

func (r *SettingsRepository) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return domain.Settings{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings(key, value_json, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`, settingsKey, raw, nowRFC3339())
	if err != nil {
		return domain.Settings{}, err
	}
	return r.Get(ctx)
}
