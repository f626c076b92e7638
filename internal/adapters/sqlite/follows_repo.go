package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

type FollowsRepository struct {
	db *sql.DB
}

func NewFollowsRepository(db *sql.DB) *FollowsRepository {
	return &FollowsRepository{db: db}
}

const followColumns = `id, series_id, label, last_scheduled_episode, last_downloaded_episode, last_available_episode, next_check_at, last_checked_at, created_at, updated_at`

func scanFollow(row rowScanner) (domain.Follow, error) {
	var f domain.Follow
	var nextCheckAt, lastCheckedAt, createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.SeriesID, &f.Label,
		&f.LastScheduledEpisode, &f.LastDownloadedEpisode, &f.LastAvailableEpisode,
		&nextCheckAt, &lastCheckedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Follow{}, err
	}
	f.NextCheckAt = parseTimeLoose(nextCheckAt)
	f.LastCheckedAt = parseTimeLoose(lastCheckedAt)
	f.CreatedAt = parseTimeLoose(createdAt)
	f.UpdatedAt = parseTimeLoose(updatedAt)
	return f, nil
}

func parseTimeLoose(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (r *FollowsRepository) Create(ctx context.Context, f domain.Follow) (domain.Follow, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO follows(`+followColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.SeriesID, f.Label,
		f.LastScheduledEpisode, f.LastDownloadedEpisode, f.LastAvailableEpisode,
		formatTime(f.NextCheckAt), formatTime(f.LastCheckedAt),
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.Follow{}, ports.ErrConflict
		}
		return domain.Follow{}, err
	}
	return r.Get(ctx, f.ID)
}

func (r *FollowsRepository) Get(ctx context.Context, id string) (domain.Follow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+followColumns+` FROM follows WHERE id = ?`, id)
	f, err := scanFollow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Follow{}, ports.ErrNotFound
		}
		return domain.Follow{}, err
	}
	return f, nil
}

func (r *FollowsRepository) List(ctx context.Context, limit int) ([]domain.Follow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+followColumns+` FROM follows ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollows(rows)
}

func (r *FollowsRepository) Update(ctx context.Context, f domain.Follow) (domain.Follow, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE follows SET label = ?, last_scheduled_episode = ?, last_downloaded_episode = ?,
			last_available_episode = ?, next_check_at = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, f.Label, f.LastScheduledEpisode, f.LastDownloadedEpisode, f.LastAvailableEpisode,
		formatTime(f.NextCheckAt), formatTime(f.LastCheckedAt), nowRFC3339(), f.ID)
	if err != nil {
		return domain.Follow{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Follow{}, ports.ErrNotFound
	}
	return r.Get(ctx, f.ID)
}

func (r *FollowsRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *FollowsRepository) Due(ctx context.Context, now time.Time, limit int) ([]domain.Follow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+followColumns+` FROM follows
		WHERE next_check_at <= ? ORDER BY next_check_at ASC LIMIT ?
	`, formatTime(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollows(rows)
}

func (r *FollowsRepository) MarkDownloadedEpisodeMax(ctx context.Context, id string, episode int) (domain.Follow, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE follows SET last_downloaded_episode = MAX(last_downloaded_episode, ?), updated_at = ?
		WHERE id = ?
	`, episode, nowRFC3339(), id)
	if err != nil {
		return domain.Follow{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Follow{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}

func collectFollows(rows *sql.Rows) ([]domain.Follow, error) {
	out := []domain.Follow{}
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
