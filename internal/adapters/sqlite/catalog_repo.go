package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

// CatalogRepository persists the synchronized title listing. Searches match
// on a folded copy of the name (lowercase, accents stripped), so "los reyes"
// finds "Los Reyés".
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// foldName lowercases and strips combining marks (NFD -> drop Mn -> NFC).
func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(tr, s); err == nil {
		return out
	}
	return s
}

func (r *CatalogRepository) Search(ctx context.Context, query string, limit int) ([]ports.CatalogTitle, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	pattern := "%" + foldName(query) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, manifest_url, subtitle_url
		FROM titles
		WHERE name_folded LIKE ?
		ORDER BY name ASC
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ports.CatalogTitle{}
	for rows.Next() {
		var t ports.CatalogTitle
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.ManifestURL, &t.SubtitleURL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Entries(ctx context.Context, titleID string) ([]domain.TitleEntry, error) {
	var title ports.CatalogTitle
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, manifest_url, subtitle_url
		FROM titles WHERE id = ?
	`, titleID).Scan(&title.ID, &title.Name, &title.Kind, &title.ManifestURL, &title.SubtitleURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	if title.Kind != "series" {
		return []domain.TitleEntry{{
			ID:          title.ID,
			Name:        title.Name,
			Kind:        domain.KindMovie,
			ManifestURL: title.ManifestURL,
			SubtitleURL: title.SubtitleURL,
		}}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, num, manifest_url, subtitle_url
		FROM episodes
		WHERE series_id = ?
		ORDER BY num ASC
	`, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TitleEntry{}
	for rows.Next() {
		e := domain.TitleEntry{Kind: domain.KindEpisode, SeriesID: title.ID, SeriesName: title.Name}
		if err := rows.Scan(&e.ID, &e.Name, &e.Episode, &e.ManifestURL, &e.SubtitleURL); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) UpsertTitle(ctx context.Context, t ports.CatalogTitle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO titles(id, name, name_folded, kind, manifest_url, subtitle_url, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_folded = excluded.name_folded,
			kind = excluded.kind,
			manifest_url = excluded.manifest_url,
			subtitle_url = excluded.subtitle_url,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, foldName(t.Name), t.Kind, t.ManifestURL, t.SubtitleURL,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *CatalogRepository) UpsertEpisode(ctx context.Context, e domain.TitleEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO episodes(id, series_id, name, num, manifest_url, subtitle_url, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			series_id = excluded.series_id,
			name = excluded.name,
			num = excluded.num,
			manifest_url = excluded.manifest_url,
			subtitle_url = excluded.subtitle_url,
			updated_at = excluded.updated_at
	`, e.ID, e.SeriesID, e.Name, e.Episode, e.ManifestURL, e.SubtitleURL,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *CatalogRepository) MaxEpisode(ctx context.Context, seriesID string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(num) FROM episodes WHERE series_id = ?
	`, seriesID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}
