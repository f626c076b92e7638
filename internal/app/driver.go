package app

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

// maxCandidates bounds how many names an ambiguity report lists.
const maxCandidates = 10

type DriverConfig struct {
	// Destination receives finished artifacts.
	Destination string
	// StagingDir holds per-title staging files; defaults to
	// Destination/.staging.
	StagingDir string
	// OutputFormat is the container extension without the dot.
	OutputFormat string

	Scheduler SchedulerConfig
}

// TitleOutcome is the per-title result of one download run.
type TitleOutcome struct {
	Entry  domain.TitleEntry
	Output string
	Err    error
}

// Driver is the top-level orchestrator: it resolves a query against the
// catalog and runs the fetch→parse→download→assemble→mux pipeline for each
// matched entry in turn.
type Driver struct {
	logger  zerolog.Logger
	catalog ports.CatalogStore
	fetch   Fetcher
	mux     ports.Muxer
	limiter *DynamicLimiter
	cfg     DriverConfig

	// OnProgress, when set, reports per-entry segment completion.
	OnProgress func(entry domain.TitleEntry, done, total int)
}

func NewDriver(logger zerolog.Logger, catalog ports.CatalogStore, fetch Fetcher, mux ports.Muxer, limiter *DynamicLimiter, cfg DriverConfig) *Driver {
	if cfg.Destination == "" {
		cfg.Destination = domain.DefaultSettings().Destination
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(cfg.Destination, ".staging")
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = domain.DefaultSettings().OutputFormat
	}
	return &Driver{logger: logger, catalog: catalog, fetch: fetch, mux: mux, limiter: limiter, cfg: cfg}
}

// Resolve turns a fuzzy query into the list of entries to download. Zero
// matches is NotFoundError; matches spanning more than one distinct title is
// AmbiguousQueryError (multiple episodes of one series are fine). No network
// calls are made here.
func (d *Driver) Resolve(ctx context.Context, query string) ([]domain.TitleEntry, error) {
	query = strings.TrimSpace(query)
	titles, err := d.catalog.Search(ctx, query, maxCandidates+1)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, &domain.NotFoundError{Query: query}
	}
	if len(titles) > 1 {
		names := make([]string, 0, maxCandidates)
		for _, t := range titles {
			if len(names) == maxCandidates {
				break
			}
			names = append(names, t.Name)
		}
		return nil, &domain.AmbiguousQueryError{Query: query, Candidates: names, Truncated: len(titles) > maxCandidates}
	}

	entries, err := d.catalog.Entries(ctx, titles[0].ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &domain.NotFoundError{Query: query}
	}
	return entries, nil
}

// Entries lists the downloadable entries of one catalog title by exact ID,
// bypassing fuzzy resolution.
func (d *Driver) Entries(ctx context.Context, titleID string) ([]domain.TitleEntry, error) {
	return d.catalog.Entries(ctx, titleID)
}

// Run resolves the query and downloads every matched entry sequentially.
// The catalog snapshot taken by Resolve is authoritative for the whole run;
// a concurrent sync is not observed mid-run. A failed title does not stop
// the remaining ones.
func (d *Driver) Run(ctx context.Context, query string) ([]TitleOutcome, error) {
	entries, err := d.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	outcomes := make([]TitleOutcome, 0, len(entries))
	for i, entry := range entries {
		d.logger.Info().Str("title", entry.Name).Msgf("downloading %d of %d", i+1, len(entries))
		out, err := d.DownloadEntry(ctx, entry)
		if err != nil {
			d.logger.Error().Err(err).Str("title", entry.Name).Msg("title failed")
		}
		outcomes = append(outcomes, TitleOutcome{Entry: entry, Output: out, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, nil
}

// DownloadEntry runs the whole pipeline for one entry and returns the final
// artifact path.
func (d *Driver) DownloadEntry(ctx context.Context, entry domain.TitleEntry) (string, error) {
	manifest, err := d.loadManifest(ctx, entry.ManifestURL)
	if err != nil {
		return "", err
	}

	staging := filepath.Join(d.cfg.StagingDir, sanitizeName(entry.ID)+".ts")
	asm, err := NewAssembler(staging, len(manifest.Segments))
	if err != nil {
		return "", err
	}

	// The key cache lives exactly as long as this title's download.
	decryptor := NewDecryptor(d.fetch)
	sched := NewScheduler(d.logger.With().Str("title", entry.Name).Logger(), d.fetch, decryptor, d.limiter, d.cfg.Scheduler)
	if d.OnProgress != nil {
		entry := entry
		sched.OnProgress = func(done, total int) { d.OnProgress(entry, done, total) }
	}

	if err := sched.Run(ctx, manifest, asm.Push); err != nil {
		asm.Abort()
		return "", err
	}
	staged, err := asm.Complete()
	if err != nil {
		asm.Abort()
		return "", err
	}

	output := filepath.Join(d.cfg.Destination, sanitizeName(entry.OutputBase())+"."+d.cfg.OutputFormat)
	if err := d.mux.Mux(ctx, staged, output); err != nil {
		// Keep the staged bytes around for diagnosis; only scheduler-level
		// aborts discard them.
		return "", &domain.MuxError{Output: output, Err: err}
	}
	_ = os.Remove(staged)

	if entry.SubtitleURL != "" {
		if err := d.saveSubtitle(ctx, entry, output); err != nil {
			d.logger.Warn().Err(err).Str("title", entry.Name).Msg("subtitle sidecar failed")
		}
	}
	return output, nil
}

// loadManifest fetches and parses the playlist, following one level of
// master→variant indirection with the highest-bandwidth policy.
func (d *Driver) loadManifest(ctx context.Context, manifestURL string) (*domain.Manifest, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &domain.ParseError{Reason: "bad manifest url", Err: err}
	}

	raw, err := d.fetch.Fetch(ctx, manifestURL, domain.ByteRange{})
	if err != nil {
		return nil, err
	}
	parsed, err := ParseManifest(raw, base)
	if err != nil {
		return nil, err
	}
	if parsed.Media != nil {
		return parsed.Media, nil
	}

	variant, err := PickVariant(parsed.Master)
	if err != nil {
		return nil, err
	}
	variantBase, err := url.Parse(variant.URI)
	if err != nil {
		return nil, &domain.ParseError{Reason: "bad variant url", Err: err}
	}
	raw, err = d.fetch.Fetch(ctx, variant.URI, domain.ByteRange{})
	if err != nil {
		return nil, err
	}
	parsed, err = ParseManifest(raw, variantBase)
	if err != nil {
		return nil, err
	}
	if parsed.Media == nil {
		return nil, &domain.ParseError{Reason: "variant resolved to another master playlist"}
	}
	return parsed.Media, nil
}

func (d *Driver) saveSubtitle(ctx context.Context, entry domain.TitleEntry, output string) error {
	data, err := d.fetch.Fetch(ctx, entry.SubtitleURL, domain.ByteRange{})
	if err != nil {
		return err
	}
	path := strings.TrimSuffix(output, filepath.Ext(output)) + ".srt"
	return os.WriteFile(path, data, 0o644)
}

// Summarize folds per-title outcomes into a single error suitable for an
// exit status: nil only when every title succeeded.
func Summarize(outcomes []TitleOutcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d titles failed", failed, len(outcomes))
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = "untitled"
	}
	return out
}
