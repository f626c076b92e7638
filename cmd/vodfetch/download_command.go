package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vodfetch/internal/adapters/ffmpeg"
	"vodfetch/internal/adapters/sqlite"
	"vodfetch/internal/app"
	"vodfetch/internal/domain"
)

var errDownloadFailed = errors.New("download failed")

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		destination string
		format      string
		concurrency int
		attempts    int
		episode     int
	)

	cmd := &cobra.Command{
		Use:   "download <query>",
		Short: "Download a movie or series by fuzzy title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if destination == "" {
				destination = cfg.Download.Destination
			}
			if format == "" {
				format = cfg.Download.OutputFormat
			}
			if concurrency <= 0 {
				concurrency = cfg.Download.MaxConcurrentSegments
			}
			if attempts <= 0 {
				attempts = cfg.Download.MaxAttemptsPerSegment
			}

			db, err := ctx.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			schedCfg := app.DefaultSchedulerConfig()
			schedCfg.Concurrency = concurrency
			schedCfg.MaxAttempts = attempts

			driver := app.NewDriver(
				ctx.log(),
				sqlite.NewCatalogRepository(db.SQL),
				app.NewSegmentFetcher(nil, cfg.SegmentTimeout()),
				ffmpeg.NewMuxer().WithBinary(cfg.Download.FFmpegPath),
				nil,
				app.DriverConfig{
					Destination:  destination,
					StagingDir:   cfg.Download.StagingDir,
					OutputFormat: format,
					Scheduler:    schedCfg,
				},
			)
			driver.OnProgress = func(entry domain.TitleEntry, done, total int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %d/%d segments", entry.OutputBase(), done, total)
				if done == total {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
			}

			entries, err := driver.Resolve(cmd.Context(), query)
			if err != nil {
				var ambiguous *domain.AmbiguousQueryError
				if errors.As(err, &ambiguous) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%q matches several titles:\n", query)
					for _, name := range ambiguous.Candidates {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", name)
					}
					if ambiguous.Truncated {
						fmt.Fprintln(cmd.ErrOrStderr(), "  ...")
					}
				}
				return err
			}
			if episode > 0 {
				entries = filterByEpisode(entries, episode)
				if len(entries) == 0 {
					return &domain.NotFoundError{Query: fmt.Sprintf("%s episode %d", query, episode)}
				}
			}

			failed := 0
			for _, entry := range entries {
				output, err := driver.DownloadEntry(cmd.Context(), entry)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", entry.OutputBase(), err)
					failed++
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d titles", errDownloadFailed, failed, len(entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "dest", "d", "", "Destination directory")
	cmd.Flags().StringVar(&format, "format", "", "Output container format (mp4, mkv, ...)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent segment fetches")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Max attempts per segment")
	cmd.Flags().IntVarP(&episode, "episode", "e", 0, "Only this episode number")
	return cmd
}

func filterByEpisode(entries []domain.TitleEntry, episode int) []domain.TitleEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Episode == episode {
			out = append(out, e)
		}
	}
	return out
}
