// Command songetl builds the song-play star schema from a song catalog and a
// user event log.
//
//	songetl <input-location> <output-location>
//
// Locations are local directories or s3://bucket/prefix URLs; the output may
// also be a postgres:// DSN or a SQLite file. Everything else comes from
// songetl.yaml (or $SONGETL_CONFIG) and SONGETL_* environment variables.
package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"songetl/internal/config"
	"songetl/internal/logging"

	// register all backends with the storage factory.
	_ "songetl/internal/storage/all"
)

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("songetl failed")
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "songetl <input-location> <output-location>",
		Short: "Build songs, artists, users, time and songplays tables from raw JSON records",
		Long: `songetl reads <input>/song_data and <input>/log_data, normalizes them into
four dimension tables and one fact table, and writes each table under
<output>/<table>/ as partitioned Parquet (or into a postgres/sqlite database).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			cfg.ApplyArgs(args[0], args[1])

			logging.Init(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Caller: cfg.Log.Caller,
				Output: stderr,
			})

			issues := cfg.Validate()
			for _, iss := range issues {
				ev := log.Warn()
				if iss.Severity == config.SeverityError {
					ev = log.Error()
				}
				ev.Str("path", iss.Path).Msg(iss.Message)
			}
			if err := config.Err(issues); err != nil {
				return err
			}

			flush, err := setupMetrics(cfg.Metrics)
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runID := newRunID()
			logging.WithRunID(runID)
			_, err = runPipeline(ctx, cfg, runID)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}
