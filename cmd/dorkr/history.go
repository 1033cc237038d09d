package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/dorkr/internal/config"
	"github.com/FranksOps/dorkr/internal/storage"
	"github.com/FranksOps/dorkr/internal/storage/archive"
	"github.com/FranksOps/dorkr/internal/storage/csvbackend"
)

func newHistoryCmd(stdout, _ io.Writer) *cobra.Command {
	// Filters come from flags only; a DORKR_DORK meant for run must not narrow
	// the history. The archive location is shared with run.
	v := viper.New()
	_ = v.BindEnv(config.KeyArchive, "DORKR_ARCHIVE")

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Print archived results as CSV, newest first",
		Example:       `  dorkr history --archive sqlite:dorkr.db --dork 'inurl:admin' --since 24h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := v.GetString(config.KeyArchive)
			if dsn == "" {
				return fmt.Errorf("--archive is required")
			}

			filter := storage.Filter{
				Dork:   v.GetString(config.KeyDork),
				RunID:  v.GetString("run-id"),
				Limit:  v.GetInt("limit"),
				Offset: v.GetInt("offset"),
			}
			if since := v.GetDuration("since"); since > 0 {
				ts := time.Now().Add(-since)
				filter.Since = &ts
			}

			arch, err := archive.Open(cmd.Context(), dsn)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer arch.Close()

			records, err := arch.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query archive: %w", err)
			}
			return csvbackend.WriteRecords(stdout, records)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyArchive, "", "Archive to read (sqlite:<path>, jsonl:<path> or postgres://...)")
	f.String(config.KeyDork, "", "Only results for this exact dork")
	f.String("run-id", "", "Only results from this run")
	f.Duration("since", 0, "Only results scraped within this long ago (e.g. 24h)")
	f.Int("limit", 100, "Maximum rows to print (0 for all)")
	f.Int("offset", 0, "Rows to skip")

	bindFlags(cmd, v)
	return cmd
}
