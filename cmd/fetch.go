package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download corpus sources listed in the manifest",
	Long: `Read the source manifest (sources.yaml by default) and download
each listed source into the corpus directory. Text sources land as
single files; ZIP archives are expanded. Sources already present are
skipped, so a re-run only fills gaps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "fetch"))

		m, err := fetcher.LoadManifest(cfg.Fetch.Manifest)
		if err != nil {
			return eris.Wrap(err, "fetch: load manifest")
		}

		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.Fetch.UserAgent,
			Timeout:           timeout,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		})
		ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})

		log.Info("starting corpus fetch",
			zap.String("manifest", cfg.Fetch.Manifest),
			zap.Int("sources", len(m.Sources)),
		)

		stats, err := fetcher.NewSyncer(httpF, ftpF).Sync(ctx, m, cfg.Corpus.Dir)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		fmt.Printf("Fetch complete: %d sources downloaded (%d files), %d already present\n",
			stats.Downloaded, stats.Files, stats.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
