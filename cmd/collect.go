package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/collect"
	"github.com/sells-group/dex-cli/internal/config"
	"github.com/sells-group/dex-cli/internal/fetcher"
	"github.com/sells-group/dex-cli/internal/model"
	"github.com/sells-group/dex-cli/internal/pipeline"
	"github.com/sells-group/dex-cli/internal/record"
	"github.com/sells-group/dex-cli/internal/store"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Scrape and merge records for every dex number",
	Long:  "Walks dex numbers 1..max-id, fetching only the field groups each record is missing (plus always-refresh groups), and appends one entry per identity to the run log.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyCollectFlags(cmd, cfg); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if resume, _ := cmd.Flags().GetBool("resume"); resume {
			from, err := st.ResumePoint(ctx)
			if err != nil {
				return eris.Wrap(err, "resume point")
			}
			cfg.Dex.SkipTo = from
			zap.L().Info("resuming collection", zap.Int("skip_to", from))
		}

		summary, status, err := runCollect(ctx, cfg, st)
		if summary.Processed > 0 {
			fmt.Fprintf(os.Stderr, "%s: processed=%d success=%d warning=%d failure=%d no_update=%d written=%d\n",
				status, summary.Processed, summary.Success, summary.Warning, summary.Failure, summary.NoUpdate, summary.Written)
		}
		return err
	},
}

func init() {
	f := collectCmd.Flags()
	f.Int("skip-to", 0, "report identities below this number as NO_UPDATE without fetching")
	f.Bool("force-update", false, "refetch every field group regardless of presence")
	f.Bool("force-rewrite", false, "write records even when nothing changed")
	f.Bool("resume", false, "start after the last identity recorded by an interrupted run")
	f.Int("max-id", 0, "highest dex number to process (default from config)")
	rootCmd.AddCommand(collectCmd)
}

// applyCollectFlags overlays explicitly set flags on the loaded config.
func applyCollectFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("skip-to") {
		c.Dex.SkipTo, _ = f.GetInt("skip-to")
	}
	if f.Changed("max-id") {
		c.Dex.MaxID, _ = f.GetInt("max-id")
	}
	if f.Changed("force-update") {
		c.Dex.ForceUpdate, _ = f.GetBool("force-update")
	}
	if f.Changed("force-rewrite") {
		c.Dex.ForceRewrite, _ = f.GetBool("force-rewrite")
	}
	return c.Validate()
}

// runCollect wires the pipeline and drives one run, recording it in st.
func runCollect(ctx context.Context, c *config.Config, st store.Store) (model.RunSummary, model.RunStatus, error) {
	policy, err := c.Policy()
	if err != nil {
		return model.RunSummary{}, "", err
	}

	records, err := record.NewFileStore(c.Dex.RecordDir)
	if err != nil {
		return model.RunSummary{}, "", err
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Sources.UserAgent,
		Timeout:    c.Sources.Timeout(),
		MaxRetries: c.Sources.MaxRetries,
		RatePerSec: c.Sources.RatePerSec,
	})
	source := collect.NewPageSource(httpFetcher, st, c.Sources.CacheTTL())
	collector := collect.NewCollector(source, collect.URLs{
		DexBase:     c.Sources.DexBaseURL,
		WikiBase:    c.Sources.WikiBaseURL,
		ArtworkBase: c.Sources.ArtworkBaseURL,
	}, c.Dex.ArtDir)
	processor := pipeline.NewProcessor(records, collector, policy, c.Dex.ForceRewrite)

	runLog, err := pipeline.OpenRunLog(c.Dex.RunLog)
	if err != nil {
		return model.RunSummary{}, "", err
	}
	defer runLog.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, c.RunOptions())
	if err != nil {
		return model.RunSummary{}, "", eris.Wrap(err, "create run")
	}
	zap.L().Info("collection started",
		zap.String("run_id", run.ID),
		zap.Int("max_id", c.Dex.MaxID),
		zap.Int("skip_to", c.Dex.SkipTo),
	)

	driver := pipeline.NewDriver(processor, runLog, st, pipeline.DriverOptions{
		MaxID:  c.Dex.MaxID,
		SkipTo: c.Dex.SkipTo,
		RunID:  run.ID,
	})
	summary, runErr := driver.Run(ctx)

	status := model.RunStatusComplete
	if runErr != nil || ctx.Err() != nil {
		status = model.RunStatusInterrupted
	}
	if err := st.CompleteRun(context.WithoutCancel(ctx), run.ID, status, summary); err != nil {
		zap.L().Error("failed to finalize run", zap.String("run_id", run.ID), zap.Error(err))
	}

	if runErr != nil && ctx.Err() == nil {
		return summary, status, eris.Wrap(runErr, "collect")
	}
	return summary, status, nil
}
