package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/compile"
	"github.com/sells-group/dex-cli/internal/config"
	"github.com/sells-group/dex-cli/internal/export"
	"github.com/sells-group/dex-cli/internal/record"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Group records into evolutionary families",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts, err := compileOptionsFrom(cmd, cfg)
		if err != nil {
			return err
		}

		records, err := record.NewFileStore(cfg.Dex.RecordDir)
		if err != nil {
			return err
		}

		policy := compile.ContinueOnError
		if opts.failFast {
			policy = compile.FailFast
		}
		res, err := compile.NewCompiler(records, policy).Compile(ctx, compile.NewRemaining(cfg.Dex.MaxID))
		if err != nil {
			return err
		}

		if err := compile.WriteGroups(opts.output, res.Groups, opts.format); err != nil {
			return err
		}
		zap.L().Info("groups written", zap.String("path", opts.output), zap.Int("groups", len(res.Groups)))

		if opts.total != "" {
			total, err := compile.Total(ctx, records, cfg.Dex.MaxID)
			if err != nil {
				return err
			}
			if err := compile.WriteTotal(opts.total, total); err != nil {
				return err
			}
		}

		if opts.xlsx != "" {
			if err := export.WriteWorkbook(opts.xlsx, res.Groups); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stderr, "groups=%d rejected=%d unlinked=%d\n",
			len(res.Groups), len(res.Rejections), len(res.Unlinked))
		for _, r := range res.Rejections {
			fmt.Fprintf(os.Stderr, "  rejected %v: %s\n", r.Members, r.Reason)
		}
		return nil
	},
}

type compileOptions struct {
	output   string
	total    string
	xlsx     string
	failFast bool
	format   compile.Format
}

func init() {
	f := compileCmd.Flags()
	f.String("output", "", "merged-group file (default from config)")
	f.String("total", "", "identity-keyed record map file (default from config)")
	f.String("xlsx", "", "also write an XLSX workbook to this path")
	f.String("format", "json", "merged-group file format: json or yaml")
	f.Bool("fail-fast", false, "stop at the first record that fails validation")
	rootCmd.AddCommand(compileCmd)
}

func compileOptionsFrom(cmd *cobra.Command, c *config.Config) (compileOptions, error) {
	f := cmd.Flags()
	opts := compileOptions{
		output:   c.Compile.Output,
		total:    c.Compile.TotalOutput,
		failFast: c.Compile.FailFast,
	}
	if f.Changed("output") {
		opts.output, _ = f.GetString("output")
	}
	if f.Changed("total") {
		opts.total, _ = f.GetString("total")
	}
	if f.Changed("fail-fast") {
		opts.failFast, _ = f.GetBool("fail-fast")
	}
	opts.xlsx, _ = f.GetString("xlsx")

	formatName, _ := f.GetString("format")
	format, err := compile.ParseFormat(formatName)
	if err != nil {
		return opts, err
	}
	opts.format = format

	if opts.output == "" {
		return opts, eris.New("compile: output path is required")
	}
	return opts, nil
}
