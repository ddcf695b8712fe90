package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/bootstrap"
	"github.com/jmerrifield20/vendorguard/internal/export"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

type analyzeOptions struct {
	format         string
	outDir         string
	concurrency    int
	timeout        time.Duration
	failOnFallback bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <vendor> [vendor] ...",
		Short: "Analyse one or more vendors",
		Long: `analyze asks the model for a risk assessment of each vendor and prints
the normalised report.

  vendorguard analyze "Acme Corp"
  vendorguard analyze --format yaml --out reports/ "Acme Corp" "Initech"

Several vendors are analysed concurrently (see --concurrency) and printed
in input order. A model failure still yields a FLAG_FOR_REVIEW report with
its error recorded; use --fail-on-fallback to exit non-zero in that case.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Also save each report as an export file in this directory")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 2, "Maximum analyses in flight")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout for --server (0 uses the client default)")
	cmd.Flags().BoolVar(&opts.failOnFallback, "fail-on-fallback", false, "Exit non-zero if any report is a fallback")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	out, err := parseOutput(opts.format)
	if err != nil {
		return err
	}
	if opts.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	// Validate all vendors up-front.
	vendors := make([]string, len(args))
	for i, a := range args {
		v, err := analysis.NormalizeVendor(a)
		if err != nil {
			return fmt.Errorf("vendor %d: %w", i+1, err)
		}
		vendors[i] = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var analyze func(ctx context.Context, vendor string) (risk.Report, error)
	if serverURL != "" {
		c, err := newClient(opts.timeout)
		if err != nil {
			return err
		}
		analyze = func(ctx context.Context, vendor string) (risk.Report, error) {
			r, err := c.Analyze(ctx, vendor)
			if err != nil {
				return risk.Report{}, err
			}
			return *r, nil
		}
	} else {
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}
		app, err := bootstrap.Build(ctx, cfg, analysis.Hooks{}, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		analyze = func(ctx context.Context, vendor string) (risk.Report, error) {
			return app.Service.Run(ctx, vendor), nil
		}
	}

	// Results are slotted by index so output keeps input order.
	reports := make([]risk.Report, len(vendors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, vendor := range vendors {
		g.Go(func() error {
			r, err := analyze(gctx, vendor)
			if err != nil {
				return fmt.Errorf("analyze %q: %w", vendor, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := out.reports(cmd.OutOrStdout(), reports); err != nil {
		return err
	}

	if opts.outDir != "" {
		format := export.FormatJSON
		if out == outputYAML {
			format = export.FormatYAML
		}
		for _, r := range reports {
			path, err := saveReport(opts.outDir, r, format, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", path)
		}
	}

	if opts.failOnFallback {
		for _, r := range reports {
			if r.IsFallback() {
				return fmt.Errorf("analysis of %q fell back: %s", r.VendorName, r.Error)
			}
		}
	}
	return nil
}

// saveReport writes r to dir under its export file name.
func saveReport(dir string, r risk.Report, f export.Format, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, export.FileName(r, f, now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.Write(file, r, f); err != nil {
		file.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
