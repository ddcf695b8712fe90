package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/vendorguard/internal/bootstrap"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// ── history ──────────────────────────────────────────────────────────────────

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent reports held by a vendorguard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := parseOutput(format)
			if err != nil {
				return err
			}
			if err := requireServer("history"); err != nil {
				return err
			}
			c, err := newClient(0)
			if err != nil {
				return err
			}
			reports, err := c.ListReports(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}
			if out == outputText {
				if len(reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no reports yet")
					return nil
				}
				return printReportTable(cmd.OutOrStdout(), reports)
			}
			if reports == nil {
				reports = []risk.Report{}
			}
			return out.encode(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum reports to list, newest first")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

// ── stats ────────────────────────────────────────────────────────────────────

func newStatsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show approved/flagged/rejected counts from a vendorguard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := parseOutput(format)
			if err != nil {
				return err
			}
			if err := requireServer("stats"); err != nil {
				return err
			}
			c, err := newClient(0)
			if err != nil {
				return err
			}
			s, err := c.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return out.stats(cmd.OutOrStdout(), *s)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

// ── audit ────────────────────────────────────────────────────────────────────

func newAuditCmd() *cobra.Command {
	var (
		limit  int
		verify bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List or verify the audit log",
		Long: `audit reads the configured audit log (file or postgres) directly, or the
server's log with --server. --verify walks the hash chain and fails if any
record was altered, removed or reordered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := parseOutput(format)
			if err != nil {
				return err
			}
			if serverURL != "" {
				return auditRemote(cmd, out, limit, verify)
			}
			return auditLocal(cmd, out, limit, verify)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to list, newest first")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the hash chain instead of listing")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

func auditRemote(cmd *cobra.Command, out output, limit int, verify bool) error {
	c, err := newClient(0)
	if err != nil {
		return err
	}
	if verify {
		v, err := c.VerifyAudit(cmd.Context())
		if err != nil {
			return fmt.Errorf("verify audit log: %w", err)
		}
		if !v.Valid {
			return fmt.Errorf("audit log is invalid: %s", v.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "audit log OK (%d records)\n", v.Records)
		return nil
	}
	records, err := c.AuditRecords(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list audit records: %w", err)
	}
	return out.records(cmd.OutOrStdout(), records)
}

func auditLocal(cmd *cobra.Command, out output, limit int, verify bool) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	audit, pool, err := bootstrap.OpenAudit(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	if verify {
		if err := audit.Verify(ctx); err != nil {
			return fmt.Errorf("audit log is invalid: %w", err)
		}
		n, err := audit.Len(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "audit log OK (%d records)\n", n)
		return nil
	}
	records, err := audit.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list audit records: %w", err)
	}
	return out.records(cmd.OutOrStdout(), records)
}

// ── policy ───────────────────────────────────────────────────────────────────

func newPolicyCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the active scoring policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := parseOutput(format)
			if err != nil {
				return err
			}
			view, err := policyView(cmd.Context())
			if err != nil {
				return err
			}
			return out.policy(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

func policyView(ctx context.Context) (risk.PolicyView, error) {
	if serverURL != "" {
		c, err := newClient(0)
		if err != nil {
			return risk.PolicyView{}, err
		}
		v, err := c.Policy(ctx)
		if err != nil {
			return risk.PolicyView{}, fmt.Errorf("policy: %w", err)
		}
		return *v, nil
	}

	cfg, err := loadConfig(newLogger())
	if err != nil {
		return risk.PolicyView{}, err
	}
	p, err := cfg.Scoring.Build()
	if err != nil {
		return risk.PolicyView{}, err
	}
	return p.View(), nil
}
