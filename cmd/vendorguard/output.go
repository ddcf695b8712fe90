package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/history"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

type output string

const (
	outputText output = "text"
	outputJSON output = "json"
	outputYAML output = "yaml"
)

func parseOutput(s string) (output, error) {
	switch o := output(strings.ToLower(s)); o {
	case outputText, outputJSON, outputYAML:
		return o, nil
	case "yml":
		return outputYAML, nil
	default:
		return "", fmt.Errorf("unknown --format %q (want text, json or yaml)", s)
	}
}

// encode writes v as JSON or YAML. Single-element slices are unwrapped by
// the callers for convenience, as with a single vendor.
func (o output) encode(w io.Writer, v any) error {
	switch o {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// ── reports ──────────────────────────────────────────────────────────────────

func (o output) reports(w io.Writer, reports []risk.Report) error {
	if o != outputText {
		var v any = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		return o.encode(w, v)
	}
	if len(reports) == 1 {
		return printReport(w, reports[0])
	}
	return printReportTable(w, reports)
}

func printReport(w io.Writer, r risk.Report) error {
	fmt.Fprintf(w, "Vendor:          %s\n", r.VendorName)
	fmt.Fprintf(w, "Analysis ID:     %s\n", r.ID)
	fmt.Fprintf(w, "Analysis date:   %s\n", r.AnalysisDate)
	fmt.Fprintf(w, "Aggregate score: %.1f (%s, %s policy)\n", r.AggregateScore, risk.RiskLabel(r.AggregateScore), r.ScoringPolicy)
	fmt.Fprintf(w, "Recommendation:  %s\n", r.Recommendation)
	if r.RecommendationReason != "" {
		fmt.Fprintf(w, "                 %s\n", r.RecommendationReason)
	}
	fmt.Fprintf(w, "Confidence:      %s\n", r.ConfidenceLevel)
	if r.ConfidenceReason != "" {
		fmt.Fprintf(w, "                 %s\n", r.ConfidenceReason)
	}
	if r.IsFallback() {
		fmt.Fprintf(w, "Error:           %s\n", r.Error)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIMENSION\tSCORE\tEXPLANATION")
	for _, d := range risk.Dimensions {
		res := r.Dimension(d)
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d, res.Score, res.Explanation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\nSummary\n  %s\n", r.ExecutiveSummary)
	}
	printList(w, "Key findings", r.KeyFindings)
	printList(w, "Next steps", r.NextSteps)
	if r.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", r.Disclaimer)
	}
	return nil
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func printReportTable(w io.Writer, reports []risk.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDOR\tSCORE\tRISK\tRECOMMENDATION\tCONFIDENCE\tID\tERROR")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\t%s\t%s\t%s\n",
			r.VendorName, r.AggregateScore, risk.RiskLabel(r.AggregateScore),
			r.Recommendation, r.ConfidenceLevel, r.ID, r.Error)
	}
	return tw.Flush()
}

// ── stats / audit / policy ───────────────────────────────────────────────────

func (o output) stats(w io.Writer, s history.Stats) error {
	if o != outputText {
		return o.encode(w, s)
	}
	fmt.Fprintf(w, "Total:           %d\n", s.Total)
	fmt.Fprintf(w, "Approved:        %d\n", s.Approved)
	fmt.Fprintf(w, "Flagged:         %d\n", s.Flagged)
	fmt.Fprintf(w, "Rejected:        %d\n", s.Rejected)
	return nil
}

func (o output) records(w io.Writer, records []auditlog.Record) error {
	if o != outputText {
		if records == nil {
			records = []auditlog.Record{}
		}
		return o.encode(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "audit log is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIMESTAMP\tVENDOR\tSCORE\tRECOMMENDATION\tCONFIDENCE\tFALLBACK\tHASH")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%s\t%t\t%s\n",
			r.Index, r.Timestamp.Format("2006-01-02 15:04:05"), r.Vendor, r.AggregateScore,
			r.Recommendation, r.Confidence, r.Fallback, shortHash(r.Hash))
	}
	return tw.Flush()
}

func (o output) policy(w io.Writer, v risk.PolicyView) error {
	if o != outputText {
		return o.encode(w, v)
	}
	fmt.Fprintf(w, "Policy:      %s\n", v.Name)
	fmt.Fprintf(w, "Aggregation: %s\n", v.Aggregation)
	fmt.Fprintf(w, "Layout:      %s\n", v.Layout)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(v.Weights) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(tw, "DIMENSION\tWEIGHT")
		for _, d := range risk.Dimensions {
			fmt.Fprintf(tw, "%s\t%.2f\n", d, v.Weights[string(d)])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(tw, "RECOMMENDATION\tFROM\tTO")
	for _, b := range v.Bands {
		fmt.Fprintf(tw, "%s\t%g\t%g\n", b.Recommendation, b.Min, b.Max)
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
