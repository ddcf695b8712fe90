package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Prompt is the instruction pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// dimensionBriefs describe what each dimension covers.
var dimensionBriefs = map[Dimension]string{
	Financial:  "bankruptcy risk, credit downgrades, revenue decline, debt, restatements, layoffs",
	Security:   "data breaches, CVEs, ransomware, supply-chain compromises, CISA/NVD alerts",
	Compliance: "GDPR/CCPA/HIPAA/FTC/SEC fines, sanctions, government investigations",
	Reputation: "negative press, executive misconduct, class-action lawsuits, whistleblowers",
}

// BuildPrompt returns the system and user instructions for vendor under p.
// The system text depends only on p; the user text differs only by vendor.
func BuildPrompt(vendor string, p Policy) Prompt {
	return Prompt{
		System: systemPrompt(p),
		User: fmt.Sprintf(
			"Assess the vendor **%s** across all four risk dimensions "+
				"(financial, security, compliance, reputation). Draw on all known public "+
				"information (regulatory actions, security incidents, financial news, press "+
				"coverage) and produce the JSON risk report.",
			vendor,
		),
	}
}

func systemPrompt(p Policy) string {
	var b strings.Builder

	b.WriteString("You are VendorGuard AI, a senior enterprise vendor risk intelligence agent.\n\n")
	b.WriteString("Analyse the given vendor across four risk dimensions using all publicly known\n")
	b.WriteString("information: regulatory actions, security incidents, financial news, lawsuits,\n")
	b.WriteString("press coverage.\n\n")

	b.WriteString("DIMENSIONS:\n")
	for _, d := range Dimensions {
		title := strings.ToUpper(string(d[:1])) + string(d[1:]) + " Risk"
		if p.aggregation == AggregationWeighted {
			fmt.Fprintf(&b, "  %-16s (%s%%) - %s\n", title, p.weights[d].Mul(hundred).String(), dimensionBriefs[d])
		} else {
			fmt.Fprintf(&b, "  %-16s - %s\n", title, dimensionBriefs[d])
		}
	}
	fmt.Fprintf(&b, "\nSCORING: Each dimension %d (lowest risk) to %d (highest risk).\n\n", MinScore, MaxScore)

	if p.aggregation == AggregationWeighted {
		terms := make([]string, 0, len(Dimensions))
		for _, d := range Dimensions {
			terms = append(terms, fmt.Sprintf("%s*%s", d, p.weights[d].String()))
		}
		fmt.Fprintf(&b, "AGGREGATE SCORE = %s, rounded to 1 decimal\n\n", strings.Join(terms, " + "))
	} else {
		b.WriteString("AGGREGATE SCORE = average of the four dimension scores, rounded to the nearest integer\n\n")
	}

	b.WriteString("DECISION THRESHOLDS:\n")
	for _, band := range p.View().Bands {
		fmt.Fprintf(&b, "  up to %-5s -> %s\n", formatBound(band.Max), band.Recommendation)
	}

	b.WriteString("\nRULES:\n")
	b.WriteString("- Never REJECT without citing at least one specific, verifiable incident.\n")
	b.WriteString("- For FLAG_FOR_REVIEW: give actionable reviewer guidance in the recommendation reason.\n")
	b.WriteString("- Confidence: High = strong evidence found; Medium = some evidence; Low = limited public data.\n")
	fmt.Fprintf(&b, "- If no public information exists for a dimension, score it %d and state that data is limited.\n", DefaultScore)
	b.WriteString("- Never fabricate sources.\n")
	b.WriteString("- Return ONLY a valid JSON object: no markdown fences, no extra text.\n\n")

	b.WriteString("OUTPUT SCHEMA (exact field names required):\n")
	if p.layout == LayoutNested {
		b.WriteString(nestedSchema)
	} else {
		b.WriteString(flatSchema)
	}
	return b.String()
}

func formatBound(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

const flatSchema = `{
  "vendor_name": "<name>",
  "analysis_date": "<YYYY-MM-DD>",
  "financial_risk": {
    "score": <integer 1-10>,
    "explanation": "<one clear sentence>",
    "key_facts": ["<fact with date/source>", "<fact with date/source>"]
  },
  "security_risk": {
    "score": <integer 1-10>,
    "explanation": "<one clear sentence>",
    "key_facts": ["<fact with date/source>", "<fact with date/source>"]
  },
  "compliance_risk": {
    "score": <integer 1-10>,
    "explanation": "<one clear sentence>",
    "key_facts": ["<fact with date/source>", "<fact with date/source>"]
  },
  "reputation_risk": {
    "score": <integer 1-10>,
    "explanation": "<one clear sentence>",
    "key_facts": ["<fact with date/source>", "<fact with date/source>"]
  },
  "weighted_score": <number>,
  "confidence_level": "<High|Medium|Low>",
  "confidence_reason": "<why this confidence level>",
  "executive_summary": "<2-3 sentence executive summary>",
  "recommendation": "<APPROVE|FLAG_FOR_REVIEW|REJECT>",
  "recommendation_reason": "<specific reason with evidence>",
  "next_steps": ["<step1>", "<step2>", "<step3>"]
}
`

const nestedSchema = `{
  "vendor": "<name>",
  "analysis_date": "<YYYY-MM-DD>",
  "overall_score": <integer 1-10>,
  "recommendation": "<APPROVE|FLAG_FOR_REVIEW|REJECT>",
  "confidence": "<High|Medium|Low>",
  "dimensions": {
    "financial":  {"score": <1-10>, "summary": "<2-3 sentences>", "findings": ["<finding with source/date>"], "sources": ["<url or publication name>"]},
    "security":   {"score": <1-10>, "summary": "<2-3 sentences>", "findings": ["<finding with source/date>"], "sources": ["<url or publication name>"]},
    "compliance": {"score": <1-10>, "summary": "<2-3 sentences>", "findings": ["<finding with source/date>"], "sources": ["<url or publication name>"]},
    "reputation": {"score": <1-10>, "summary": "<2-3 sentences>", "findings": ["<finding with source/date>"], "sources": ["<url or publication name>"]}
  },
  "key_findings": ["<top 3-5 most important findings across all dimensions>"],
  "human_review_reason": "<why human review is needed; only when FLAG_FOR_REVIEW>",
  "next_steps": ["<step1>", "<step2>", "<step3>"]
}
`
