// Package export serialises reports for download and for the CLI --out flag.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// Format is a serialisation format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied format name to a Format. An empty string
// selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns vendorguard_<Vendor_Name>_<YYYYMMDD_HHMM>.<ext> for r,
// stamped with now. Spaces become underscores and any other character that
// is unsafe in a file name is dropped.
func FileName(r risk.Report, f Format, now time.Time) string {
	name := strings.ReplaceAll(strings.TrimSpace(r.VendorName), " ", "_")
	name = unsafeName.ReplaceAllString(name, "")
	if name == "" {
		name = "vendor"
	}
	ext := string(f)
	if ext == "" {
		ext = string(FormatJSON)
	}
	return fmt.Sprintf("vendorguard_%s_%s.%s", name, now.Format("20060102_1504"), ext)
}

// Write serialises r to w in format f. JSON is indented by two spaces.
func Write(w io.Writer, r risk.Report, f Format) error {
	switch f {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
