package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformedResponse is returned when no {...} span exists in the model output.
var ErrMalformedResponse = errors.New("no JSON object found in model response")

// ParseError reports a {...} span that is not a valid JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "JSON parse error: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

var fenceRe = regexp.MustCompile("```(?:json)?")

// ParseResponse extracts the JSON object from raw model text. Code-fence
// markers are removed and the span from the first '{' to the last '}' is
// decoded. Numbers are kept as json.Number so Decode can coerce them.
// Broken JSON inside the braces is not repaired.
func ParseResponse(raw string) (map[string]any, error) {
	clean := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrMalformedResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean[start : end+1])))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: fmt.Errorf("unexpected data after top-level object")}
	}
	return obj, nil
}
