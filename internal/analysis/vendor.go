package analysis

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxVendorLength is the longest accepted vendor name, in runes.
const MaxVendorLength = 200

var (
	// ErrEmptyVendor is returned for a blank vendor name.
	ErrEmptyVendor = errors.New("vendor name is required")
	// ErrVendorTooLong is returned for names over MaxVendorLength runes.
	ErrVendorTooLong = fmt.Errorf("vendor name exceeds %d characters", MaxVendorLength)
)

// NormalizeVendor trims the name, drops control characters and collapses
// internal whitespace runs to a single space.
func NormalizeVendor(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		return "", ErrEmptyVendor
	}
	if utf8.RuneCountInString(cleaned) > MaxVendorLength {
		return "", ErrVendorTooLong
	}
	return cleaned, nil
}
