package util

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxReasonLength matches the rejection_reason column width.
const MaxReasonLength = 500

var (
	ErrEmptyReason   = errors.New("reason is required")
	ErrReasonTooLong = errors.New("reason is too long")

	spaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeReason trims the admin-entered reason and collapses whitespace runs
// to a single space. A blank result is an error.
func NormalizeReason(raw string) (string, error) {
	s := spaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
	if s == "" {
		return "", ErrEmptyReason
	}
	if utf8.RuneCountInString(s) > MaxReasonLength {
		return "", ErrReasonTooLong
	}
	return s, nil
}
