// Package timeparse turns free-form thread text like "friday 7pm est" into a
// concrete start time.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognized marks input the parser could not turn into a time.
var ErrUnrecognized = errors.New("could not recognize a time in that message")

// ErrPast marks a proposal that already went by.
var ErrPast = errors.New("that time is in the past")

// timezoneMap maps common abbreviations to IANA zone names. Abbreviations are
// ambiguous in general; this is the closed set the thread accepts.
var timezoneMap = map[string]string{
	"UTC": "UTC",
	"GMT": "UTC",
	"PST": "America/Los_Angeles",
	"PDT": "America/Los_Angeles",
	"MST": "America/Denver",
	"MDT": "America/Denver",
	"CST": "America/Chicago",
	"CDT": "America/Chicago",
	"EST": "America/New_York",
	"EDT": "America/New_York",
	"BST": "Europe/London",
	"CET": "Europe/Berlin",
	"CEST": "Europe/Berlin",
	"AEST": "Australia/Sydney",
	"AEDT": "Australia/Sydney",
	"JST": "Asia/Tokyo",
}

var compactClockPattern = regexp.MustCompile(`(\d{1,2})(\d{2})(am|pm)`)

// Parser parses user-proposed start times.
type Parser struct {
	w *when.Parser
}

// NewParser builds the parser with the English and common rule sets.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// splitTimezone strips a trailing timezone abbreviation and resolves its
// location. Without one the input is read as UTC.
func splitTimezone(input string) (string, *time.Location, error) {
	fields := strings.Fields(input)
	if len(fields) > 1 {
		last := strings.ToUpper(fields[len(fields)-1])
		if name, ok := timezoneMap[last]; ok {
			loc, err := time.LoadLocation(name)
			if err != nil {
				return "", nil, fmt.Errorf("failed to load timezone %s: %w", name, err)
			}
			return strings.Join(fields[:len(fields)-1], " "), loc, nil
		}
	}
	return input, time.UTC, nil
}

// Parse resolves input relative to now. The result is always UTC and must lie
// in the future.
func (p *Parser) Parse(input string, now time.Time) (time.Time, error) {
	text, loc, err := splitTimezone(strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, err
	}

	text = strings.ToLower(text)
	// "932am" reads as "9:32 am".
	text = compactClockPattern.ReplaceAllString(text, "$1:$2 $3")

	base := now.In(loc)
	r, err := p.w.Parse(text, base)
	if err != nil || r == nil {
		return time.Time{}, ErrUnrecognized
	}

	parsed := r.Time.In(time.UTC).Truncate(time.Minute)
	if !parsed.After(now.Truncate(time.Minute)) {
		return time.Time{}, ErrPast
	}
	return parsed, nil
}
