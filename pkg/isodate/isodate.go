// Package isodate parses the ISO-8601 duration strings and RFC 3339 /
// common date-time strings gplmt accepts for start_relative,
// start_absolute, duration, and timeout attributes (spec.md §4.5/§4.6).
//
// No library in the retrieved example pack implements the ISO-8601
// duration grammar (PnYnMnDTnHnMnS): the only duration-parsing
// dependency anywhere in the pack, github.com/xhit/go-str2duration/v2
// (pulled in by kedacore/keda's go.mod), parses Go-style "1h30m"
// strings, not ISO-8601 designators. This package is hand-rolled
// against the exact grammar subset the original implementation's
// isodate.parse_duration call sites require, and is kept deliberately
// narrow rather than general-purpose.
package isodate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches ISO-8601 durations of the form PnYnMnDTnHnMnS,
// with every component optional but at least one required. Fractional
// seconds are accepted (n.nnnS); all other components are integers.
var durationPattern = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?` +
		`(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`,
)

const (
	hoursPerDay  = 24
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

// ParseDuration parses an ISO-8601 duration string into a time.Duration.
// Year and month components are approximated as 365 and 30 days
// respectively, matching the fixed-length assumption the original
// implementation's isodate library makes for calendar components in a
// total_seconds() conversion.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("isodate: invalid duration %q", s)
	}

	years := atoiOr0(m[1])
	months := atoiOr0(m[2])
	weeks := atoiOr0(m[3])
	days := atoiOr0(m[4])
	hours := atoiOr0(m[5])
	minutes := atoiOr0(m[6])

	var seconds float64
	if m[7] != "" {
		var err error
		seconds, err = strconv.ParseFloat(m[7], 64)
		if err != nil {
			return 0, fmt.Errorf("isodate: invalid seconds component in %q: %w", s, err)
		}
	}

	totalDays := years*daysPerYear + months*daysPerMonth + weeks*daysPerWeek + days
	d := time.Duration(totalDays) * hoursPerDay * time.Hour
	d += time.Duration(hours) * time.Hour
	d += time.Duration(minutes) * time.Minute
	d += time.Duration(seconds * float64(time.Second))
	return d, nil
}

func atoiOr0(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// dateTimeLayouts are tried in order against start_absolute attribute
// values, covering the formats the original implementation's
// dateutil.parser.parse accepted loosely; gplmt narrows that to an
// explicit, documented set (spec.md §9 Open Question decision).
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an absolute-time attribute value using the
// first layout in dateTimeLayouts that matches.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("isodate: invalid timestamp %q: %w", s, lastErr)
}
