// Package recurrence parses RFC 5545 recurrence rules and expands them into
// calendar dates.
package recurrence

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var (
	ErrEmptyRule            = errors.New("empty recurrence rule")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrNoWeekdays           = errors.New("weekly rule needs at least one weekday")
	ErrAmbiguousMonthly     = errors.New("monthly rule mixes day-of-month and weekday")
)

// Rule is a parsed recurrence rule. It is immutable; Expand keeps no state
// between calls.
type Rule struct {
	raw   string
	opt   rrule.ROption
	start time.Time // civil day of an embedded DTSTART, zero when absent
}

// Parse reads a rule in the forms produced by common rrule libraries:
// "FREQ=...", "RRULE:FREQ=..." or a "DTSTART:...\nRRULE:..." pair.
func Parse(s string) (*Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyRule
	}

	var (
		body  string
		start time.Time
	)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "DTSTART"):
			t, err := parseDTStart(line)
			if err != nil {
				return nil, err
			}
			start = t
		case strings.HasPrefix(upper, "RRULE:"):
			body = line[len("RRULE:"):]
		default:
			if body != "" {
				return nil, fmt.Errorf("parse rule %q: unexpected line %q", s, line)
			}
			body = line
		}
	}
	if body == "" {
		return nil, ErrEmptyRule
	}

	opt, err := rrule.StrToROption(body)
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", s, err)
	}
	if err := check(opt); err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", s, err)
	}
	// rrule-go checks value ranges only when the rule is built.
	trial := *opt
	trial.Dtstart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := rrule.NewRRule(trial); err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", s, err)
	}

	return &Rule{raw: s, opt: *opt, start: start}, nil
}

// ParseOrNil treats a malformed rule as "no recurrence".
func ParseOrNil(s string) *Rule {
	r, err := Parse(s)
	if err != nil {
		log.Printf("[warn] ignoring recurrence rule: %v", err)
		return nil
	}
	return r
}

// Validate reports whether s is a rule that Parse accepts.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

func check(opt *rrule.ROption) error {
	if opt.Interval < 0 {
		return fmt.Errorf("interval must be positive, got %d", opt.Interval)
	}
	if opt.Interval == 0 {
		opt.Interval = 1
	}
	switch opt.Freq {
	case rrule.DAILY, rrule.YEARLY:
	case rrule.WEEKLY:
		if len(opt.Byweekday) == 0 {
			return ErrNoWeekdays
		}
	case rrule.MONTHLY:
		if len(opt.Bymonthday) > 0 && len(opt.Byweekday) > 0 {
			return ErrAmbiguousMonthly
		}
	default:
		return ErrUnsupportedFrequency
	}
	return nil
}

// String returns the rule text it was parsed from.
func (r *Rule) String() string {
	return r.raw
}

// Start returns the DTSTART day embedded in the rule text.
func (r *Rule) Start() (time.Time, bool) {
	return r.start, !r.start.IsZero()
}

// WithStart returns a copy of the rule anchored at the given day. Intervals
// and weekly cycles are counted from that day and nothing before it matches.
func (r *Rule) WithStart(day time.Time) *Rule {
	cp := *r
	cp.start = civil(day)
	return &cp
}

// Expand returns the YYYY-MM-DD dates matched by the rule between the days
// of windowStart and windowEnd, both inclusive, ascending and unique. A rule
// with no start is anchored at windowStart.
func (r *Rule) Expand(windowStart, windowEnd time.Time) []string {
	from, to := civil(windowStart), civil(windowEnd)
	if to.Before(from) {
		return nil
	}

	opt := r.opt
	opt.Dtstart = r.start
	if opt.Dtstart.IsZero() {
		opt.Dtstart = from
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		log.Printf("[warn] expand rule %q: %v", r.raw, err)
		return nil
	}

	occurrences := rule.Between(from, to.AddDate(0, 0, 1).Add(-time.Second), true)
	dates := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		d := FormatDate(occ.In(time.UTC))
		if n := len(dates); n > 0 && dates[n-1] == d {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// parseDTStart accepts "DTSTART:20250101T000000Z", "DTSTART;TZID=...:20250101T090000"
// and "DTSTART;VALUE=DATE:20250101". Only the calendar day is kept.
func parseDTStart(line string) (time.Time, error) {
	idx := strings.LastIndex(line, ":")
	if idx < 0 || idx == len(line)-1 {
		return time.Time{}, fmt.Errorf("invalid DTSTART %q", line)
	}
	value := strings.TrimSuffix(strings.TrimSpace(line[idx+1:]), "Z")
	for _, layout := range []string{"20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, value); err == nil {
			return civil(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid DTSTART %q", line)
}
