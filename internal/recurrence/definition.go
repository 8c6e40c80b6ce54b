package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the unit a rule repeats in.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// MonthlyMode selects how a monthly rule picks its day.
type MonthlyMode int

const (
	MonthlyByDay MonthlyMode = iota
	MonthlyByWeekday
)

// MaxInterval caps the "every N" input.
const MaxInterval = 99

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Definition is the structured form of a rule as a user fills it in.
type Definition struct {
	Frequency Frequency
	Interval  int

	// Weekly.
	Weekdays []time.Weekday

	// Monthly.
	MonthlyMode MonthlyMode
	MonthDay    int
	SetPos      int // 1..4, or -1 for the last one in the month
	PosWeekday  time.Weekday

	// Yearly.
	Month time.Month
	Day   int
}

// Validate rejects definitions that cannot produce a usable rule.
func (d Definition) Validate() error {
	if d.Interval < 1 || d.Interval > MaxInterval {
		return fmt.Errorf("interval must be between 1 and %d", MaxInterval)
	}
	switch d.Frequency {
	case Daily:
	case Weekly:
		if len(d.Weekdays) == 0 {
			return ErrNoWeekdays
		}
	case Monthly:
		switch d.MonthlyMode {
		case MonthlyByDay:
			if d.MonthDay < 1 || d.MonthDay > 31 {
				return fmt.Errorf("day of month must be between 1 and 31")
			}
		case MonthlyByWeekday:
			if d.SetPos != -1 && (d.SetPos < 1 || d.SetPos > 4) {
				return fmt.Errorf("week position must be 1-4 or -1 (last)")
			}
		default:
			return fmt.Errorf("unknown monthly mode %d", d.MonthlyMode)
		}
	case Yearly:
		if d.Month < time.January || d.Month > time.December {
			return fmt.Errorf("month must be between 1 and 12")
		}
		if d.Day < 1 || d.Day > 31 {
			return fmt.Errorf("day of month must be between 1 and 31")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFrequency, d.Frequency)
	}
	return nil
}

// RRule renders the definition as an RRULE body, e.g.
// "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE,FR".
func (d Definition) RRule() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	parts := []string{"FREQ=" + string(d.Frequency), "INTERVAL=" + strconv.Itoa(d.Interval)}
	switch d.Frequency {
	case Weekly:
		parts = append(parts, "BYDAY="+joinWeekdays(d.Weekdays))
	case Monthly:
		if d.MonthlyMode == MonthlyByDay {
			parts = append(parts, "BYMONTHDAY="+strconv.Itoa(d.MonthDay))
		} else {
			parts = append(parts, "BYSETPOS="+strconv.Itoa(d.SetPos), "BYDAY="+weekdayCodes[d.PosWeekday])
		}
	case Yearly:
		parts = append(parts, "BYMONTH="+strconv.Itoa(int(d.Month)), "BYMONTHDAY="+strconv.Itoa(d.Day))
	}
	return strings.Join(parts, ";"), nil
}

func joinWeekdays(days []time.Weekday) string {
	seen := make(map[time.Weekday]bool, len(days))
	codes := make([]string, 0, len(days))
	// Emit in Monday-first order regardless of input order.
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		for _, day := range days {
			if day == wd && !seen[wd] {
				seen[wd] = true
				codes = append(codes, weekdayCodes[wd])
			}
		}
	}
	return strings.Join(codes, ",")
}

var errShorthand = errors.New(`expected e.g. "daily", "every 2 days", "weekly mo,we,fr", "monthly 15", "monthly last fr", "yearly 12-25"`)

// ParseShorthand turns a short text description into a Definition. It
// accepts:
//
//	daily | every N days
//	weekly mo,we,fr | every N weeks mo,fr
//	monthly 15 | monthly 2 tu | monthly last fr
//	yearly 12-25
func ParseShorthand(text string) (Definition, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return Definition{}, errShorthand
	}

	def := Definition{Interval: 1}
	if fields[0] == "every" {
		if len(fields) < 3 {
			return Definition{}, errShorthand
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Definition{}, errShorthand
		}
		def.Interval = n
		unit := strings.TrimSuffix(fields[2], "s")
		fields = append([]string{unitToKeyword(unit)}, fields[3:]...)
	}

	args := fields[1:]
	switch fields[0] {
	case "daily":
		def.Frequency = Daily
	case "weekly":
		def.Frequency = Weekly
		if len(args) != 1 {
			return Definition{}, errShorthand
		}
		for _, code := range strings.Split(args[0], ",") {
			wd, ok := parseWeekday(code)
			if !ok {
				return Definition{}, fmt.Errorf("unknown weekday %q", code)
			}
			def.Weekdays = append(def.Weekdays, wd)
		}
	case "monthly":
		def.Frequency = Monthly
		switch len(args) {
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return Definition{}, errShorthand
			}
			def.MonthlyMode = MonthlyByDay
			def.MonthDay = n
		case 2:
			def.MonthlyMode = MonthlyByWeekday
			if args[0] == "last" {
				def.SetPos = -1
			} else {
				n, err := strconv.Atoi(strings.TrimRight(args[0], "stndrh"))
				if err != nil {
					return Definition{}, errShorthand
				}
				def.SetPos = n
			}
			wd, ok := parseWeekday(args[1])
			if !ok {
				return Definition{}, fmt.Errorf("unknown weekday %q", args[1])
			}
			def.PosWeekday = wd
		default:
			return Definition{}, errShorthand
		}
	case "yearly":
		def.Frequency = Yearly
		if len(args) != 1 {
			return Definition{}, errShorthand
		}
		parts := strings.Split(args[0], "-")
		if len(parts) != 2 {
			return Definition{}, errShorthand
		}
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return Definition{}, errShorthand
		}
		def.Month = time.Month(month)
		def.Day = day
	default:
		return Definition{}, errShorthand
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func unitToKeyword(unit string) string {
	switch unit {
	case "day":
		return "daily"
	case "week":
		return "weekly"
	case "month":
		return "monthly"
	case "year":
		return "yearly"
	}
	return unit
}

func parseWeekday(code string) (time.Weekday, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) > 2 {
		code = code[:2]
	}
	for i, c := range weekdayCodes {
		if c == code {
			return time.Weekday(i), true
		}
	}
	return 0, false
}
