// Package cronrule converts between the human-editable weekly pattern shown
// in calendar UIs (locale-ordered weekday names plus a time of day) and the
// compact cron-like recurrence form stored on training groups:
//
//	minute hour * * weekday-list
//
// Weekday digits in the stored form are always canonical (0 = Sunday ..
// 6 = Saturday) regardless of the locale's week-start convention; locale
// weekday names exist only at this codec boundary.
package cronrule

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrValidation marks a malformed pattern, time or rule string.
var ErrValidation = errors.New("invalid recurrence pattern")

// Rule is a parsed weekly recurrence rule.
type Rule struct {
	Weekdays []time.Weekday // canonical, ascending, unique
	Hour     int
	Minute   int
}

// Pattern is the UI-facing weekly pattern: weekday labels in the locale's
// display order and a HH:MM time of day.
type Pattern struct {
	Days []string
	Time string
}

// WeekOrder describes a locale's weekday display convention: the weekday the
// week starts on and the seven labels in display order.
type WeekOrder struct {
	Start time.Weekday
	Names [7]string
}

// Name returns the display label of a canonical weekday.
func (w WeekOrder) Name(day time.Weekday) string {
	return w.Names[(int(day)-int(w.Start)+7)%7]
}

// Day resolves a display label to its canonical weekday.
func (w WeekOrder) Day(name string) (time.Weekday, bool) {
	for i, n := range w.Names {
		if n == name {
			return time.Weekday((int(w.Start) + i) % 7), true
		}
	}
	return 0, false
}

// ToRule maps a UI pattern to a canonical rule.
func ToRule(p Pattern, week WeekOrder) (Rule, error) {
	if len(p.Days) == 0 {
		return Rule{}, fmt.Errorf("%w: no weekdays selected", ErrValidation)
	}

	hour, minute, err := parseTime(p.Time)
	if err != nil {
		return Rule{}, err
	}

	days := make([]time.Weekday, 0, len(p.Days))
	for _, name := range p.Days {
		day, ok := week.Day(name)
		if !ok {
			return Rule{}, fmt.Errorf("%w: unknown weekday %q", ErrValidation, name)
		}
		if !slices.Contains(days, day) {
			days = append(days, day)
		}
	}
	slices.Sort(days)

	return Rule{Weekdays: days, Hour: hour, Minute: minute}, nil
}

// ToPattern is the inverse of ToRule. Labels come back in the locale's
// display order, so a pattern survives a round trip under any week-start
// convention.
func ToPattern(r Rule, week WeekOrder) Pattern {
	days := make([]string, 0, len(r.Weekdays))
	// walk the week in display order to keep the label order locale-stable
	for i := 0; i < 7; i++ {
		day := time.Weekday((int(week.Start) + i) % 7)
		if slices.Contains(r.Weekdays, day) {
			days = append(days, week.Name(day))
		}
	}
	return Pattern{
		Days: days,
		Time: fmt.Sprintf("%02d:%02d", r.Hour, r.Minute),
	}
}

// String renders the rule in the stored cron form.
func (r Rule) String() string {
	days := make([]string, len(r.Weekdays))
	for i, d := range r.Weekdays {
		days[i] = strconv.Itoa(int(d))
	}
	return fmt.Sprintf("%d %d * * %s", r.Minute, r.Hour, strings.Join(days, ","))
}

// Parse parses the stored cron form back into a rule.
func Parse(s string) (Rule, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return Rule{}, fmt.Errorf("%w: expected 5 cron fields in %q", ErrValidation, s)
	}
	if fields[2] != "*" || fields[3] != "*" {
		return Rule{}, fmt.Errorf("%w: day-of-month and month must be * in %q", ErrValidation, s)
	}

	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return Rule{}, fmt.Errorf("%w: bad minute field %q", ErrValidation, fields[0])
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return Rule{}, fmt.Errorf("%w: bad hour field %q", ErrValidation, fields[1])
	}

	var days []time.Weekday
	for _, part := range strings.Split(fields[4], ",") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return Rule{}, fmt.Errorf("%w: bad weekday %q", ErrValidation, part)
		}
		day := time.Weekday(n)
		if !slices.Contains(days, day) {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return Rule{}, fmt.Errorf("%w: empty weekday list in %q", ErrValidation, s)
	}
	slices.Sort(days)

	return Rule{Weekdays: days, Hour: hour, Minute: minute}, nil
}

func parseTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: time must be HH:MM, got %q", ErrValidation, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrValidation, s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrValidation, s)
	}
	return hour, minute, nil
}
