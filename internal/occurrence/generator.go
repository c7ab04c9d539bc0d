// Package occurrence expands weekly recurrence rules into concrete start
// times. Expansion is pure calendar arithmetic in the window's location, so
// windows spanning daylight-saving or year boundaries keep the wall-clock
// time of day.
package occurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/golyo/golyo-calendar/internal/cronrule"
)

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Generator produces occurrence start times inside a requested window.
//
// Occurrences are never produced at or before now minus the grace period:
// anything further in the past must already exist as a persisted event if it
// was ever attended, and regenerating it would resurrect history.
type Generator struct {
	now   func() time.Time
	grace time.Duration
}

// New creates a generator. now is injectable for deterministic tests; grace
// keeps just-started occurrences visible (and joinable) for a short while.
func New(now func() time.Time, grace time.Duration) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now, grace: grace}
}

// Generate returns the rule's start times within [from, to], ascending.
// The window start is inclusive, nothing beyond the window end is produced,
// and an inverted window yields an empty result rather than an error.
func (g *Generator) Generate(rule cronrule.Rule, from, to time.Time) ([]time.Time, error) {
	if to.Before(from) || len(rule.Weekdays) == 0 {
		return nil, nil
	}

	byweekday := make([]rrule.Weekday, len(rule.Weekdays))
	for i, d := range rule.Weekdays {
		byweekday[i] = rruleWeekdays[d]
	}

	// Anchor the rule at the window start's date so the weekly expansion
	// carries the rule's time of day through DST shifts in this location.
	loc := from.Location()
	dtstart := time.Date(from.Year(), from.Month(), from.Day(), rule.Hour, rule.Minute, 0, 0, loc)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byweekday,
		Dtstart:   dtstart,
	})
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule %q: %w", rule, err)
	}

	floor := g.now().Add(-g.grace)
	var starts []time.Time
	for _, t := range r.Between(from, to, true) {
		if t.After(floor) {
			starts = append(starts, t)
		}
	}
	return starts, nil
}
