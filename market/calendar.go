package market

import (
	"fmt"
	"sort"
	"time"
)

// Calendar is an ordered sequence of trading dates with no duplicates.
// The simulator replays it front to back.
type Calendar []time.Time

// NewCalendar normalizes, sorts and de-duplicates dates into a Calendar.
func NewCalendar(dates []time.Time) Calendar {
	out := make(Calendar, 0, len(dates))
	seen := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		day := Day(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Validate checks the calendar is non-empty, strictly increasing and
// duplicate-free.
func (c Calendar) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty trading calendar")
	}
	for i := 1; i < len(c); i++ {
		if !c[i].After(c[i-1]) {
			return fmt.Errorf("calendar not strictly increasing at %s", c[i].Format("2006-01-02"))
		}
	}
	return nil
}

// Between returns the sub-calendar with start <= date <= end.
func (c Calendar) Between(start, end time.Time) Calendar {
	s, e := Day(start), Day(end)
	out := make(Calendar, 0, len(c))
	for _, d := range c {
		if d.Before(s) || d.After(e) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Schedule decides which calendar dates trigger a rebalance. prev is the
// previous calendar date, zero on the first step.
type Schedule func(prev, cur time.Time) bool

// Every rebalances on the first calendar date and every nth trading day
// after it. Firing dates are precomputed from the calendar, so the Schedule
// is a pure function and safe to reuse across runs.
func Every(n int, c Calendar) Schedule {
	if n < 1 {
		n = 1
	}
	fire := make(map[time.Time]bool, len(c)/n+1)
	for i, d := range c {
		if i%n == 0 {
			fire[d] = true
		}
	}
	return func(prev, cur time.Time) bool {
		return fire[Day(cur)]
	}
}

// MonthStart rebalances on the first trading day of each month, including
// the first date of the run.
func MonthStart() Schedule {
	return func(prev, cur time.Time) bool {
		return prev.IsZero() || prev.Month() != cur.Month() || prev.Year() != cur.Year()
	}
}

// MonthEnd marks the last trading day of each calendar month. It needs the
// whole calendar up front: a date is a month end when the next trading date
// falls in a different month. The final calendar date always rebalances the
// closing valuation but opens no new positions when it is also the run end.
func MonthEnd(c Calendar) Schedule {
	ends := make(map[time.Time]bool, len(c))
	for i, d := range c {
		if i == len(c)-1 || c[i+1].Month() != d.Month() || c[i+1].Year() != d.Year() {
			ends[d] = true
		}
	}
	return func(prev, cur time.Time) bool {
		return ends[Day(cur)]
	}
}

// ScheduleByName resolves the schedule names accepted by the CLI and the
// YAML config: "monthly" (first trading day), "month-end", or "every:N".
func ScheduleByName(name string, c Calendar) (Schedule, error) {
	switch {
	case name == "" || name == "monthly" || name == "month-start":
		return MonthStart(), nil
	case name == "month-end":
		return MonthEnd(c), nil
	case len(name) > 6 && name[:6] == "every:":
		var n int
		if _, err := fmt.Sscanf(name[6:], "%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("bad schedule %q: want every:N with N >= 1", name)
		}
		return Every(n, c), nil
	default:
		return nil, fmt.Errorf("unknown schedule %q (monthly, month-end, every:N)", name)
	}
}
