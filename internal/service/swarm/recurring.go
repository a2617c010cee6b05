package swarm

import (
	"strings"
	"time"

	"github.com/hivehq/hive/internal/domain"
)

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ValidWeekday reports whether s is one of mon..sun.
func ValidWeekday(s string) bool {
	_, ok := weekdayNames[strings.ToLower(s)]
	return ok
}

// templateLocation resolves the template's timezone, falling back to UTC
// when the IANA name is missing or unknown.
func templateLocation(t *domain.RecurringTemplate) *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// nextOccurrence computes the occurrence after cursor c for template t.
// All day-granular adjustments happen in the template's timezone.
func nextOccurrence(t *domain.RecurringTemplate, c time.Time) time.Time {
	loc := templateLocation(t)
	c = c.In(loc)

	// Step 1: advance by the base interval.
	n := t.EveryInterval
	if n < 1 {
		n = 1
	}
	switch t.EveryUnit {
	case domain.EveryMinute:
		c = c.Add(time.Duration(n) * time.Minute)
	case domain.EveryHour:
		c = c.Add(time.Duration(n) * time.Hour)
	case domain.EveryDay:
		c = c.AddDate(0, 0, n)
	case domain.EveryWeek:
		c = c.AddDate(0, 0, 7*n)
	case domain.EveryMonth:
		c = c.AddDate(0, n, 0)
	}

	// Step 2: walk forward to an allowed weekday.
	if len(t.DaysOfWeek) > 0 {
		allowed := make(map[time.Weekday]bool, len(t.DaysOfWeek))
		for _, d := range t.DaysOfWeek {
			if wd, ok := weekdayNames[strings.ToLower(d)]; ok {
				allowed[wd] = true
			}
		}
		if len(allowed) > 0 {
			for i := 0; i < 7 && !allowed[c.Weekday()]; i++ {
				c = c.AddDate(0, 0, 1)
			}
		}
	}

	// Step 3: ISO week parity.
	if t.WeekParity == domain.ParityOdd || t.WeekParity == domain.ParityEven {
		_, week := c.ISOWeek()
		odd := week%2 == 1
		if (t.WeekParity == domain.ParityOdd) != odd {
			c = c.AddDate(0, 0, 7)
		}
	}

	// Step 4: clamp into the hour window, wrapping across midnight when
	// start > end.
	if t.BetweenHoursStart != nil && t.BetweenHoursEnd != nil {
		start, end := *t.BetweenHoursStart, *t.BetweenHoursEnd
		h := c.Hour()
		inside := false
		if start <= end {
			inside = h >= start && h <= end
		} else {
			inside = h >= start || h <= end
		}
		if !inside {
			day := c
			if start <= end && h > end {
				day = c.AddDate(0, 0, 1)
			}
			c = time.Date(day.Year(), day.Month(), day.Day(), start, 0, 0, 0, loc)
		}
	}

	return c
}
