package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrNoFutureTrigger indicates a schedule whose year constraint has no
// matching instant left.
var ErrNoFutureTrigger = errors.New("schedule has no future trigger")

const (
	yearMin = 1970
	yearMax = 2199
)

var fieldParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Expression is a validated six-field schedule of the form
// cron(minute hour day-of-month month day-of-week year). The first five
// fields follow standard cron syntax with ? accepted for the day fields;
// the year field constrains firings to 1970 through 2199.
type Expression struct {
	raw   string
	inner cron.Schedule

	allYears bool
	years    map[int]bool
	lastYear int
}

// Parse validates a schedule expression. The expression must carry
// exactly six fields inside cron(...), and one of the two day fields
// must be the ? wildcard.
func Parse(expr string) (*Expression, error) {
	trimmed := strings.TrimSpace(expr)
	body, ok := strings.CutPrefix(trimmed, "cron(")
	if !ok {
		return nil, fmt.Errorf("schedule %q must use the cron(...) form", expr)
	}
	body, ok = strings.CutSuffix(body, ")")
	if !ok {
		return nil, fmt.Errorf("schedule %q must use the cron(...) form", expr)
	}

	fields := strings.Fields(body)
	if len(fields) != 6 {
		return nil, fmt.Errorf("schedule %q has %d fields, want 6", expr, len(fields))
	}

	dom, dow := fields[2], fields[4]
	if dom != "?" && dow != "?" {
		return nil, fmt.Errorf("schedule %q needs ? in day-of-month or day-of-week", expr)
	}

	inner, err := fieldParser.Parse(strings.Join(fields[:5], " "))
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}

	e := &Expression{raw: trimmed, inner: inner, years: make(map[int]bool)}
	if err := e.parseYears(fields[5]); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return e, nil
}

func (e *Expression) parseYears(field string) error {
	if field == "*" || field == "?" {
		e.allYears = true
		e.lastYear = yearMax
		return nil
	}
	for _, atom := range strings.Split(field, ",") {
		lo, hi, step := yearMin, yearMax, 1

		rangePart, stepPart, hasStep := strings.Cut(atom, "/")
		if hasStep {
			s, err := strconv.Atoi(stepPart)
			if err != nil || s < 1 {
				return fmt.Errorf("bad year step %q", atom)
			}
			step = s
		}

		switch {
		case rangePart == "*":
			// Whole range, possibly stepped.
		case strings.Contains(rangePart, "-"):
			loStr, hiStr, _ := strings.Cut(rangePart, "-")
			var err error
			if lo, err = parseYear(loStr); err != nil {
				return err
			}
			if hi, err = parseYear(hiStr); err != nil {
				return err
			}
			if lo > hi {
				return fmt.Errorf("inverted year range %q", atom)
			}
		default:
			y, err := parseYear(rangePart)
			if err != nil {
				return err
			}
			lo = y
			hi = y
			if hasStep {
				hi = yearMax
			}
		}

		for y := lo; y <= hi; y += step {
			e.years[y] = true
			if y > e.lastYear {
				e.lastYear = y
			}
		}
	}
	if len(e.years) == 0 {
		return fmt.Errorf("empty year field")
	}
	return nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad year %q", s)
	}
	if y < yearMin || y > yearMax {
		return 0, fmt.Errorf("year %d outside %d-%d", y, yearMin, yearMax)
	}
	return y, nil
}

func (e *Expression) yearAllowed(y int) bool {
	return e.allYears && y <= yearMax || e.years[y]
}

// nextAllowedYear returns the first allowed year strictly after y.
func (e *Expression) nextAllowedYear(y int) (int, bool) {
	for candidate := y + 1; candidate <= e.lastYear; candidate++ {
		if e.yearAllowed(candidate) {
			return candidate, true
		}
	}
	return 0, false
}

// Next returns the first trigger instant strictly after t, or
// ErrNoFutureTrigger when the year constraint is exhausted.
func (e *Expression) Next(t time.Time) (time.Time, error) {
	// Bounded by the year span so a schedule that never fires inside
	// its years (such as Feb 30) cannot loop forever.
	for i := 0; i <= yearMax-yearMin; i++ {
		n := e.inner.Next(t)
		if n.IsZero() {
			return time.Time{}, ErrNoFutureTrigger
		}
		if n.Year() > e.lastYear {
			return time.Time{}, ErrNoFutureTrigger
		}
		if e.yearAllowed(n.Year()) {
			return n, nil
		}
		year, ok := e.nextAllowedYear(n.Year())
		if !ok {
			return time.Time{}, ErrNoFutureTrigger
		}
		t = time.Date(year, time.January, 1, 0, 0, 0, 0, n.Location()).Add(-time.Second)
	}
	return time.Time{}, ErrNoFutureTrigger
}

func (e *Expression) String() string { return e.raw }
