package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/viktsys/stockplot/intent"
)

const monthAlt = `(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\b\.?`

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// temporal is what a date rule extracted: a range or a single as-of date.
type temporal struct {
	rng  *intent.DateRange
	asOf *time.Time
}

// temporalRule tries to pull dates out of a command. ok is false when the
// rule does not apply; err is set when it applies but the date is bogus.
type temporalRule struct {
	name    string
	extract func(command string) (t temporal, ok bool, err error)
}

var (
	explicitRangePattern = regexp.MustCompile(`(?i)\bfrom\s+` + monthAlt + `\s+(\d{1,2}),?\s+(\d{4})\s+to\s+` + monthAlt + `\s+(\d{1,2}),?\s+(\d{4})`)
	monthYearPattern     = regexp.MustCompile(`(?i)\bfor\s+` + monthAlt + `\s+(\d{4})\b`)
	asOfPattern          = regexp.MustCompile(`(?i)\bas\s+of\s+` + monthAlt + `\s+(\d{1,2}),?\s+(\d{4})`)

	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bduring\s+(\d{4})\b`),
		regexp.MustCompile(`(?i)\bfor\s+(\d{4})\b`),
		regexp.MustCompile(`(?i)\bfor\s+each\s+month\s+of\s+(\d{4})\b`),
		regexp.MustCompile(`(?i)\bin\s+(\d{4})\b`),
		regexp.MustCompile(`(?i)\bof\s+(\d{4})\b`),
	}
)

// temporalRules run in order, first match wins. The explicit range goes
// first so that a stated "from ... to ..." always decides the dates.
var temporalRules = []temporalRule{
	{"explicit range", explicitRange},
	{"month of year", monthOfYear},
	{"as of", asOfDate},
	{"bare year", bareYear},
}

func extractTemporal(command string) (temporal, string, error) {
	for _, r := range temporalRules {
		t, ok, err := r.extract(command)
		if err != nil {
			return temporal{}, r.name, err
		}
		if ok {
			return t, r.name, nil
		}
	}
	return temporal{}, "", nil
}

func explicitRange(command string) (temporal, bool, error) {
	m := explicitRangePattern.FindStringSubmatch(command)
	if m == nil {
		return temporal{}, false, nil
	}
	start, err := calendarDate(m[1], m[2], m[3])
	if err != nil {
		return temporal{}, true, err
	}
	end, err := calendarDate(m[4], m[5], m[6])
	if err != nil {
		return temporal{}, true, err
	}
	return temporal{rng: &intent.DateRange{Start: start, End: end}}, true, nil
}

func monthOfYear(command string) (temporal, bool, error) {
	m := monthYearPattern.FindStringSubmatch(command)
	if m == nil {
		return temporal{}, false, nil
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return temporal{}, true, fmt.Errorf("invalid year %q", m[2])
	}
	r := intent.MonthRange(year, months[strings.ToLower(m[1])])
	return temporal{rng: &r}, true, nil
}

func asOfDate(command string) (temporal, bool, error) {
	m := asOfPattern.FindStringSubmatch(command)
	if m == nil {
		return temporal{}, false, nil
	}
	d, err := calendarDate(m[1], m[2], m[3])
	if err != nil {
		return temporal{}, true, err
	}
	return temporal{asOf: &d}, true, nil
}

func bareYear(command string) (temporal, bool, error) {
	for _, p := range yearPatterns {
		m := p.FindStringSubmatch(command)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return temporal{}, true, fmt.Errorf("invalid year %q", m[1])
		}
		r := intent.YearRange(year)
		return temporal{rng: &r}, true, nil
	}
	return temporal{}, false, nil
}

// calendarDate rejects days that time.Date would silently roll over,
// such as February 30.
func calendarDate(month, day, year string) (time.Time, error) {
	mon, ok := months[strings.ToLower(strings.TrimSuffix(month, "."))]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", month)
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q", day)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q", year)
	}
	t := intent.Date(y, mon, d)
	if t.Day() != d || t.Month() != mon {
		return time.Time{}, fmt.Errorf("invalid date %s %s, %s", month, day, year)
	}
	return t, nil
}
