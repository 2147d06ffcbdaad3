package fraud

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reSlashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)

// fallbackLayouts are tried after the slash forms.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-1-2",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ParseDate reads a document date. It tries MM/DD/YYYY, then MM/DD/YY
// (years below 50 are 2000s, the rest 1900s), then ISO and long forms.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := reSlashDate.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// reject 13/40/2024 and friends instead of letting time.Date roll over
		if t.Month() != time.Month(month) || t.Day() != day {
			return time.Time{}, false
		}
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
