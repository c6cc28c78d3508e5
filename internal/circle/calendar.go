package circle

import (
	"fmt"
	"time"

	"github.com/bethatfriend/bethatfriend/internal/store"
)

// February has 29 days so that a date recurs every year regardless of leap years.
var daysInMonth = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ValidDay reports whether day exists in month under the fixed annual table.
func ValidDay(month, day int) bool {
	if month < 1 || month > 12 {
		return false
	}
	return day >= 1 && day <= daysInMonth[month-1]
}

// Today is the calendar day a reminder run is evaluated for. Year 0 means the
// year is unknown, which is treated as a leap year.
type Today struct {
	Year  int
	Month int
	Day   int
}

// TodayFrom returns the calendar day of t in t's location.
func TodayFrom(t time.Time) Today {
	return Today{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseToday accepts YYYY-MM-DD, or MM-DD for a year-less day.
func ParseToday(s string) (Today, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return TodayFrom(t), nil
	}
	var m, d int
	if _, err := fmt.Sscanf(s, "%02d-%02d", &m, &d); err == nil && len(s) == 5 && ValidDay(m, d) {
		return Today{Month: m, Day: d}, nil
	}
	return Today{}, validationf("invalid date %q, want YYYY-MM-DD or MM-DD", s)
}

// String formats the day as YYYY-MM-DD, or MM-DD when the year is unknown.
func (t Today) String() string {
	if t.Year == 0 {
		return fmt.Sprintf("%02d-%02d", t.Month, t.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day)
}

func (t Today) leapYear() bool {
	if t.Year == 0 {
		return true
	}
	y := t.Year
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// LeapDayPolicy decides when February 29 dates fire in years without one.
type LeapDayPolicy string

const (
	// LeapDayExact fires Feb 29 dates only on a real Feb 29.
	LeapDayExact LeapDayPolicy = "exact"
	// LeapDayFeb28 fires Feb 29 dates on Feb 28 in non-leap years.
	LeapDayFeb28 LeapDayPolicy = "feb28"
	// LeapDayMar1 fires Feb 29 dates on Mar 1 in non-leap years.
	LeapDayMar1 LeapDayPolicy = "mar1"
)

// ParseLeapDayPolicy validates a configured policy. Empty means LeapDayExact.
func ParseLeapDayPolicy(s string) (LeapDayPolicy, error) {
	switch p := LeapDayPolicy(s); p {
	case "":
		return LeapDayExact, nil
	case LeapDayExact, LeapDayFeb28, LeapDayMar1:
		return p, nil
	default:
		return "", fmt.Errorf("unknown leap day policy %q", s)
	}
}

// matchingDays returns the stored (month, day) values that fire on today.
func (p LeapDayPolicy) matchingDays(today Today) []store.MonthDay {
	days := []store.MonthDay{{Month: today.Month, Day: today.Day}}
	if today.leapYear() {
		return days
	}
	switch {
	case p == LeapDayFeb28 && today.Month == 2 && today.Day == 28:
		days = append(days, store.MonthDay{Month: 2, Day: 29})
	case p == LeapDayMar1 && today.Month == 3 && today.Day == 1:
		days = append(days, store.MonthDay{Month: 2, Day: 29})
	}
	return days
}
