package column

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"

	// canonical is "yyyy-[m]m-[d]d hh:mm:ss[.f...]"; time.Parse accepts the
	// optional fraction after the seconds field without it being in the layout.
	canonicalLayout = "2006-1-2 15:04:05"
)

// looseLayouts are tried in order once the canonical form fails.
var looseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-1-2 15:04:05 -0700",
	"2006-1-2 15:04:05.999999999-07",
	"2006-1-2 15:04:05.999999999-07:00",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006.1.2 15:04:05",
	"2006.1.2",
	"20060102 15:04:05",
	"2006年1月2日 15时04分05秒",
	"2006年1月2日",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
}

// ParseTimestampStrict accepts only the canonical form and reports the number
// of fractional-second digits present in s.
func ParseTimestampStrict(s string) (time.Time, int, error) {
	t, err := time.ParseInLocation(canonicalLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, fractionDigits(s), nil
}

// fractionDigits counts the digits after the seconds field: the first '.'
// that follows a ':' and a digit. Dots inside the date part are skipped.
func fractionDigits(s string) int {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return 0
	}
	dot := strings.IndexByte(s[colon:], '.')
	if dot < 0 {
		return 0
	}
	dot += colon
	if c := s[dot-1]; c < '0' || c > '9' {
		return 0
	}
	n := 0
	for _, c := range s[dot+1:] {
		if c < '0' || c > '9' {
			break
		}
		n++
	}
	if n > 9 {
		n = 9
	}
	return n
}

// ParseTimestampLoose tries epoch numbers and a list of common layouts.
func ParseTimestampLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		return parseDigits(s)
	}
	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseDigits(s string) (time.Time, bool) {
	switch len(s) {
	case 8:
		t, err := time.ParseInLocation("20060102", s, time.UTC)
		return t, err == nil
	case 14:
		t, err := time.ParseInLocation("20060102150405", s, time.UTC)
		return t, err == nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	switch len(s) {
	case 10:
		return time.Unix(n, 0).UTC(), true
	case 13:
		return time.UnixMilli(n).UTC(), true
	case 16:
		return time.UnixMicro(n).UTC(), true
	case 19:
		return time.Unix(0, n).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimestamp tries the canonical form, then the loose layouts, and
// reports the fractional-second digits written in s.
func ParseTimestamp(s string) (time.Time, int, bool) {
	if t, p, err := ParseTimestampStrict(s); err == nil {
		return t, p, true
	}
	t, ok := ParseTimestampLoose(s)
	if !ok {
		return time.Time{}, 0, false
	}
	return t, fractionDigits(strings.TrimSpace(s)), true
}

// TruncateToPrecision drops the fractional-second digits of t beyond precision.
func TruncateToPrecision(t time.Time, precision int) time.Time {
	if precision >= 9 {
		return t
	}
	if precision < 0 {
		precision = 0
	}
	unit := time.Duration(1)
	for i := precision; i < 9; i++ {
		unit *= 10
	}
	return t.Truncate(unit)
}

// FormatTimestamp renders t in UTC as "yyyy-MM-dd HH:mm:ss" followed by
// exactly precision fractional digits.
func FormatTimestamp(t time.Time, precision int) string {
	t = t.UTC()
	out := t.Format(TimestampLayout)
	if precision <= 0 {
		return out
	}
	if precision > 9 {
		precision = 9
	}
	return out + "." + fmt.Sprintf("%09d", t.Nanosecond())[:precision]
}

// ParseTime parses a time of day such as "15:04:05" or "15:04:05.123".
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.UTC)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout + ".999999999")
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// EpochDays is the number of days between the epoch and the day of t.
func EpochDays(t time.Time) int32 {
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int32(day.Unix() / 86400)
}

func FromEpochDays(days int32) time.Time {
	return epoch.AddDate(0, 0, int(days))
}

// MillisOfDay is the time of day of t in milliseconds.
func MillisOfDay(t time.Time) int32 {
	t = t.UTC()
	return int32(t.Hour()*3_600_000 + t.Minute()*60_000 + t.Second()*1000 + t.Nanosecond()/1_000_000)
}

func FromMillisOfDay(ms int32) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}
