package sqltranslate

import "time"

// dateLayouts are the five formats spec.md §4.4/§9 requires the
// translator to recognize for timestamp coercion: date-only, and
// date+time with a space or "T" separator, with or without seconds.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// parseDateString attempts each supported layout in turn, always
// interpreting the result as UTC per spec.md §9 ("all timestamps stored
// and compared in UTC"). Returns ok=false if no layout matches; the
// caller falls through to binding the raw string.
func parseDateString(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
