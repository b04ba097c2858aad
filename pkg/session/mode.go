package session

import (
	"fmt"
	"strings"
)

// Mode is the aggregation window shown to the user.
type Mode string

const (
	Day   Mode = "day"
	Week  Mode = "week"
	Month Mode = "month"
	Year  Mode = "year"
)

var modes = []Mode{Day, Week, Month, Year}

// Modes lists every mode in swipe order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

// ParseMode accepts a mode name or its first letter.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range modes {
		if s == string(m) || (len(s) == 1 && s[0] == m[0]) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want day, week, month or year)", s)
}

// Next is the mode one swipe to the left; Year stays Year.
func (m Mode) Next() Mode {
	for i, x := range modes {
		if x == m && i+1 < len(modes) {
			return modes[i+1]
		}
	}
	return m
}

// Prev is the mode one swipe to the right; Day stays Day.
func (m Mode) Prev() Mode {
	for i, x := range modes {
		if x == m && i > 0 {
			return modes[i-1]
		}
	}
	return m
}

func (m Mode) String() string {
	return string(m)
}
