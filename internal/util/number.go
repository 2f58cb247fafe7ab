package util

import (
	"regexp"
	"strconv"
	"strings"
)

var groupedIntPattern = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// IsGroupedInt reports whether text is an integer written with '.' as the
// thousands separator ("12.345", "1.234.567"). Plain numbers, decimals and
// dates do not qualify.
func IsGroupedInt(text string) bool {
	return groupedIntPattern.MatchString(text)
}

func ParseGroupedInt(text string) (int, bool) {
	if !IsGroupedInt(text) {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(text)
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return value, true
}

// FormatGroupedInt renders value the way Brazilian loyalty sites print balances.
func FormatGroupedInt(value int) string {
	s := strconv.Itoa(value)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
