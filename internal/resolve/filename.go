package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// fileNameDatePattern matches yyyy[sep]MM[sep]dd with optional [sep]HH, [sep]mm
// and [sep]ss pairs, where each separator is at most one non-digit character.
var fileNameDatePattern = regexp.MustCompile(`(\d{4})\D?(\d{2})\D?(\d{2})(?:\D?(\d{2}))?(?:\D?(\d{2}))?(?:\D?(\d{2}))?`)

var fileNameYearPrefixes = []string{"19", "20", "21"}

// ParseFileNameDate extracts a calendar timestamp from a base name with the
// extension already stripped. Only the first date-like run is considered.
func ParseFileNameDate(name string) (time.Time, bool) {
	m := fileNameDatePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	if !hasYearPrefix(m[1]) {
		return time.Time{}, false
	}

	nums := make([]int, 0, 6)
	for _, group := range m[1:] {
		if group == "" {
			break
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return time.Time{}, false
		}
		nums = append(nums, n)
	}

	var hour, minute, second int
	switch {
	case len(nums) == 6:
		hour, minute, second = nums[3], nums[4], nums[5]
	case len(nums) == 5:
		hour, minute = nums[3], nums[4]
	case len(nums) >= 3:
	default:
		return time.Time{}, false
	}
	return calendarDate(nums[0], nums[1], nums[2], hour, minute, second)
}

func hasYearPrefix(year string) bool {
	for _, prefix := range fileNameYearPrefixes {
		if strings.HasPrefix(year, prefix) {
			return true
		}
	}
	return false
}

// calendarDate builds a UTC time and rejects values time.Date would normalise,
// such as month 13 or 31 April.
func calendarDate(year, month, day, hour, minute, second int) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, false
	}
	return t, true
}
