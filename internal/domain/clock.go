package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses a daily wall-clock time in HH:MM form.
func ParseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule time %q must be HH:MM", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule time %q: invalid hour", hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule time %q: invalid minute", hhmm)
	}
	return hour, minute, nil
}
