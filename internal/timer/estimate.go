package timer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseEstimate reads the free-text estimates people type into a log:
// "25m", "1h", "1h30m", "1.5h" or a bare number of minutes. Stored
// estimates are never validated; this is only used for display.
func ParseEstimate(text string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty estimate")
	}

	if mins, err := strconv.ParseFloat(s, 64); err == nil {
		if mins < 0 || math.IsNaN(mins) || math.IsInf(mins, 0) {
			return 0, fmt.Errorf("invalid estimate %q", text)
		}
		return time.Duration(mins * float64(time.Minute)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid estimate %q", text)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative estimate %q", text)
	}
	return d, nil
}
