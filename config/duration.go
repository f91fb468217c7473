// config/duration.go
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errNonPositive = errors.New("duration must be > 0")

// parseDurationFlexible accepts "90s"/"2m" strings, numeric seconds, or time.Duration.
// Returns def on empty/unknown types; returns def + error on invalid or non-positive values.
func parseDurationFlexible(raw any, def time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := raw.(type) {
	case time.Duration:
		d = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			// plain seconds in string form, e.g. "120"
			n, nerr := strconv.ParseInt(s, 10, 64)
			if nerr != nil {
				return def, fmt.Errorf("cannot parse duration %q", s)
			}
			parsed = time.Duration(n) * time.Second
		}
		d = parsed
	case int:
		d = time.Duration(t) * time.Second
	case int32:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	default:
		return def, nil
	}
	if d <= 0 {
		return def, errNonPositive
	}
	return d, nil
}
