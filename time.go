package admin

import (
	"time"

	"github.com/goliatone/go-errors"
)

// IsOutsideThresholdPeriod reports whether start is older than the given
// window, expressed as a time.ParseDuration string like "24h".
func IsOutsideThresholdPeriod(start time.Time, window string) (bool, error) {
	threshold, err := time.ParseDuration(window)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryBadInput, "invalid threshold period").
			WithMetadata(map[string]any{"window": window})
	}
	return time.Since(start) > threshold, nil
}
