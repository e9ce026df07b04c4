package admin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOutsideThresholdPeriod(t *testing.T) {
	outside, err := IsOutsideThresholdPeriod(time.Now().Add(-25*time.Hour), "24h")
	require.NoError(t, err)
	assert.True(t, outside)

	outside, err = IsOutsideThresholdPeriod(time.Now().Add(-time.Hour), "24h")
	require.NoError(t, err)
	assert.False(t, outside)
}

func TestIsOutsideThresholdPeriodInvalidWindow(t *testing.T) {
	_, err := IsOutsideThresholdPeriod(time.Now(), "one day")
	require.Error(t, err)
}
