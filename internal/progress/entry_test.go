package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastDuration(t *testing.T) {
	duration, err := FastDuration("08:00", "20:00")
	require.NoError(t, err)
	assert.Equal(t, 12.0, duration)

	// midnight rollover: 22:00 -> 14:00 next day
	duration, err = FastDuration("22:00", "14:00")
	require.NoError(t, err)
	assert.Equal(t, 16.0, duration)

	duration, err = FastDuration("20:30", "12:45")
	require.NoError(t, err)
	assert.Equal(t, 16.25, duration)

	// start == end means a full day passed
	duration, err = FastDuration("09:00", "09:00")
	require.NoError(t, err)
	assert.Equal(t, 0.0, duration)
}

func TestFastDuration_invalidInput(t *testing.T) {
	for _, tc := range []struct {
		start, end string
	}{
		{"", "20:00"},
		{"08:00", ""},
		{"8am", "20:00"},
		{"25:00", "20:00"},
		{"08:61", "20:00"},
		{"08:00", "24:00"},
	} {
		_, err := FastDuration(tc.start, tc.end)
		assert.Error(t, err, "%s -> %s", tc.start, tc.end)
	}
}
