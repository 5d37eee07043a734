package isodate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "hours minutes seconds", input: "PT1H30M5S", want: time.Hour + 30*time.Minute + 5*time.Second},
		{name: "days only", input: "P2D", want: 48 * time.Hour},
		{name: "minutes only", input: "PT10M", want: 10 * time.Minute},
		{name: "fractional seconds", input: "PT0.5S", want: 500 * time.Millisecond},
		{name: "weeks", input: "P1W", want: 7 * 24 * time.Hour},
		{name: "empty designator", input: "P", wantErr: true},
		{name: "garbage", input: "not a duration", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	_, err := ParseTimestamp("2030-01-02T15:04:05Z")
	assert.NoError(t, err)

	_, err = ParseTimestamp("2030-01-02")
	assert.NoError(t, err)

	_, err = ParseTimestamp("nonsense")
	assert.Error(t, err)
}
