package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"1700000000", time.Unix(1700000000, 0), true},
		{"1700000000.5", time.Unix(1700000000, 500000000), true},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTime(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.WithinDuration(t, tc.want, got, time.Millisecond)
		})
	}
	now, err := ParseTime("now")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), now, time.Second)
}

func TestRangingResultString(t *testing.T) {
	r := &RangingResult{Type: 1, Version: 1, RTT: 12 * time.Millisecond}
	require.Equal(t, "ranging ack type=1 version=1 rtt=12ms", r.String())
}
