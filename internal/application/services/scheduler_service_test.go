package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNextRun(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cron     string
		timezone string
		want     time.Time
	}{
		{
			name: "hourly in UTC",
			cron: "0 * * * *",
			want: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily at nine in a named zone",
			cron:     "0 9 * * *",
			timezone: "Asia/Tokyo",
			// 08:30 UTC is 17:30 in Tokyo, so the next 09:00 local is tomorrow 00:00 UTC
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "unknown zone falls back to UTC",
			cron:     "0 9 * * *",
			timezone: "Mars/Olympus_Mons",
			want:     time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calculateNextRun(tt.cron, tt.timezone, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestCalculateNextRunRejectsBadExpression(t *testing.T) {
	_, err := calculateNextRun("every tuesday", "UTC", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")

	// seconds field is not accepted
	_, err = calculateNextRun("0 0 9 * * *", "", time.Now())
	assert.Error(t, err)
}

func TestSchedulerService_StopBeforeStart(t *testing.T) {
	s := NewSchedulerService(nil, nil, time.Hour)
	s.Stop()
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start kept running after Stop")
	}
}
