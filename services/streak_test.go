package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quitline/quitline/models"
)

func dayRecord(daysAgo, smoked int, now time.Time) models.ProgressRecord {
	return models.ProgressRecord{
		RecordDate:       models.DayOf(now).AddDate(0, 0, -daysAgo),
		CigarettesSmoked: smoked,
	}
}

func TestCalculateStreak(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		history []models.ProgressRecord
		want    int
	}{
		{
			name:    "no history",
			history: nil,
			want:    0,
		},
		{
			name: "single clean day today",
			history: []models.ProgressRecord{
				dayRecord(0, 0, now),
			},
			want: 1,
		},
		{
			name: "single clean day yesterday still counts",
			history: []models.ProgressRecord{
				dayRecord(1, 0, now),
			},
			want: 1,
		},
		{
			name: "most recent record older than yesterday breaks the chain",
			history: []models.ProgressRecord{
				dayRecord(2, 0, now),
				dayRecord(3, 0, now),
			},
			want: 0,
		},
		{
			name: "consecutive clean days",
			history: []models.ProgressRecord{
				dayRecord(0, 0, now),
				dayRecord(1, 0, now),
				dayRecord(2, 0, now),
			},
			want: 3,
		},
		{
			name: "smoked day terminates the walk",
			history: []models.ProgressRecord{
				dayRecord(0, 0, now),
				dayRecord(1, 0, now),
				dayRecord(2, 5, now),
				dayRecord(3, 0, now),
			},
			want: 2,
		},
		{
			name: "gap in days terminates the walk",
			history: []models.ProgressRecord{
				dayRecord(0, 0, now),
				dayRecord(1, 0, now),
				dayRecord(3, 0, now),
			},
			want: 2,
		},
		{
			name: "most recent day smoked",
			history: []models.ProgressRecord{
				dayRecord(0, 2, now),
				dayRecord(1, 0, now),
			},
			want: 0,
		},
		{
			name: "streak anchored at yesterday when today not yet logged",
			history: []models.ProgressRecord{
				dayRecord(1, 0, now),
				dayRecord(2, 0, now),
				dayRecord(3, 0, now),
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateStreak(tt.history, now))
		})
	}
}

func TestCalculateStreakIgnoresTimeOfDay(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 5, 0, 0, time.UTC)
	history := []models.ProgressRecord{
		{RecordDate: time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)},
		{RecordDate: time.Date(2026, 8, 29, 1, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, 2, CalculateStreak(history, now))
}
