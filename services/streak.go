package services

import (
	"time"

	"github.com/quitline/quitline/models"
)

// CalculateStreak counts consecutive clean (zero cigarettes) days ending at or
// adjacent to now. history must be ordered by record_date descending and is
// expected to be bounded to the configured recent window by the caller.
//
// The chain is anchored at the most recent record: if that record's day is
// already older than yesterday the streak is broken regardless of what came
// before. Any smoked day or missing day terminates the walk.
func CalculateStreak(history []models.ProgressRecord, now time.Time) int {
	if len(history) == 0 {
		return 0
	}

	mostRecent := models.DayOf(history[0].RecordDate)
	yesterday := models.DayOf(now).AddDate(0, 0, -1)
	if mostRecent.Before(yesterday) {
		return 0
	}

	streak := 0
	expected := mostRecent
	for _, rec := range history {
		day := models.DayOf(rec.RecordDate)
		if day.After(expected) {
			// Duplicate of an already-counted day; the storage invariant
			// forbids this, but if it happens the first occurrence wins.
			continue
		}
		if !models.SameDay(day, expected) || rec.CigarettesSmoked != 0 {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}
