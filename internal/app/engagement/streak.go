package engagement

import "time"

const day = 24 * time.Hour

// StreakDays counts consecutive active days ending at the most recent one.
// days must be distinct UTC dates, most recent first. A streak whose last
// day is before yesterday (relative to now) is broken and counts 0.
func StreakDays(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	today := now.UTC().Truncate(day)
	last := days[0].UTC().Truncate(day)
	if today.Sub(last) > day {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		prev := days[i-1].UTC().Truncate(day)
		cur := days[i].UTC().Truncate(day)
		if prev.Sub(cur) != day {
			break
		}
		streak++
	}
	return streak
}
