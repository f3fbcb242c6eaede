package rules

import "time"

const (
	MinTokenBatch = 1
	MaxTokenBatch = 50
)

var planDays = []int{7, 15, 30}

func ValidPlanDays(days int) bool {
	for _, d := range planDays {
		if d == days {
			return true
		}
	}
	return false
}

func PlanDurations() []int {
	out := make([]int, len(planDays))
	copy(out, planDays)
	return out
}

func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// WholeDaysLeft reports the number of complete 24h periods between now and
// expiry, clamped to zero once the deadline has passed.
func WholeDaysLeft(now, expiresAt time.Time) int {
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(diff / (24 * time.Hour))
}
