package executor

import (
	"time"

	"SignalDesk/internal/model"
)

// candidateDate turns a partial date hint into a concrete candidate. When the
// year is unspecified the current year is assumed; a candidate that has
// already passed rolls forward one year. rolled reports whether that rollover
// happened, which matters for the ambiguity check downstream.
func candidateDate(hint model.PartialDate, now time.Time) (candidate time.Time, rolled bool) {
	year := hint.Year
	if year == 0 {
		year = now.Year()
	}
	candidate = time.Date(year, hint.Month, hint.Day, 0, 0, 0, 0, time.UTC)
	if hint.Year == 0 && candidate.Before(now.Truncate(24*time.Hour)) {
		candidate = candidate.AddDate(1, 0, 0)
		rolled = true
	}
	return candidate, rolled
}

// nearestExpiration picks the listed expiration closest to the candidate,
// considering only future expirations. Ties break to the earlier date. With a
// zero candidate (no date hint) the soonest future expiration wins.
//
// A rolled-over candidate whose year has no listed expirations at all is
// ambiguous: the signal's month/day already passed this year and next year's
// chain is not yet listed, so guessing across the rollover is refused.
func nearestExpiration(listed []time.Time, candidate time.Time, rolled bool, now time.Time) (time.Time, error) {
	today := now.Truncate(24 * time.Hour)
	var future []time.Time
	for _, d := range listed {
		if !d.Before(today) {
			future = append(future, d)
		}
	}
	if len(future) == 0 {
		return time.Time{}, ErrNoExpirations
	}

	if candidate.IsZero() {
		best := future[0]
		for _, d := range future[1:] {
			if d.Before(best) {
				best = d
			}
		}
		return best, nil
	}

	if rolled {
		listedInYear := false
		for _, d := range future {
			if d.Year() >= candidate.Year() {
				listedInYear = true
				break
			}
		}
		if !listedInYear {
			return time.Time{}, ErrDateAmbiguous
		}
	}

	best := future[0]
	bestDist := absDuration(future[0].Sub(candidate))
	for _, d := range future[1:] {
		dist := absDuration(d.Sub(candidate))
		if dist < bestDist || (dist == bestDist && d.Before(best)) {
			best, bestDist = d, dist
		}
	}
	return best, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
