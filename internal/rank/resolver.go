// Package rank derives the competitive ordering of a quiz's result set.
package rank

import (
	"sort"

	"quiz-attempt-service/internal/domain"
)

// Assign orders the results and assigns dense sequential ranks 1..N. Ordering
// is marks obtained descending, then time taken ascending (faster wins ties),
// then submission time ascending (first to submit wins exact ties). Even exact
// ties receive distinct sequential ranks, so the rank set is always a
// permutation of 1..N. The input slice is not modified.
func Assign(results []domain.Result) []domain.Result {
	ordered := make([]domain.Result, len(results))
	copy(ordered, results)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MarksObtained != ordered[j].MarksObtained {
			return ordered[i].MarksObtained > ordered[j].MarksObtained
		}
		if ordered[i].TimeTakenSeconds != ordered[j].TimeTakenSeconds {
			return ordered[i].TimeTakenSeconds < ordered[j].TimeTakenSeconds
		}
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})

	for i := range ordered {
		ordered[i].Rank = i + 1
	}
	return ordered
}

// Entries projects ranked results into leaderboard rows, rank ascending.
func Entries(ordered []domain.Result) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(ordered))
	for _, r := range ordered {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:             r.Rank,
			StudentID:        r.StudentID,
			AttemptID:        r.AttemptID,
			MarksObtained:    r.MarksObtained,
			Percentage:       r.Percentage,
			TimeTakenSeconds: r.TimeTakenSeconds,
			SubmittedAt:      r.SubmittedAt,
		})
	}
	return entries
}
