package scoring

import (
	"math"
	"sort"
)

// Stat is the summary of one scored cohort. T10/T25/T50 are the lowest
// scores still inside the top 10%/25%/50% of the cohort. All score fields
// are rounded to one decimal place.
type Stat struct {
	Participants int     `json:"participant_count"`
	Max          float64 `json:"max"`
	T10          float64 `json:"t10"`
	T25          float64 `json:"t25"`
	T50          float64 `json:"t50"`
	Avg          float64 `json:"avg"`
}

// Cohort computes the summary of a score list. An empty cohort yields the
// zero Stat rather than an error: a subject nobody has confirmed yet is a
// normal state, not a failure.
func Cohort(scores []float64) Stat {
	n := len(scores)
	if n == 0 {
		return Stat{}
	}
	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	sum := 0.0
	for _, s := range sorted {
		sum += s
	}
	return Stat{
		Participants: n,
		Max:          Round1(sorted[0]),
		T10:          Round1(threshold(sorted, 0.10)),
		T25:          Round1(threshold(sorted, 0.25)),
		T50:          Round1(threshold(sorted, 0.50)),
		Avg:          Round1(sum / float64(n)),
	}
}

// threshold picks the boundary score of the top fraction p: the score at
// position int(n*p) in the descending sort, clamped so at least the top
// scorer qualifies.
func threshold(sortedDesc []float64, p float64) float64 {
	idx := int(float64(len(sortedDesc)) * p)
	if idx < 1 {
		idx = 1
	}
	return sortedDesc[idx-1]
}

// Round1 rounds to one decimal place, the precision every stored score and
// statistic uses.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
