package scoring

import "sort"

// RankCohort assigns a rank to every scored member of a cohort. Keys are
// opaque member IDs. An empty cohort yields an empty map.
//
// Both methods give tied scores the same rank; they differ only in how that
// shared rank is derived, and the two exam generations this service covers
// used one each, so the method is part of the exam configuration.
func RankCohort(scores map[int64]float64, method RankMethod) map[int64]int {
	ranks := make(map[int64]int, len(scores))
	if len(scores) == 0 {
		return ranks
	}
	switch method {
	case RankPositional:
		sorted := make([]float64, 0, len(scores))
		for _, s := range scores {
			sorted = append(sorted, s)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		for id, s := range scores {
			ranks[id] = firstIndex(sorted, s) + 1
		}
	default: // RankCompetitive
		for id, s := range scores {
			greater := 0
			for _, other := range scores {
				if other > s {
					greater++
				}
			}
			ranks[id] = greater + 1
		}
	}
	return ranks
}

func firstIndex(sortedDesc []float64, score float64) int {
	for i, s := range sortedDesc {
		if s == score {
			return i
		}
	}
	return 0
}
