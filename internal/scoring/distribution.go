package scoring

// Tier segments a ranked cohort for per-question answer analytics.
type Tier string

const (
	TierAll Tier = "all"
	TierTop Tier = "top"
	TierMid Tier = "mid"
	TierLow Tier = "low"
)

// Default rank-ratio boundaries of the top and middle tiers.
const (
	TopTierRatio = 0.27
	MidTierRatio = 0.73
)

// Tiers lists every tier in storage order.
func Tiers() []Tier {
	return []Tier{TierAll, TierTop, TierMid, TierLow}
}

// TierOf places a ranked student into a tier by rank ratio. Students without
// a rank yet (rank or participants zero) belong to no tier.
func TierOf(rank, participants int) (Tier, bool) {
	if rank <= 0 || participants <= 0 {
		return "", false
	}
	ratio := float64(rank) / float64(participants)
	switch {
	case ratio <= TopTierRatio:
		return TierTop, true
	case ratio <= MidTierRatio:
		return TierMid, true
	default:
		return TierLow, true
	}
}

// Counts tallies how one cohort answered one problem. Options are indexed
// directly: Picked[i] is the number of students who marked option i, with
// Picked[0] counting blanks. Multiple-mark spoils are tallied separately.
type Counts struct {
	Picked   []int
	Multiple int
	Sum      int
}

// NewCounts returns an empty tally for a problem with the given option count.
func NewCounts(optionCount int) *Counts {
	return &Counts{Picked: make([]int, optionCount+1)}
}

// OptionCount returns the number of answer options this tally covers.
func (c *Counts) OptionCount() int {
	return len(c.Picked) - 1
}

// Add records one submitted answer.
func (c *Counts) Add(answer int) {
	switch {
	case answer >= 0 && answer < len(c.Picked):
		c.Picked[answer]++
	default:
		c.Multiple++
	}
	c.Sum++
}

// Predicted returns the crowd-predicted answer: the most-picked numbered
// option, lowest option winning ties. Zero means no basis for a prediction.
func (c *Counts) Predicted() int {
	best, bestCount := 0, 0
	for opt := 1; opt < len(c.Picked); opt++ {
		if c.Picked[opt] > bestCount {
			best, bestCount = opt, c.Picked[opt]
		}
	}
	return best
}

// Rate returns the percentage of the cohort that picked the given option.
// An empty tally rates everything at zero.
func (c *Counts) Rate(option int) float64 {
	if c.Sum == 0 || option < 0 || option >= len(c.Picked) {
		return 0
	}
	return float64(c.Picked[option]) * 100 / float64(c.Sum)
}

// RankedAnswer is one student's answer to a problem together with the
// student's standing, used for tier segmentation.
type RankedAnswer struct {
	Answer       int
	Rank         int
	Participants int
}

// TallyByTier builds the per-tier answer distribution for one problem.
// Every answer lands in the all-tier; only ranked students land in a
// rank tier as well.
func TallyByTier(answers []RankedAnswer, optionCount int) map[Tier]*Counts {
	tallies := map[Tier]*Counts{
		TierAll: NewCounts(optionCount),
		TierTop: NewCounts(optionCount),
		TierMid: NewCounts(optionCount),
		TierLow: NewCounts(optionCount),
	}
	for _, a := range answers {
		tallies[TierAll].Add(a.Answer)
		if tier, ok := TierOf(a.Rank, a.Participants); ok {
			tallies[tier].Add(a.Answer)
		}
	}
	return tallies
}
