package models

import (
	"time"

	"github.com/gosi-lab/predict-service/internal/scoring"
)

// StatisticsSubjectTotal is the pseudo subject code of the composite-score
// statistics row.
const StatisticsSubjectTotal = "sum"

// Statistics is the cohort summary of one subject (or of the composite
// total) of an exam. All score fields are stored rounded to one decimal.
type Statistics struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ExamID      uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_statistics_exam_subject"`
	SubjectCode string `json:"subject_code" gorm:"not null;size:20;uniqueIndex:idx_statistics_exam_subject"`

	Participants int     `json:"participants" gorm:"not null;default:0"`
	Max          float64 `json:"max" gorm:"not null;default:0"`
	T10          float64 `json:"t10" gorm:"not null;default:0"`
	T25          float64 `json:"t25" gorm:"not null;default:0"`
	T50          float64 `json:"t50" gorm:"not null;default:0"`
	Avg          float64 `json:"avg" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stat converts the row into the computation value.
func (s *Statistics) Stat() scoring.Stat {
	return scoring.Stat{
		Participants: s.Participants,
		Max:          s.Max,
		T10:          s.T10,
		T25:          s.T25,
		T50:          s.T50,
		Avg:          s.Avg,
	}
}

// ApplyStat overwrites the summary fields from a computed value and reports
// whether anything changed.
func (s *Statistics) ApplyStat(st scoring.Stat) bool {
	if s.Stat() == st {
		return false
	}
	s.Participants = st.Participants
	s.Max = st.Max
	s.T10 = st.T10
	s.T25 = st.T25
	s.T50 = st.T50
	s.Avg = st.Avg
	return true
}

// AnswerCount is the answer distribution of one problem for one rank tier.
// Option buckets are flat columns so submission confirmation can bump them
// with a single atomic UPDATE.
type AnswerCount struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	ProblemID uint         `json:"problem_id" gorm:"not null;uniqueIndex:idx_answer_count_problem_tier;index"`
	ExamID    uint         `json:"exam_id" gorm:"not null;index"`
	Tier      scoring.Tier `json:"tier" gorm:"not null;size:8;uniqueIndex:idx_answer_count_problem_tier"`

	Count0        int `json:"count_0" gorm:"not null;default:0"` // blank
	Count1        int `json:"count_1" gorm:"not null;default:0"`
	Count2        int `json:"count_2" gorm:"not null;default:0"`
	Count3        int `json:"count_3" gorm:"not null;default:0"`
	Count4        int `json:"count_4" gorm:"not null;default:0"`
	Count5        int `json:"count_5" gorm:"not null;default:0"`
	CountMultiple int `json:"count_multiple" gorm:"not null;default:0"`
	CountSum      int `json:"count_sum" gorm:"not null;default:0"`

	AnswerPredict int `json:"answer_predict" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counts converts the row into the computation tally.
func (a *AnswerCount) Counts(optionCount int) *scoring.Counts {
	c := scoring.NewCounts(optionCount)
	cols := []int{a.Count0, a.Count1, a.Count2, a.Count3, a.Count4, a.Count5}
	for opt := 0; opt <= optionCount && opt < len(cols); opt++ {
		c.Picked[opt] = cols[opt]
	}
	c.Multiple = a.CountMultiple
	c.Sum = a.CountSum
	return c
}

// ApplyCounts overwrites the bucket columns from a computed tally and
// reports whether anything changed.
func (a *AnswerCount) ApplyCounts(c *scoring.Counts) bool {
	next := *a
	next.Count0, next.Count1, next.Count2, next.Count3, next.Count4, next.Count5 = 0, 0, 0, 0, 0, 0
	cols := []*int{&next.Count0, &next.Count1, &next.Count2, &next.Count3, &next.Count4, &next.Count5}
	for opt := 0; opt < len(c.Picked) && opt < len(cols); opt++ {
		*cols[opt] = c.Picked[opt]
	}
	next.CountMultiple = c.Multiple
	next.CountSum = c.Sum
	next.AnswerPredict = c.Predicted()

	if next.Count0 == a.Count0 && next.Count1 == a.Count1 && next.Count2 == a.Count2 &&
		next.Count3 == a.Count3 && next.Count4 == a.Count4 && next.Count5 == a.Count5 &&
		next.CountMultiple == a.CountMultiple && next.CountSum == a.CountSum &&
		next.AnswerPredict == a.AnswerPredict {
		return false
	}
	*a = next
	return true
}
