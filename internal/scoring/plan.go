package scoring

// RankMethod selects how tied scores are ranked within a cohort.
type RankMethod string

const (
	// RankPositional ranks a score by its first position in the descending
	// sort of the cohort.
	RankPositional RankMethod = "positional"

	// RankCompetitive ranks a score as one plus the number of strictly
	// greater scores. Tied students share the rank and the next rank is
	// skipped.
	RankCompetitive RankMethod = "competitive"
)

// SubjectPlan describes one graded subject of an exam.
type SubjectPlan struct {
	Code         string
	Name         string
	Position     int
	ProblemCount int
	Weight       float64 // points awarded per correct answer
}

// ExamPlan is the immutable grading configuration of a single exam,
// materialized from the exam and subject rows before any computation runs.
type ExamPlan struct {
	OptionCount int // number of answer options per problem (4 or 5)
	Method      RankMethod
	Subjects    []SubjectPlan
}

// Subject returns the plan for the given subject code.
func (p ExamPlan) Subject(code string) (SubjectPlan, bool) {
	for _, s := range p.Subjects {
		if s.Code == code {
			return s, true
		}
	}
	return SubjectPlan{}, false
}

// SubjectCodes returns the subject codes in grading order.
func (p ExamPlan) SubjectCodes() []string {
	codes := make([]string, 0, len(p.Subjects))
	for _, s := range p.Subjects {
		codes = append(codes, s.Code)
	}
	return codes
}
