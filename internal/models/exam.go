package models

import (
	"time"

	"github.com/gosi-lab/predict-service/internal/scoring"
)

// Exam is one round of a practice test. OptionCount and RankMethod drive all
// grading for the exam; the two fields exist because the covered exam series
// differ in answer-sheet layout and ranking convention.
type Exam struct {
	ID          uint               `json:"id" gorm:"primaryKey"`
	Year        int                `json:"year" gorm:"not null;uniqueIndex:idx_exam_year_round"`
	Round       int                `json:"round" gorm:"not null;uniqueIndex:idx_exam_year_round"`
	Name        string             `json:"name" gorm:"not null;size:100"`
	OptionCount int                `json:"option_count" gorm:"not null;default:5"`
	RankMethod  scoring.RankMethod `json:"rank_method" gorm:"size:16;not null;default:competitive"`

	// Phase gates. Submissions open with PredictOpenedAt; official grading
	// starts once OfficialOpenedAt has passed.
	PredictOpenedAt  *time.Time `json:"predict_opened_at"`
	PredictClosedAt  *time.Time `json:"predict_closed_at"`
	OfficialOpenedAt *time.Time `json:"official_opened_at"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Subjects []ExamSubject `json:"subjects" gorm:"foreignKey:ExamID"`
}

// PredictOpen reports whether students may confirm answers right now.
func (e *Exam) PredictOpen(now time.Time) bool {
	if e.PredictOpenedAt == nil || now.Before(*e.PredictOpenedAt) {
		return false
	}
	return e.PredictClosedAt == nil || now.Before(*e.PredictClosedAt)
}

// OfficialOpen reports whether the official answer key is in effect.
func (e *Exam) OfficialOpen(now time.Time) bool {
	return e.OfficialOpenedAt != nil && !now.Before(*e.OfficialOpenedAt)
}

// Plan materializes the exam's grading configuration. Subjects must be
// preloaded.
func (e *Exam) Plan() scoring.ExamPlan {
	plan := scoring.ExamPlan{
		OptionCount: e.OptionCount,
		Method:      e.RankMethod,
		Subjects:    make([]scoring.SubjectPlan, 0, len(e.Subjects)),
	}
	for _, s := range e.Subjects {
		plan.Subjects = append(plan.Subjects, scoring.SubjectPlan{
			Code:         s.Code,
			Name:         s.Name,
			Position:     s.Position,
			ProblemCount: s.ProblemCount,
			Weight:       s.ScorePerProblem,
		})
	}
	return plan
}

// ExamSubject is one graded subject within an exam.
type ExamSubject struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	ExamID          uint    `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_subject_code"`
	Code            string  `json:"code" gorm:"not null;size:20;uniqueIndex:idx_exam_subject_code"`
	Name            string  `json:"name" gorm:"not null;size:50"`
	Position        int     `json:"position" gorm:"not null"`
	ProblemCount    int     `json:"problem_count" gorm:"not null"`
	ScorePerProblem float64 `json:"score_per_problem" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Problem is one numbered question of an exam subject. Answer holds the
// official key (0 until entered; multi-digit for keys accepting several
// options).
type Problem struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ExamID      uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_problem_exam_subject_number;index"`
	SubjectCode string `json:"subject_code" gorm:"not null;size:20;uniqueIndex:idx_problem_exam_subject_number"`
	Number      int    `json:"number" gorm:"not null;uniqueIndex:idx_problem_exam_subject_number"`
	Answer      int    `json:"answer" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
