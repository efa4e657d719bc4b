package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student is one registered participant of an exam. UserID is the opaque
// identity from the auth provider; a user registers at most once per exam.
type Student struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_student_exam_user;index"`
	UserID string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_student_exam_user"`
	Name   string `json:"name" gorm:"not null;size:50"`
	Serial string `json:"serial" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam  Exam   `json:"-" gorm:"foreignKey:ExamID"`
	Score *Score `json:"score,omitempty" gorm:"foreignKey:StudentID"`
	Rank  *Rank  `json:"rank,omitempty" gorm:"foreignKey:StudentID"`
}

// Submission is one confirmed answer. Rows are bulk-created when the student
// confirms a whole subject and are immutable afterwards.
type Submission struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex:idx_submission_student_problem;index"`
	ProblemID uint `json:"problem_id" gorm:"not null;uniqueIndex:idx_submission_student_problem;index"`

	// Denormalized problem coordinates for cohort scans without joins.
	ExamID      uint   `json:"exam_id" gorm:"not null;index"`
	SubjectCode string `json:"subject_code" gorm:"not null;size:20;index"`
	Number      int    `json:"number" gorm:"not null"`

	Answer int `json:"answer" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
}

// SubjectScores maps subject code to points; nil marks a subject the student
// has not confirmed.
type SubjectScores map[string]*float64

// SubjectRanks maps subject code to rank within the subject cohort.
type SubjectRanks map[string]int

// Score holds one student's graded points: the official grading alongside
// the crowd-predicted grading available before the key opens.
type Score struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex"`
	ExamID    uint `json:"exam_id" gorm:"not null;index"`

	Subjects        datatypes.JSONType[SubjectScores] `json:"subjects" gorm:"type:jsonb"`
	SubjectsPredict datatypes.JSONType[SubjectScores] `json:"subjects_predict" gorm:"type:jsonb"`
	Total           *float64                          `json:"total"`
	TotalPredict    *float64                          `json:"total_predict"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rank holds one student's standing per subject and overall. Zero means not
// ranked yet. Participants is the composite cohort size at the time of the
// last recompute.
type Rank struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex"`
	ExamID    uint `json:"exam_id" gorm:"not null;index"`

	Subjects     datatypes.JSONType[SubjectRanks] `json:"subjects" gorm:"type:jsonb"`
	Total        int                              `json:"total" gorm:"not null;default:0"`
	Participants int                              `json:"participants" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
