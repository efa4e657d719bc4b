package repositories

import (
	"context"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Year     *int  `json:"year"`
	IsActive *bool `json:"is_active"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
}

type StudentFilters struct {
	Name   *string `json:"name"`
	Serial *string `json:"serial"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// SubjectAnswer addresses one answer within a subject by problem number.
type SubjectAnswer struct {
	Number int `json:"number"`
	Answer int `json:"answer"`
}

// ===== REPOSITORY INTERFACES =====

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	// GetByID returns the exam with its subjects preloaded.
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)
	CreateSubject(ctx context.Context, subject *models.ExamSubject) error
}

type ProblemRepository interface {
	Create(ctx context.Context, problem *models.Problem) error
	Update(ctx context.Context, problem *models.Problem) error
	// GetByExam returns every problem of the exam ordered by subject and number.
	GetByExam(ctx context.Context, examID uint) ([]*models.Problem, error)
	GetByExamSubject(ctx context.Context, examID uint, subjectCode string) ([]*models.Problem, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (*models.Student, error)
	GetByExamAndUser(ctx context.Context, examID uint, userID string) (*models.Student, error)
	ListByExam(ctx context.Context, examID uint, filters StudentFilters) ([]*models.Student, int64, error)
	CountByExam(ctx context.Context, examID uint) (int64, error)
}

type SubmissionRepository interface {
	BulkCreate(ctx context.Context, submissions []*models.Submission) error
	CountByStudentSubject(ctx context.Context, studentID uint, subjectCode string) (int64, error)
	ListByStudent(ctx context.Context, studentID uint) ([]*models.Submission, error)
	ListByStudentSubject(ctx context.Context, studentID uint, subjectCode string) ([]*models.Submission, error)
	// ListByExam returns every submission of the exam, the recompute input.
	ListByExam(ctx context.Context, examID uint) ([]*models.Submission, error)
}

type ScoreRepository interface {
	Create(ctx context.Context, score *models.Score) error
	Save(ctx context.Context, score *models.Score) error
	GetByStudent(ctx context.Context, studentID uint) (*models.Score, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.Score, error)
}

type RankRepository interface {
	Create(ctx context.Context, rank *models.Rank) error
	Save(ctx context.Context, rank *models.Rank) error
	GetByStudent(ctx context.Context, studentID uint) (*models.Rank, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.Rank, error)
}

type StatisticsRepository interface {
	Create(ctx context.Context, stats *models.Statistics) error
	Save(ctx context.Context, stats *models.Statistics) error
	GetByExamSubject(ctx context.Context, examID uint, subjectCode string) (*models.Statistics, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.Statistics, error)
}

type AnswerCountRepository interface {
	Create(ctx context.Context, count *models.AnswerCount) error
	Save(ctx context.Context, count *models.AnswerCount) error
	GetByProblemTier(ctx context.Context, problemID uint, tier scoring.Tier) (*models.AnswerCount, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.AnswerCount, error)
	ListByProblem(ctx context.Context, problemID uint) ([]*models.AnswerCount, error)
	// Increment atomically bumps the bucket of one submitted answer and the
	// running total for the given tiers.
	Increment(ctx context.Context, problemID uint, tiers []scoring.Tier, answer, optionCount int) error
}
