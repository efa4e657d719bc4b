package services

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

// ===== STEP OUTCOMES =====

// StepStatus is the three-way outcome of one recompute sub-step.
type StepStatus string

const (
	StatusNoChange StepStatus = "no_change"
	StatusUpdated  StepStatus = "updated"
	StatusFailed   StepStatus = "failed"
)

// StepOutcome reports what one recompute sub-step did.
type StepOutcome struct {
	Status  StepStatus `json:"status"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  int        `json:"errors"`
	Message string     `json:"message,omitempty"`
}

// RecomputeScope selects which sub-steps a staff recompute runs.
type RecomputeScope string

const (
	ScopeScore       RecomputeScope = "score"
	ScopeRank        RecomputeScope = "rank"
	ScopeStatistics  RecomputeScope = "statistics"
	ScopeAnswerCount RecomputeScope = "answer_count"
	// ScopeResults covers score, rank, and statistics together, the set the
	// confirmation pipeline refreshes.
	ScopeResults RecomputeScope = "results"
	ScopeAll     RecomputeScope = "all"
)

// RecomputeReport is the full result of a staff recompute run.
type RecomputeReport struct {
	ExamID   uint                   `json:"exam_id"`
	Scope    RecomputeScope         `json:"scope"`
	Outcomes map[string]StepOutcome `json:"outcomes"`
}

// ===== REQUEST / RESPONSE DTOS =====

// RegisterRequest registers the calling user as an exam participant.
type RegisterRequest struct {
	Name   string `json:"name" validate:"required,student_name"`
	Serial string `json:"serial" validate:"omitempty,max=20"`
}

// SubmitAnswersRequest confirms one whole subject. Answers are ordered by
// problem number; zero marks a question left blank.
type SubmitAnswersRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// SubmitResult is returned after a successful confirmation.
type SubmitResult struct {
	SubjectCode  string   `json:"subject_code"`
	Confirmed    int      `json:"confirmed"`
	ScorePredict *float64 `json:"score_predict,omitempty"`
	Score        *float64 `json:"score,omitempty"`
}

// AnswerKeyEntry is one (subject, number) → answer mapping from an uploaded
// key.
type AnswerKeyEntry struct {
	SubjectCode string `json:"subject_code"`
	Number      int    `json:"number"`
	Answer      int    `json:"answer"`
}

// AnswerKeyUploadResult summarizes a diff-based answer key import.
type AnswerKeyUploadResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// SubjectReport is one subject section of a student report.
type SubjectReport struct {
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Score        *float64     `json:"score"`
	ScorePredict *float64     `json:"score_predict"`
	Rank         int          `json:"rank"`
	Participants int          `json:"participants"`
	Stat         scoring.Stat `json:"stat"`
}

// ProblemReport is the per-question analytics row of a student report.
type ProblemReport struct {
	Number         int     `json:"number"`
	SubjectCode    string  `json:"subject_code"`
	Answer         int     `json:"answer"`          // student's answer
	AnswerOfficial int     `json:"answer_official"` // 0 while the key is closed
	AnswerPredict  int     `json:"answer_predict"`
	IsCorrect      bool    `json:"is_correct"`
	RateAll        float64 `json:"rate_all"` // correct rate of the whole cohort
	RateTop        float64 `json:"rate_top"`
	RateMid        float64 `json:"rate_mid"`
	RateLow        float64 `json:"rate_low"`
	RateGap        float64 `json:"rate_gap"` // top minus low
}

// FrequencyBin is one bar of the total-score histogram.
type FrequencyBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
	IsOwn bool    `json:"is_own"` // the bin containing the requesting student
}

// StudentReport is the assembled report for one student.
type StudentReport struct {
	Student      *models.Student `json:"student"`
	Total        SubjectReport   `json:"total"`
	Subjects     []SubjectReport `json:"subjects"`
	Problems     []ProblemReport `json:"problems"`
	Frequency    []FrequencyBin  `json:"frequency"`
	OfficialOpen bool            `json:"official_open"`
}

// ===== SERVICE INTERFACES =====

type StudentService interface {
	Register(ctx context.Context, userID string, examID uint, req RegisterRequest) (*models.Student, error)
	Get(ctx context.Context, userID string, examID uint) (*models.Student, error)
}

type SubmissionService interface {
	// SubmitConfirmedAnswers stores one subject's answers and runs the
	// incremental result pipeline.
	SubmitConfirmedAnswers(ctx context.Context, userID string, examID uint, subjectCode string, answers []int) (*SubmitResult, error)
	IsSubjectConfirmed(ctx context.Context, userID string, examID uint, subjectCode string) (bool, error)
	// GetConfirmedAnswers returns the stored sheet of one subject ordered by
	// problem number, empty if nothing is confirmed yet.
	GetConfirmedAnswers(ctx context.Context, userID string, examID uint, subjectCode string) ([]int, error)
}

type RecomputeService interface {
	// Run executes the selected sub-steps in dependency order. Runs on the
	// same exam are serialized.
	Run(ctx context.Context, examID uint, scope RecomputeScope, triggeredBy string) (*RecomputeReport, error)
	// UpdateOfficialAnswers applies an answer key diff to the exam problems.
	UpdateOfficialAnswers(ctx context.Context, examID uint, entries []AnswerKeyEntry) (StepOutcome, error)
}

type ReportService interface {
	GetStudentReport(ctx context.Context, userID string, examID uint) (*StudentReport, error)
}

type ImportExportService interface {
	// UploadAnswerKey parses an xlsx answer key and applies it to the exam.
	UploadAnswerKey(ctx context.Context, examID uint, file io.Reader) (*AnswerKeyUploadResult, error)
	ExportStatistics(ctx context.Context, examID uint) (*excelize.File, error)
	ExportCatalog(ctx context.Context, examID uint) (*excelize.File, error)
}

// ServiceManager provides access to all services
type ServiceManager interface {
	Student() StudentService
	Submission() SubmissionService
	Recompute() RecomputeService
	Report() ReportService
	ImportExport() ImportExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
