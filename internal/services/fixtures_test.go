package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gosi-lab/predict-service/internal/cache"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/scoring"
	"github.com/gosi-lab/predict-service/internal/validator"
)

// fixture wires every service against the in-memory repository with one
// seeded exam: subjects kor and eng, three problems each, five points per
// problem. Problems exist for kor only so answer-key creation has a target.
type fixture struct {
	t   *testing.T
	ctx context.Context

	repo      *fakeRepository
	publisher *capturingPublisher

	students    StudentService
	submissions SubmissionService
	recompute   RecomputeService
	reports     ReportService

	exam *models.Exam
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cacheManager := cache.NewCacheManager(nil)
	publisher := &capturingPublisher{}
	recompute := NewRecomputeService(nil, repo, logger, publisher, cacheManager)

	fx := &fixture{
		t:           t,
		ctx:         context.Background(),
		repo:        repo,
		publisher:   publisher,
		students:    NewStudentService(nil, repo, logger, validator.New()),
		submissions: NewSubmissionService(nil, repo, logger, publisher, cacheManager, recompute),
		recompute:   recompute,
		reports:     NewReportService(nil, repo, logger, cacheManager),
	}
	fx.seedExam()
	return fx
}

func (fx *fixture) seedExam() {
	fx.t.Helper()

	opened := time.Now().Add(-time.Hour)
	exam := &models.Exam{
		Year:            2026,
		Round:           1,
		Name:            "2026 round 1",
		OptionCount:     5,
		RankMethod:      scoring.RankCompetitive,
		PredictOpenedAt: &opened,
		IsActive:        true,
	}
	if err := fx.repo.Exam().Create(fx.ctx, exam); err != nil {
		fx.t.Fatalf("seed exam: %v", err)
	}
	subjects := []*models.ExamSubject{
		{ExamID: exam.ID, Code: "kor", Name: "Korean", Position: 1, ProblemCount: 3, ScorePerProblem: 5},
		{ExamID: exam.ID, Code: "eng", Name: "English", Position: 2, ProblemCount: 3, ScorePerProblem: 5},
	}
	for _, subject := range subjects {
		if err := fx.repo.Exam().CreateSubject(fx.ctx, subject); err != nil {
			fx.t.Fatalf("seed subject %s: %v", subject.Code, err)
		}
	}
	for number := 1; number <= 3; number++ {
		problem := &models.Problem{ExamID: exam.ID, SubjectCode: "kor", Number: number}
		if err := fx.repo.Problem().Create(fx.ctx, problem); err != nil {
			fx.t.Fatalf("seed problem %d: %v", number, err)
		}
	}

	loaded, err := fx.repo.Exam().GetByID(fx.ctx, exam.ID)
	if err != nil {
		fx.t.Fatalf("load seeded exam: %v", err)
	}
	fx.exam = loaded
}

func (fx *fixture) register(userID, name string) *models.Student {
	fx.t.Helper()
	student, err := fx.students.Register(fx.ctx, userID, fx.exam.ID, RegisterRequest{Name: name})
	if err != nil {
		fx.t.Fatalf("register %s: %v", userID, err)
	}
	return student
}

func (fx *fixture) confirm(userID, subjectCode string, answers []int) *SubmitResult {
	fx.t.Helper()
	result, err := fx.submissions.SubmitConfirmedAnswers(fx.ctx, userID, fx.exam.ID, subjectCode, answers)
	if err != nil {
		fx.t.Fatalf("confirm %s/%s: %v", userID, subjectCode, err)
	}
	return result
}

// bulkSubmit stores answers directly, bypassing the confirmation pipeline.
func (fx *fixture) bulkSubmit(studentID uint, subjectCode string, answers []int) {
	fx.t.Helper()
	problems, err := fx.repo.Problem().GetByExamSubject(fx.ctx, fx.exam.ID, subjectCode)
	if err != nil {
		fx.t.Fatalf("load problems: %v", err)
	}
	if len(problems) != len(answers) {
		fx.t.Fatalf("bulkSubmit: %d answers for %d problems", len(answers), len(problems))
	}
	submissions := make([]*models.Submission, len(problems))
	for i, problem := range problems {
		submissions[i] = &models.Submission{
			StudentID:   studentID,
			ProblemID:   problem.ID,
			ExamID:      fx.exam.ID,
			SubjectCode: subjectCode,
			Number:      problem.Number,
			Answer:      answers[i],
		}
	}
	if err := fx.repo.Submission().BulkCreate(fx.ctx, submissions); err != nil {
		fx.t.Fatalf("bulk submit: %v", err)
	}
}

func (fx *fixture) openOfficial() {
	fx.t.Helper()
	exam, err := fx.repo.Exam().GetByID(fx.ctx, fx.exam.ID)
	if err != nil {
		fx.t.Fatalf("load exam: %v", err)
	}
	opened := time.Now().Add(-time.Minute)
	exam.OfficialOpenedAt = &opened
	if err := fx.repo.Exam().Update(fx.ctx, exam); err != nil {
		fx.t.Fatalf("open official key: %v", err)
	}
	fx.exam = exam
}

func (fx *fixture) score(studentID uint) *models.Score {
	fx.t.Helper()
	score, err := fx.repo.Score().GetByStudent(fx.ctx, studentID)
	if err != nil {
		fx.t.Fatalf("load score of %d: %v", studentID, err)
	}
	return score
}

func (fx *fixture) rank(studentID uint) *models.Rank {
	fx.t.Helper()
	rank, err := fx.repo.Rank().GetByStudent(fx.ctx, studentID)
	if err != nil {
		fx.t.Fatalf("load rank of %d: %v", studentID, err)
	}
	return rank
}

func floatValue(t *testing.T, v *float64) float64 {
	t.Helper()
	if v == nil {
		t.Fatal("expected a value, got nil")
	}
	return *v
}
