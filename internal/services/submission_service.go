package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/cache"
	"github.com/gosi-lab/predict-service/internal/events"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

type submissionService struct {
	db           *gorm.DB
	repo         repositories.Repository
	logger       *slog.Logger
	publisher    events.Publisher
	cacheManager *cache.CacheManager
	recompute    RecomputeService
}

func NewSubmissionService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, publisher events.Publisher, cacheManager *cache.CacheManager, recompute RecomputeService) SubmissionService {
	return &submissionService{
		db:           db,
		repo:         repo,
		logger:       logger,
		publisher:    publisher,
		cacheManager: cacheManager,
		recompute:    recompute,
	}
}

// SubmitConfirmedAnswers validates the whole batch, stores it in one
// transaction, and then refreshes the derived results. The stored submissions
// are the system of record: a failure in the refresh pipeline is logged and
// repaired by the next recompute, never rolled back.
func (s *submissionService) SubmitConfirmedAnswers(ctx context.Context, userID string, examID uint, subjectCode string, answers []int) (*SubmitResult, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}
	if !exam.IsActive {
		return nil, ErrExamNotActive
	}
	now := time.Now()
	if !exam.PredictOpen(now) {
		return nil, ErrSubmissionClosed
	}

	plan := exam.Plan()
	subject, ok := plan.Subject(subjectCode)
	if !ok {
		return nil, ErrNotFound
	}

	// Validate before any write: a single bad answer rejects the batch.
	if len(answers) != subject.ProblemCount {
		return nil, ErrAnswerCountMismatch
	}
	for _, answer := range answers {
		if answer < 0 || answer > plan.OptionCount {
			return nil, ErrInvalidOption
		}
	}

	student, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	count, err := s.repo.Submission().CountByStudentSubject(ctx, student.ID, subjectCode)
	if err != nil {
		return nil, err
	}
	if count >= int64(subject.ProblemCount) {
		return nil, ErrAlreadySubmitted
	}

	problems, err := s.repo.Problem().GetByExamSubject(ctx, examID, subjectCode)
	if err != nil {
		return nil, err
	}
	if len(problems) != subject.ProblemCount {
		return nil, fmt.Errorf("exam %d subject %s has %d problems, expected %d",
			examID, subjectCode, len(problems), subject.ProblemCount)
	}

	submissions := make([]*models.Submission, len(problems))
	for i, problem := range problems {
		submissions[i] = &models.Submission{
			StudentID:   student.ID,
			ProblemID:   problem.ID,
			ExamID:      examID,
			SubjectCode: subjectCode,
			Number:      problem.Number,
			Answer:      answers[i],
		}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Submission().BulkCreate(ctx, submissions)
	})
	if err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to store confirmed answers: %w", err)
	}

	s.logger.Info("subject confirmed",
		"exam_id", examID,
		"student_id", student.ID,
		"subject", subjectCode,
		"answers", len(answers))

	s.refreshAfterConfirm(ctx, exam, plan, student, problems, answers, userID, subjectCode)

	return s.buildResult(ctx, exam, student, subjectCode, subject.ProblemCount, now)
}

// refreshAfterConfirm runs the incremental pipeline: atomic distribution
// bumps for the whole cohort tally, then a diff-based refresh of scores,
// ranks, and statistics.
func (s *submissionService) refreshAfterConfirm(ctx context.Context, exam *models.Exam, plan scoring.ExamPlan, student *models.Student, problems []*models.Problem, answers []int, userID, subjectCode string) {
	for i, problem := range problems {
		if err := s.ensureAllTierRow(ctx, exam.ID, problem.ID); err != nil {
			s.logger.Error("failed to ensure answer count row",
				"problem_id", problem.ID, "error", err)
			continue
		}
		if err := s.repo.AnswerCount().Increment(ctx, problem.ID, []scoring.Tier{scoring.TierAll}, answers[i], plan.OptionCount); err != nil {
			s.logger.Error("failed to bump answer count",
				"problem_id", problem.ID, "error", err)
		}
	}

	if _, err := s.recompute.Run(ctx, exam.ID, ScopeResults, "confirm:"+userID); err != nil {
		s.logger.Error("failed to refresh results after confirmation",
			"exam_id", exam.ID, "student_id", student.ID, "error", err)
	}

	cache.InvalidateStudentReportCache(ctx, s.cacheManager, exam.ID, student.ID)

	if err := s.publisher.PublishScoreUpdated(ctx, events.ScoreUpdatedEvent{
		ExamID:      exam.ID,
		StudentID:   student.ID,
		SubjectCode: subjectCode,
		OccurredAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish score event",
			"exam_id", exam.ID, "student_id", student.ID, "error", err)
	}
}

// ensureAllTierRow creates the whole-cohort tally row on first use. A
// duplicate-key race with a concurrent confirmation is fine.
func (s *submissionService) ensureAllTierRow(ctx context.Context, examID, problemID uint) error {
	_, err := s.repo.AnswerCount().GetByProblemTier(ctx, problemID, scoring.TierAll)
	if err == nil {
		return nil
	}
	if !repositories.IsNotFoundError(err) {
		return err
	}
	row := &models.AnswerCount{ProblemID: problemID, ExamID: examID, Tier: scoring.TierAll}
	if err := s.repo.AnswerCount().Create(ctx, row); err != nil && !repositories.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

func (s *submissionService) buildResult(ctx context.Context, exam *models.Exam, student *models.Student, subjectCode string, confirmed int, now time.Time) (*SubmitResult, error) {
	result := &SubmitResult{
		SubjectCode: subjectCode,
		Confirmed:   confirmed,
	}

	score, err := s.repo.Score().GetByStudent(ctx, student.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return result, nil
		}
		return nil, err
	}
	result.ScorePredict = score.SubjectsPredict.Data()[subjectCode]
	if exam.OfficialOpen(now) {
		result.Score = score.Subjects.Data()[subjectCode]
	}
	return result, nil
}

func (s *submissionService) GetConfirmedAnswers(ctx context.Context, userID string, examID uint, subjectCode string) ([]int, error) {
	student, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	subs, err := s.repo.Submission().ListByStudentSubject(ctx, student.ID, subjectCode)
	if err != nil {
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Number < subs[j].Number })
	answers := make([]int, len(subs))
	for i, sub := range subs {
		answers[i] = sub.Answer
	}
	return answers, nil
}

func (s *submissionService) IsSubjectConfirmed(ctx context.Context, userID string, examID uint, subjectCode string) (bool, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrNotFound
		}
		return false, err
	}
	subject, ok := exam.Plan().Subject(subjectCode)
	if !ok {
		return false, ErrNotFound
	}

	student, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrNotRegistered
		}
		return false, err
	}

	count, err := s.repo.Submission().CountByStudentSubject(ctx, student.ID, subjectCode)
	if err != nil {
		return false, err
	}
	return count >= int64(subject.ProblemCount), nil
}
