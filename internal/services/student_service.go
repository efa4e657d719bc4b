package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/validator"
)

type studentService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewStudentService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator) StudentService {
	return &studentService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

// Register creates the exam participation together with the empty score and
// rank rows the result pipeline fills in later.
func (s *studentService) Register(ctx context.Context, userID string, examID uint, req RegisterRequest) (*models.Student, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

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
	if !exam.PredictOpen(time.Now()) {
		return nil, ErrSubmissionClosed
	}

	if _, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	student := &models.Student{
		ExamID: examID,
		UserID: userID,
		Name:   req.Name,
		Serial: req.Serial,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Student().Create(ctx, student); err != nil {
			return err
		}
		if err := txRepo.Score().Create(ctx, &models.Score{StudentID: student.ID, ExamID: examID}); err != nil {
			return err
		}
		return txRepo.Rank().Create(ctx, &models.Rank{StudentID: student.ID, ExamID: examID})
	})
	if err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to register student: %w", err)
	}

	s.logger.Info("student registered", "exam_id", examID, "student_id", student.ID)

	return student, nil
}

func (s *studentService) Get(ctx context.Context, userID string, examID uint) (*models.Student, error) {
	student, err := s.repo.Student().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return student, nil
}
