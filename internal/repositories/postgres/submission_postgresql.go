package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

// BulkCreate inserts a whole confirmed subject in one statement. The unique
// index on (student, problem) rejects re-confirmation races.
func (s *SubmissionPostgreSQL) BulkCreate(ctx context.Context, submissions []*models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(submissions, 100).Error; err != nil {
		return fmt.Errorf("failed to bulk create submissions: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) CountByStudentSubject(ctx context.Context, studentID uint, subjectCode string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("student_id = ? AND subject_code = ?", studentID, subjectCode).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (s *SubmissionPostgreSQL) ListByStudent(ctx context.Context, studentID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject_code ASC, number ASC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions by student: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) ListByStudentSubject(ctx context.Context, studentID uint, subjectCode string) ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := s.db.WithContext(ctx).
		Where("student_id = ? AND subject_code = ?", studentID, subjectCode).
		Order("number ASC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions by subject: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("student_id ASC, subject_code ASC, number ASC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions by exam: %w", err)
	}
	return submissions, nil
}
