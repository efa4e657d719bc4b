package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
)

type StudentPostgreSQL struct {
	db *gorm.DB
}

func NewStudentPostgreSQL(db *gorm.DB) repositories.StudentRepository {
	return &StudentPostgreSQL{db: db}
}

func (s *StudentPostgreSQL) Create(ctx context.Context, student *models.Student) error {
	return s.db.WithContext(ctx).Create(student).Error
}

func (s *StudentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByExamAndUser(ctx context.Context, examID uint, userID string) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) ListByExam(ctx context.Context, examID uint, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	var students []*models.Student
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Student{}).Where("exam_id = ?", examID)
	if filters.Name != nil {
		query = query.Where("name LIKE ?", "%"+*filters.Name+"%")
	}
	if filters.Serial != nil {
		query = query.Where("serial = ?", *filters.Serial)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit).Offset(filters.Offset)
	}

	if err := query.Order("serial ASC, id ASC").Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (s *StudentPostgreSQL) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}
