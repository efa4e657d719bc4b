package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
)

type ProblemPostgreSQL struct {
	db *gorm.DB
}

func NewProblemPostgreSQL(db *gorm.DB) repositories.ProblemRepository {
	return &ProblemPostgreSQL{db: db}
}

func (p *ProblemPostgreSQL) Create(ctx context.Context, problem *models.Problem) error {
	return p.db.WithContext(ctx).Create(problem).Error
}

func (p *ProblemPostgreSQL) Update(ctx context.Context, problem *models.Problem) error {
	return p.db.WithContext(ctx).Save(problem).Error
}

func (p *ProblemPostgreSQL) GetByExam(ctx context.Context, examID uint) ([]*models.Problem, error) {
	var problems []*models.Problem
	if err := p.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("subject_code ASC, number ASC").
		Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("failed to get problems by exam: %w", err)
	}
	return problems, nil
}

func (p *ProblemPostgreSQL) GetByExamSubject(ctx context.Context, examID uint, subjectCode string) ([]*models.Problem, error) {
	var problems []*models.Problem
	if err := p.db.WithContext(ctx).
		Where("exam_id = ? AND subject_code = ?", examID, subjectCode).
		Order("number ASC").
		Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("failed to get problems by subject: %w", err)
	}
	return problems, nil
}
