package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
	"github.com/gosi-lab/predict-service/internal/scoring"
)

type AnswerCountPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerCountPostgreSQL(db *gorm.DB) repositories.AnswerCountRepository {
	return &AnswerCountPostgreSQL{db: db}
}

func (a *AnswerCountPostgreSQL) Create(ctx context.Context, count *models.AnswerCount) error {
	return a.db.WithContext(ctx).Create(count).Error
}

func (a *AnswerCountPostgreSQL) Save(ctx context.Context, count *models.AnswerCount) error {
	return a.db.WithContext(ctx).Save(count).Error
}

func (a *AnswerCountPostgreSQL) GetByProblemTier(ctx context.Context, problemID uint, tier scoring.Tier) (*models.AnswerCount, error) {
	var count models.AnswerCount
	if err := a.db.WithContext(ctx).
		Where("problem_id = ? AND tier = ?", problemID, tier).
		First(&count).Error; err != nil {
		return nil, err
	}
	return &count, nil
}

func (a *AnswerCountPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.AnswerCount, error) {
	var counts []*models.AnswerCount
	if err := a.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("problem_id ASC, tier ASC").
		Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to list answer counts by exam: %w", err)
	}
	return counts, nil
}

func (a *AnswerCountPostgreSQL) ListByProblem(ctx context.Context, problemID uint) ([]*models.AnswerCount, error) {
	var counts []*models.AnswerCount
	if err := a.db.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to list answer counts by problem: %w", err)
	}
	return counts, nil
}

// Increment bumps the bucket for one submitted answer plus the running total
// in a single UPDATE, so concurrent confirmations never lose counts to
// read-modify-write races.
func (a *AnswerCountPostgreSQL) Increment(ctx context.Context, problemID uint, tiers []scoring.Tier, answer, optionCount int) error {
	if len(tiers) == 0 {
		return nil
	}

	column := bucketColumn(answer, optionCount)
	result := a.db.WithContext(ctx).
		Model(&models.AnswerCount{}).
		Where("problem_id = ? AND tier IN ?", problemID, tiers).
		Updates(map[string]interface{}{
			column:      gorm.Expr(column + " + 1"),
			"count_sum": gorm.Expr("count_sum + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment answer count: %w", result.Error)
	}
	if result.RowsAffected != int64(len(tiers)) {
		return fmt.Errorf("answer count rows missing for problem %d: bumped %d of %d tiers",
			problemID, result.RowsAffected, len(tiers))
	}
	return nil
}

// bucketColumn maps a submitted answer to its counter column. The column set
// is fixed, never derived from input, so the expression below stays safe.
func bucketColumn(answer, optionCount int) string {
	if answer >= 0 && answer <= optionCount && answer <= 5 {
		return fmt.Sprintf("count_%d", answer)
	}
	return "count_multiple"
}
