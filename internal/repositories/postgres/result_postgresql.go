package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/repositories"
)

// ===== SCORE =====

type ScorePostgreSQL struct {
	db *gorm.DB
}

func NewScorePostgreSQL(db *gorm.DB) repositories.ScoreRepository {
	return &ScorePostgreSQL{db: db}
}

func (s *ScorePostgreSQL) Create(ctx context.Context, score *models.Score) error {
	return s.db.WithContext(ctx).Create(score).Error
}

func (s *ScorePostgreSQL) Save(ctx context.Context, score *models.Score) error {
	return s.db.WithContext(ctx).Save(score).Error
}

func (s *ScorePostgreSQL) GetByStudent(ctx context.Context, studentID uint) (*models.Score, error) {
	var score models.Score
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&score).Error; err != nil {
		return nil, err
	}
	return &score, nil
}

func (s *ScorePostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.Score, error) {
	var scores []*models.Score
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("student_id ASC").
		Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("failed to list scores by exam: %w", err)
	}
	return scores, nil
}

// ===== RANK =====

type RankPostgreSQL struct {
	db *gorm.DB
}

func NewRankPostgreSQL(db *gorm.DB) repositories.RankRepository {
	return &RankPostgreSQL{db: db}
}

func (r *RankPostgreSQL) Create(ctx context.Context, rank *models.Rank) error {
	return r.db.WithContext(ctx).Create(rank).Error
}

func (r *RankPostgreSQL) Save(ctx context.Context, rank *models.Rank) error {
	return r.db.WithContext(ctx).Save(rank).Error
}

func (r *RankPostgreSQL) GetByStudent(ctx context.Context, studentID uint) (*models.Rank, error) {
	var rank models.Rank
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&rank).Error; err != nil {
		return nil, err
	}
	return &rank, nil
}

func (r *RankPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.Rank, error) {
	var ranks []*models.Rank
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("student_id ASC").
		Find(&ranks).Error; err != nil {
		return nil, fmt.Errorf("failed to list ranks by exam: %w", err)
	}
	return ranks, nil
}

// ===== STATISTICS =====

type StatisticsPostgreSQL struct {
	db *gorm.DB
}

func NewStatisticsPostgreSQL(db *gorm.DB) repositories.StatisticsRepository {
	return &StatisticsPostgreSQL{db: db}
}

func (s *StatisticsPostgreSQL) Create(ctx context.Context, stats *models.Statistics) error {
	return s.db.WithContext(ctx).Create(stats).Error
}

func (s *StatisticsPostgreSQL) Save(ctx context.Context, stats *models.Statistics) error {
	return s.db.WithContext(ctx).Save(stats).Error
}

func (s *StatisticsPostgreSQL) GetByExamSubject(ctx context.Context, examID uint, subjectCode string) (*models.Statistics, error) {
	var stats models.Statistics
	if err := s.db.WithContext(ctx).
		Where("exam_id = ? AND subject_code = ?", examID, subjectCode).
		First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatisticsPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]*models.Statistics, error) {
	var stats []*models.Statistics
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("subject_code ASC").
		Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to list statistics by exam: %w", err)
	}
	return stats, nil
}
