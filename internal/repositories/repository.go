package repositories

import "context"

// Repository aggregates every sub-repository of the service.
type Repository interface {
	// Exam domain
	Exam() ExamRepository
	Problem() ProblemRepository

	// Participation domain
	Student() StudentRepository
	Submission() SubmissionRepository

	// Result domain
	Score() ScoreRepository
	Rank() RankRepository
	Statistics() StatisticsRepository
	AnswerCount() AnswerCountRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
