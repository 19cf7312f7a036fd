package repositories

import "context"

// Repository aggregates all sub-repositories behind one handle.
// WithTransaction yields a Repository whose sub-repositories share a
// single database transaction.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	ExamQuestion() ExamQuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	User() UserRepository

	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the lifecycle of a Repository implementation.
type RepositoryManager interface {
	Initialize(ctx context.Context) error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
