package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories/casdoor"
)

// PostgreSQLRepository aggregates the PostgreSQL-backed repositories
// plus the Casdoor-backed user repository behind one handle.
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	exam         repositories.ExamRepository
	question     repositories.QuestionRepository
	examQuestion repositories.ExamQuestionRepository
	attempt      repositories.AttemptRepository
	answer       repositories.AnswerRepository
	user         repositories.UserRepository
}

// RepositoryConfig carries everything repository construction needs.
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

func NewPostgreSQLRepository(config RepositoryConfig) *PostgreSQLRepository {
	cacheManager := cache.NewCacheManager(config.RedisClient)

	return &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,

		exam:         NewExamPostgreSQL(config.DB, cacheManager),
		question:     NewQuestionPostgreSQL(config.DB, cacheManager),
		examQuestion: NewExamQuestionPostgreSQL(config.DB, cacheManager),
		attempt:      NewAttemptPostgreSQL(config.DB, cacheManager),
		answer:       NewAnswerPostgreSQL(config.DB, cacheManager),
		user:         casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient),
	}
}

func (r *PostgreSQLRepository) Exam() repositories.ExamRepository {
	return r.exam
}

func (r *PostgreSQLRepository) Question() repositories.QuestionRepository {
	return r.question
}

func (r *PostgreSQLRepository) ExamQuestion() repositories.ExamQuestionRepository {
	return r.examQuestion
}

func (r *PostgreSQLRepository) Attempt() repositories.AttemptRepository {
	return r.attempt
}

func (r *PostgreSQLRepository) Answer() repositories.AnswerRepository {
	return r.answer
}

func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.user
}

// WithTransaction runs fn against a Repository whose sub-repositories
// all share one database transaction. The user repository is external
// and not transactional. Cache invalidations queued during the
// transaction are flushed only after it commits; a rollback leaves the
// cache untouched since nothing changed.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	pending := &staleStatsSet{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt := NewAttemptPostgreSQL(tx, r.cacheManager)
		attempt.pendingStats = pending

		txRepo := &PostgreSQLRepository{
			db:           tx,
			redisClient:  r.redisClient,
			cacheManager: r.cacheManager,

			exam:         NewExamPostgreSQL(tx, r.cacheManager),
			question:     NewQuestionPostgreSQL(tx, r.cacheManager),
			examQuestion: NewExamQuestionPostgreSQL(tx, r.cacheManager),
			attempt:      attempt,
			answer:       NewAnswerPostgreSQL(tx, r.cacheManager),
			user:         r.user,
		}
		return fn(txRepo)
	})
	if err != nil {
		return err
	}

	pending.flush(ctx, r.cacheManager)
	return nil
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

var _ repositories.Repository = (*PostgreSQLRepository)(nil)

// repositoryManager owns the repository lifecycle.
type repositoryManager struct {
	config RepositoryConfig
	repo   *PostgreSQLRepository
}

func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &repositoryManager{config: config}
}

func (m *repositoryManager) Initialize(ctx context.Context) error {
	if m.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	m.repo = NewPostgreSQLRepository(m.config)

	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if m.config.RedisClient != nil {
		if err := m.config.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return nil
}

func (m *repositoryManager) GetRepository() repositories.Repository {
	if m.repo == nil {
		panic("repository manager not initialized")
	}
	return m.repo
}

func (m *repositoryManager) HealthCheck(ctx context.Context) error {
	if m.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return m.repo.Ping(ctx)
}

func (m *repositoryManager) Shutdown(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	return m.repo.Close()
}
