package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers

	// pendingStats is set on transaction-scoped instances. Stats
	// invalidation is deferred until after commit so a concurrent
	// reader cannot re-cache pre-commit values.
	pendingStats *staleStatsSet
}

// staleStatsSet collects exam ids whose cached stats must be dropped
// once the surrounding transaction commits.
type staleStatsSet struct {
	mu  sync.Mutex
	ids map[uint]struct{}
}

func (s *staleStatsSet) add(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[uint]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *staleStatsSet) flush(ctx context.Context, cm *cache.CacheManager) {
	s.mu.Lock()
	ids := s.ids
	s.ids = nil
	s.mu.Unlock()

	for id := range ids {
		cache.SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", id))
	}
}

func NewAttemptPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *AttemptPostgreSQL {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
		helpers:      NewSharedHelpers(db),
	}
}

func (r *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the attempt row. The unique (exam_id, student_id)
// index makes this the serialization point for concurrent joins; the
// caller handles the duplicate-key error by re-reading.
func (r *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	return r.getDB(tx).WithContext(ctx).Create(attempt).Error
}

func (r *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.getDB(tx).WithContext(ctx).
		Preload("Exam").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) GetWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Preload("Answers").
		Preload("Answers.Question").
		Preload("Answers.Question.Choices").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := r.getDB(tx).WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if err := r.getDB(tx).WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	r.markStatsStale(ctx, attempt.ExamID)
	return nil
}

// UpdateStatus performs a compare-and-swap on the status column. The
// WHERE clause on the expected current status is what makes the state
// machine forward-only even under concurrent submits.
func (r *AttemptPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}

	result := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update attempt status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	// Status flips change the completed counts and average the stats
	// summary was built from.
	var attempt models.ExamAttempt
	if err := r.db.WithContext(ctx).Select("exam_id").First(&attempt, id).Error; err == nil {
		r.markStatsStale(ctx, attempt.ExamID)
	}
	return nil
}

// markStatsStale invalidates the exam's stats cache, or queues the
// invalidation for post-commit when running inside a transaction.
func (r *AttemptPostgreSQL) markStatsStale(ctx context.Context, examID uint) {
	if r.pendingStats != nil {
		r.pendingStats.add(examID)
		return
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Stats, fmt.Sprintf("exam:%d:*", examID))
}

func (r *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.ExamAttempt{})
	query = r.helpers.ApplyAttemptFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = r.helpers.ApplyPagination(query.Order("created_at DESC"), filters.Limit, filters.Offset)

	var attempts []*models.ExamAttempt
	if err := query.Preload("Exam").Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

func (r *AttemptPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	if tx != nil {
		var count int64
		err := tx.WithContext(ctx).
			Model(&models.ExamAttempt{}).
			Where("exam_id = ?", examID).
			Count(&count).Error
		return count, err
	}
	return r.helpers.CountAttempts(ctx, examID)
}

// ListExpired finds in_progress attempts whose deadline passed, for
// the background timeout sweep.
func (r *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, before time.Time, limit int) ([]*models.ExamAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	var attempts []*models.ExamAttempt
	err := r.getDB(tx).WithContext(ctx).
		Where("status = ? AND ended_at IS NOT NULL AND ended_at < ?", models.AttemptInProgress, before).
		Order("ended_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}
	return attempts, nil
}

var _ repositories.AttemptRepository = (*AttemptPostgreSQL)(nil)
