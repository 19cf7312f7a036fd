package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *ExamPostgreSQL {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
		helpers:      NewSharedHelpers(db),
	}
}

func (r *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

var examSortColumns = map[string]bool{
	"created_at": true,
	"start_time": true,
	"end_time":   true,
	"title":      true,
}

func (r *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	exam.JoinCode = strings.ToUpper(exam.JoinCode)
	if err := r.getDB(tx).WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (r *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	// Transactional reads bypass the cache so they see their own writes.
	if tx != nil {
		var exam models.Exam
		if err := tx.WithContext(ctx).First(&exam, id).Error; err != nil {
			return nil, err
		}
		return &exam, nil
	}

	var exam models.Exam
	cacheKey := fmt.Sprintf("id:%d", id)
	err := r.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamTTL, func() (interface{}, error) {
		var fresh models.Exam
		if err := r.db.WithContext(ctx).First(&fresh, id).Error; err != nil {
			return nil, err
		}
		return &fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamPostgreSQL) GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := r.getDB(tx).WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.\"order\" ASC")
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_choices.\"order\" ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	exam.QuestionCount = len(exam.Questions)
	return &exam, nil
}

// GetByJoinCode resolves a code case-insensitively against active,
// non-deleted exams. An inactive exam with the same code is
// indistinguishable from no exam at all.
func (r *ExamPostgreSQL) GetByJoinCode(ctx context.Context, tx *gorm.DB, code string) (*models.Exam, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	var exam models.Exam
	err := r.getDB(tx).WithContext(ctx).
		Where("UPPER(join_code) = ? AND is_active = ?", normalized, true).
		First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// JoinCodeExists checks all exams, active or not. The join_code column
// carries a global unique index, so a deactivated exam's code still
// blocks reuse.
func (r *ExamPostgreSQL) JoinCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Unscoped().
		Where("UPPER(join_code) = ?", normalized).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check join code: %w", err)
	}
	return count > 0, nil
}

func (r *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := r.getDB(tx).WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

func (r *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, id, "")
	return nil
}

func (r *ExamPostgreSQL) SetActive(ctx context.Context, tx *gorm.DB, id uint, active bool) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update exam active flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, id, "")
	return nil
}

func (r *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.Exam{})
	query = r.helpers.ApplyExamFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	query = r.helpers.ApplySorting(query, filters.SortBy, filters.SortOrder, examSortColumns)
	query = r.helpers.ApplyPagination(query, filters.Limit, filters.Offset)

	var exams []*models.Exam
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, total, nil
}

func (r *ExamPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	// Inside a transaction the caller wants a consistent read, so the
	// cache only fronts standalone queries.
	if tx == nil {
		stats := &repositories.ExamStats{}
		cacheKey := fmt.Sprintf("exam:%d:summary", examID)
		err := r.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, stats, cache.StatsTTL, func() (interface{}, error) {
			return r.queryStats(ctx, nil, examID)
		})
		if err != nil {
			return nil, err
		}
		return stats, nil
	}
	return r.queryStats(ctx, tx, examID)
}

func (r *ExamPostgreSQL) queryStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	db := r.getDB(tx).WithContext(ctx)

	stats := &repositories.ExamStats{}

	type statusCount struct {
		Status models.AttemptStatus
		Count  int64
	}
	var counts []statusCount
	err := db.Model(&models.ExamAttempt{}).
		Select("status, COUNT(*) as count").
		Where("exam_id = ?", examID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts by status: %w", err)
	}

	for _, sc := range counts {
		stats.TotalAttempts += sc.Count
		switch sc.Status {
		case models.AttemptRegistered:
			stats.Registered = sc.Count
		case models.AttemptInProgress:
			stats.InProgress = sc.Count
		case models.AttemptCompleted:
			stats.Completed = sc.Count
		}
	}

	var avg *float64
	err = db.Model(&models.ExamAttempt{}).
		Select("AVG(score)").
		Where("exam_id = ? AND status = ?", examID, models.AttemptCompleted).
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute average score: %w", err)
	}
	if avg != nil {
		stats.AverageScore = *avg
	}

	return stats, nil
}

// compile-time interface check
var _ repositories.ExamRepository = (*ExamPostgreSQL)(nil)
