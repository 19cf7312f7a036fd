package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type ExamQuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *ExamQuestionPostgreSQL {
	return &ExamQuestionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *ExamQuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ExamQuestionPostgreSQL) Add(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error {
	if err := r.getDB(tx).WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to add question to exam: %w", err)
	}
	cache.SafeDelete(ctx, r.cacheManager.Exam, fmt.Sprintf("questions:%d", link.ExamID))
	return nil
}

func (r *ExamQuestionPostgreSQL) Remove(ctx context.Context, tx *gorm.DB, examID, questionID uint) error {
	result := r.getDB(tx).WithContext(ctx).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Delete(&models.ExamQuestion{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove question from exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, r.cacheManager.Exam, fmt.Sprintf("questions:%d", examID))
	return nil
}

func (r *ExamQuestionPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, examID, questionID uint) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam question: %w", err)
	}
	return count > 0, nil
}

// ListByExam returns the exam's questions in display order with
// choices preloaded.
func (r *ExamQuestionPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	var links []*models.ExamQuestion
	err := r.getDB(tx).WithContext(ctx).
		Preload("Question").
		Preload("Question.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_choices.\"order\" ASC")
		}).
		Where("exam_id = ?", examID).
		Order("\"order\" ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exam questions: %w", err)
	}
	return links, nil
}

func (r *ExamQuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count exam questions: %w", err)
	}
	return count, nil
}

func (r *ExamQuestionPostgreSQL) NextOrder(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	var max *int
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Select("MAX(\"order\")").
		Where("exam_id = ?", examID).
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next order: %w", err)
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

var _ repositories.ExamQuestionRepository = (*ExamQuestionPostgreSQL)(nil)
