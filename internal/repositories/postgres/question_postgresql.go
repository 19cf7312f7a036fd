package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	helpers      *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *QuestionPostgreSQL {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
		helpers:      NewSharedHelpers(db),
	}
}

func (r *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create persists the question together with its choices in one insert.
func (r *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := r.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if tx != nil {
		return r.fetchByID(ctx, tx, id)
	}

	var question models.Question
	cacheKey := fmt.Sprintf("id:%d", id)
	err := r.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionTTL, func() (interface{}, error) {
		return r.fetchByID(ctx, r.db, id)
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) fetchByID(ctx context.Context, db *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_choices.\"order\" ASC")
		}).
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []*models.Question
	err := r.getDB(tx).WithContext(ctx).
		Preload("Choices").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := r.getDB(tx).WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	cache.InvalidateQuestionCache(ctx, r.cacheManager, question.ID, question.CreatedBy)
	return nil
}

func (r *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateQuestionCache(ctx, r.cacheManager, id, "")
	return nil
}

func (r *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.Question{})

	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Search != "" {
		query = query.Where("text ILIKE ?", "%"+filters.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	query = r.helpers.ApplyPagination(query.Order("created_at DESC"), filters.Limit, filters.Offset)

	var questions []*models.Question
	if err := query.Preload("Choices").Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, total, nil
}

// ReplaceChoices swaps the full choice set of a question. Used on
// question updates where choices are resubmitted wholesale.
func (r *QuestionPostgreSQL) ReplaceChoices(ctx context.Context, tx *gorm.DB, questionID uint, choices []models.Choice) error {
	db := r.getDB(tx).WithContext(ctx)

	if err := db.Where("question_id = ?", questionID).Delete(&models.Choice{}).Error; err != nil {
		return fmt.Errorf("failed to clear choices: %w", err)
	}

	for i := range choices {
		choices[i].ID = 0
		choices[i].QuestionID = questionID
	}
	if len(choices) > 0 {
		if err := db.Create(&choices).Error; err != nil {
			return fmt.Errorf("failed to create choices: %w", err)
		}
	}

	cache.InvalidateQuestionCache(ctx, r.cacheManager, questionID, "")
	return nil
}

func (r *QuestionPostgreSQL) IsLinkedToExam(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("question_id = ?", questionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam links: %w", err)
	}
	return count > 0, nil
}

func (r *QuestionPostgreSQL) HasSubmittedAnswers(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Joins("JOIN exam_attempts ON exam_attempts.id = student_answers.attempt_id").
		Where("student_answers.question_id = ? AND exam_attempts.status = ?", questionID, models.AttemptCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check submitted answers: %w", err)
	}
	return count > 0, nil
}

var _ repositories.QuestionRepository = (*QuestionPostgreSQL)(nil)
