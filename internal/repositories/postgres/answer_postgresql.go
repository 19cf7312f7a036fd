package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *AnswerPostgreSQL {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// CreateBatch inserts all answer rows of a submission in one statement.
func (r *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).Create(&answers).Error; err != nil {
		return fmt.Errorf("failed to create answers: %w", err)
	}
	return nil
}

func (r *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	err := r.getDB(tx).WithContext(ctx).
		Preload("Question").
		Preload("Question.Choices").
		First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := r.getDB(tx).WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

func (r *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	if err := r.getDB(tx).WithContext(ctx).Save(answer).Error; err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	return nil
}

// DeleteByAttempt clears any answer rows of a prior failed submission
// so the retry starts from a clean slate inside its transaction.
func (r *AnswerPostgreSQL) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	err := r.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Delete(&models.Answer{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	return nil
}

// CountPendingManual counts answers of completed attempts that still
// need teacher grading.
func (r *AnswerPostgreSQL) CountPendingManual(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Joins("JOIN exam_attempts ON exam_attempts.id = student_answers.attempt_id").
		Where("exam_attempts.exam_id = ? AND exam_attempts.status = ?", examID, models.AttemptCompleted).
		Where("student_answers.is_correct IS NULL AND student_answers.graded_by IS NULL").
		Where("student_answers.selected_choice_id IS NOT NULL OR student_answers.answer_text IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending manual answers: %w", err)
	}
	return count, nil
}

// QuestionStats aggregates answered/correct counts per question over
// completed attempts of one exam.
func (r *AnswerPostgreSQL) QuestionStats(ctx context.Context, tx *gorm.DB, examID uint) ([]repositories.QuestionStat, error) {
	var stats []repositories.QuestionStat
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Select(`student_answers.question_id,
			questions.text,
			questions.type,
			COUNT(*) FILTER (WHERE student_answers.selected_choice_id IS NOT NULL OR student_answers.answer_text IS NOT NULL) AS answered,
			COUNT(*) FILTER (WHERE student_answers.is_correct = true) AS correct`).
		Joins("JOIN exam_attempts ON exam_attempts.id = student_answers.attempt_id").
		Joins("JOIN questions ON questions.id = student_answers.question_id").
		Where("exam_attempts.exam_id = ? AND exam_attempts.status = ?", examID, models.AttemptCompleted).
		Group("student_answers.question_id, questions.text, questions.type").
		Order("student_answers.question_id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute question stats: %w", err)
	}
	return stats, nil
}

var _ repositories.AnswerRepository = (*AnswerPostgreSQL)(nil)
