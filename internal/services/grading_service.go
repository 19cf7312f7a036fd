package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *appvalidator.BusinessValidator
	events    NotificationEventService
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *appvalidator.BusinessValidator, events NotificationEventService) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    events,
	}
}

// GradeAnswer records a teacher's manual grade for a subjective answer
// and recomputes the attempt score with that answer counted as
// gradable.
func (s *gradingService) GradeAnswer(ctx context.Context, teacherID string, answerID uint, req *GradeAnswerRequest) (*GradingResult, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	answer, err := s.repo.Answer().GetByID(ctx, nil, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, err
	}
	if answer.Question == nil {
		return nil, fmt.Errorf("answer %d has no question loaded", answerID)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, answer.AttemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	if err := s.canGrade(ctx, teacherID, attempt); err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptCompleted {
		return nil, NewBusinessRuleError("grade_before_submission", "only completed attempts can be graded")
	}
	if answer.Question.IsAutoGradable() {
		return nil, NewBusinessRuleError("auto_graded_question", "this answer was graded automatically")
	}
	if req.Points > float64(answer.Question.Points) {
		return nil, ValidationErrors{{
			Field:   "points",
			Message: fmt.Sprintf("cannot exceed the question's %d points", answer.Question.Points),
			Value:   req.Points,
			Rule:    "business_logic",
		}}
	}

	var result *GradingResult
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		isCorrect := req.IsCorrect
		answer.IsCorrect = &isCorrect
		answer.AwardedPoints = req.Points
		answer.GradedBy = &teacherID
		answer.Feedback = req.Feedback
		now := time.Now().UTC()
		answer.GradedAt = &now

		if err := txRepo.Answer().Update(ctx, nil, answer); err != nil {
			return err
		}

		// Recompute over all answers so the manually graded one joins
		// the denominator.
		all, err := txRepo.Answer().GetByAttempt(ctx, nil, attempt.ID)
		if err != nil {
			return err
		}
		correct, gradable := countGraded(all)
		score := computeScore(correct, gradable)

		attempt.Score = &score
		attempt.CorrectCount = correct
		attempt.GradableCount = gradable
		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return err
		}

		result = &GradingResult{
			AnswerID:      answer.ID,
			IsCorrect:     isCorrect,
			AwardedPoints: req.Points,
			AttemptScore:  &score,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("answer graded",
		"answer_id", answerID,
		"attempt_id", attempt.ID,
		"teacher_id", teacherID,
		"is_correct", req.IsCorrect)

	if s.events != nil {
		if err := s.events.PublishAttemptGraded(ctx, attempt); err != nil {
			s.logger.Warn("failed to publish attempt graded event", "attempt_id", attempt.ID, "error", err)
		}
	}

	return result, nil
}

func (s *gradingService) PendingManualCount(ctx context.Context, teacherID string, examID uint) (int64, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrExamNotFound
		}
		return 0, err
	}
	if exam.CreatedBy != teacherID {
		isAdmin, roleErr := s.repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
		if roleErr != nil || !isAdmin {
			return 0, NewPermissionError(teacherID, "view grading queue of", fmt.Sprintf("exam %d", examID))
		}
	}

	return s.repo.Answer().CountPendingManual(ctx, nil, examID)
}

func (s *gradingService) canGrade(ctx context.Context, teacherID string, attempt *models.ExamAttempt) error {
	exam := attempt.Exam
	if exam == nil {
		var err error
		exam, err = s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
		if err != nil {
			return err
		}
	}

	if exam.CreatedBy == teacherID {
		return nil
	}
	isAdmin, err := s.repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
	if err == nil && isAdmin {
		return nil
	}
	return NewPermissionError(teacherID, "grade", fmt.Sprintf("attempt %d", attempt.ID))
}

// countGraded tallies correctness over every answer that carries a
// verdict, automatic or manual.
func countGraded(answers []*models.Answer) (correct, gradable int) {
	for _, answer := range answers {
		if answer.IsCorrect == nil {
			continue
		}
		gradable++
		if *answer.IsCorrect {
			correct++
		}
	}
	return correct, gradable
}
