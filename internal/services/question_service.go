package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *appvalidator.BusinessValidator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *appvalidator.BusinessValidator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionService) Create(ctx context.Context, teacherID string, req *CreateQuestionRequest) (*models.Question, error) {
	if errs := s.validator.ValidateQuestionCreate(req); len(errs) > 0 {
		return nil, errs
	}

	question := &models.Question{
		CreatedBy:   teacherID,
		Type:        req.Type,
		Text:        strings.TrimSpace(req.Text),
		Points:      req.Points,
		ModelAnswer: req.ModelAnswer,
	}
	if question.Points == 0 {
		question.Points = 1
	}
	if len(req.Tags) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		question.Tags = tags
	}

	for i, choiceReq := range req.Choices {
		order := choiceReq.Order
		if order == 0 {
			order = i + 1
		}
		question.Choices = append(question.Choices, models.Choice{
			Text:      strings.TrimSpace(choiceReq.Text),
			IsCorrect: choiceReq.IsCorrect,
			Order:     order,
		})
	}

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, err
	}

	s.logger.Info("question created",
		"question_id", question.ID,
		"type", question.Type,
		"teacher_id", teacherID)
	return question, nil
}

func (s *questionService) GetByID(ctx context.Context, userID string, id uint) (*models.Question, error) {
	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canAccess(ctx, userID, question, "view"); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *questionService) Update(ctx context.Context, teacherID string, id uint, req *UpdateQuestionRequest) (*models.Question, error) {
	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canAccess(ctx, teacherID, question, "update"); err != nil {
		return nil, err
	}

	if errs := s.validator.ValidateQuestionUpdate(req, question); len(errs) > 0 {
		return nil, errs
	}

	// Editing is frozen once any completed attempt references the
	// question, otherwise past scores would silently change meaning.
	submitted, err := s.repo.Question().HasSubmittedAnswers(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, ErrQuestionSubmitted
	}

	if req.Type != nil {
		question.Type = *req.Type
	}
	if req.Text != nil {
		question.Text = strings.TrimSpace(*req.Text)
	}
	if req.Points != nil {
		question.Points = *req.Points
	}
	if req.ModelAnswer != nil {
		question.ModelAnswer = req.ModelAnswer
	}
	if req.Tags != nil {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		question.Tags = tags
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if req.Choices != nil {
			choices := make([]models.Choice, 0, len(req.Choices))
			for i, choiceReq := range req.Choices {
				order := choiceReq.Order
				if order == 0 {
					order = i + 1
				}
				choices = append(choices, models.Choice{
					Text:      strings.TrimSpace(choiceReq.Text),
					IsCorrect: choiceReq.IsCorrect,
					Order:     order,
				})
			}
			if err := txRepo.Question().ReplaceChoices(ctx, nil, id, choices); err != nil {
				return err
			}
			question.Choices = choices
		}

		stored := *question
		stored.Choices = nil // choices already replaced above
		return txRepo.Question().Update(ctx, nil, &stored)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question updated", "question_id", id, "teacher_id", teacherID)
	return question, nil
}

func (s *questionService) Delete(ctx context.Context, teacherID string, id uint) error {
	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canAccess(ctx, teacherID, question, "delete"); err != nil {
		return err
	}

	linked, err := s.repo.Question().IsLinkedToExam(ctx, nil, id)
	if err != nil {
		return err
	}
	if linked {
		return ErrQuestionInUse
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.logger.Info("question deleted", "question_id", id, "teacher_id", teacherID)
	return nil
}

func (s *questionService) List(ctx context.Context, teacherID string, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	filters.CreatedBy = &teacherID
	return s.repo.Question().List(ctx, nil, filters)
}

func (s *questionService) getQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

func (s *questionService) canAccess(ctx context.Context, userID string, question *models.Question, action string) error {
	if question.CreatedBy == userID {
		return nil
	}

	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err == nil && isAdmin {
		return nil
	}

	return NewPermissionError(userID, action, fmt.Sprintf("question %d", question.ID))
}
