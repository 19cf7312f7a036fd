package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

const joinCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const joinCodeLength = 6

// generateJoinCode produces a code no other exam holds. Deactivated
// exams keep their code, so the check spans all rows to match the
// unique index on the column.
func (s *examService) generateJoinCode(ctx context.Context, repo repositories.Repository) (string, error) {
	const maxTries = 10

	for i := 0; i < maxTries; i++ {
		code, err := s.newJoinCode()
		if err != nil {
			return "", err
		}

		exists, err := repo.Exam().JoinCodeExists(ctx, nil, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique join code after %d tries", maxTries)
}

func randomJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	code := make([]byte, joinCodeLength)
	for i, b := range buf {
		code[i] = joinCodeCharset[int(b)%len(joinCodeCharset)]
	}
	return string(code), nil
}

func (s *examService) getExam(ctx context.Context, id uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}

// canModify allows the exam owner and admins.
func (s *examService) canModify(ctx context.Context, userID string, exam *models.Exam, action string) error {
	if exam.CreatedBy == userID {
		return nil
	}

	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err == nil && isAdmin {
		return nil
	}

	return NewPermissionError(userID, action, fmt.Sprintf("exam %d", exam.ID))
}

// attachQuestion validates and inserts one exam-question link inside
// an open transaction.
func (s *examService) attachQuestion(ctx context.Context, repo repositories.Repository, teacherID string, link *models.ExamQuestion) error {
	question, err := repo.Question().GetByID(ctx, nil, link.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}
	if question.CreatedBy != teacherID {
		isAdmin, roleErr := repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
		if roleErr != nil || !isAdmin {
			return NewPermissionError(teacherID, "attach", fmt.Sprintf("question %d", link.QuestionID))
		}
	}

	exists, err := repo.ExamQuestion().Exists(ctx, nil, link.ExamID, link.QuestionID)
	if err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}

	if link.Order == 0 {
		next, err := repo.ExamQuestion().NextOrder(ctx, nil, link.ExamID)
		if err != nil {
			return err
		}
		link.Order = next
	}

	return repo.ExamQuestion().Add(ctx, nil, link)
}

// buildQuestionViews converts exam-question links into the API shape.
// When includeAnswers is false, choice correctness is stripped so
// students never see it.
func buildQuestionViews(links []*models.ExamQuestion, includeAnswers bool) []*QuestionView {
	views := make([]*QuestionView, 0, len(links))

	for _, link := range links {
		if link.Question == nil {
			continue
		}
		q := link.Question

		view := &QuestionView{
			ID:     q.ID,
			Type:   q.Type,
			Text:   q.Text,
			Points: link.EffectivePoints(),
			Order:  link.Order,
		}

		for _, choice := range q.Choices {
			cv := ChoiceView{
				ID:    choice.ID,
				Text:  choice.Text,
				Order: choice.Order,
			}
			if includeAnswers {
				isCorrect := choice.IsCorrect
				cv.IsCorrect = &isCorrect
			}
			view.Choices = append(view.Choices, cv)
		}

		views = append(views, view)
	}

	return views
}
