package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

// getOwnedAttempt loads the attempt and its exam, enforcing that the
// caller is the attempt's student.
func (s *attemptService) getOwnedAttempt(ctx context.Context, studentID string, attemptID uint) (*models.ExamAttempt, *models.Exam, error) {
	attempt, exam, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, NewPermissionError(studentID, "access", fmt.Sprintf("attempt %d", attemptID))
	}
	return attempt, exam, nil
}

// getAccessibleAttempt additionally allows the exam owner and admins.
func (s *attemptService) getAccessibleAttempt(ctx context.Context, userID string, attemptID uint) (*models.ExamAttempt, *models.Exam, error) {
	attempt, exam, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}

	if attempt.StudentID == userID || exam.CreatedBy == userID {
		return attempt, exam, nil
	}
	isAdmin, roleErr := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if roleErr == nil && isAdmin {
		return attempt, exam, nil
	}

	return nil, nil, NewPermissionError(userID, "access", fmt.Sprintf("attempt %d", attemptID))
}

func (s *attemptService) loadAttempt(ctx context.Context, attemptID uint) (*models.ExamAttempt, *models.Exam, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, err
	}

	exam := attempt.Exam
	if exam == nil {
		exam, err = s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrExamNotFound
			}
			return nil, nil, err
		}
	}

	return attempt, exam, nil
}

// finalize is the single completion path shared by manual submits and
// timeouts. Inside one transaction it writes every answer row first
// and only then flips the status; on any error the transaction rolls
// back, leaving the attempt in_progress and the submission retriable.
func (s *attemptService) finalize(ctx context.Context, attempt *models.ExamAttempt, exam *models.Exam, submissions []AnswerSubmission, endReason string) error {
	links, err := s.repo.ExamQuestion().ListByExam(ctx, nil, exam.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	byQuestion := make(map[uint]AnswerSubmission, len(submissions))
	onExam := make(map[uint]bool, len(links))
	for _, link := range links {
		onExam[link.QuestionID] = true
	}

	var errs ValidationErrors
	for i, sub := range submissions {
		if !onExam[sub.QuestionID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_id", i),
				Message: "question is not part of this exam",
				Value:   sub.QuestionID,
				Rule:    "business_logic",
			})
			continue
		}
		byQuestion[sub.QuestionID] = sub
	}
	if len(errs) > 0 {
		return errs
	}

	answers, correct, gradable, gradeErrs := gradeSubmission(attempt.ID, links, byQuestion)
	if len(gradeErrs) > 0 {
		return gradeErrs
	}

	score := computeScore(correct, gradable)
	completedAt := s.now()

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// A retried submission may have half-written rows from a
		// previous attempt that failed after the batch insert.
		if err := txRepo.Answer().DeleteByAttempt(ctx, nil, attempt.ID); err != nil {
			return err
		}
		if err := txRepo.Answer().CreateBatch(ctx, nil, answers); err != nil {
			return err
		}

		// Compare-and-swap keeps the state machine forward-only even
		// when two submits race.
		if err := txRepo.Attempt().UpdateStatus(ctx, nil, attempt.ID, models.AttemptInProgress, models.AttemptCompleted); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptAlreadySubmitted
			}
			return err
		}

		attempt.Status = models.AttemptCompleted
		attempt.CompletedAt = &completedAt
		attempt.Score = &score
		attempt.CorrectCount = correct
		attempt.GradableCount = gradable
		attempt.EndReason = endReason
		return txRepo.Attempt().Update(ctx, nil, attempt)
	})
	if err != nil {
		if errors.Is(err, ErrAttemptAlreadySubmitted) {
			return ErrAttemptAlreadySubmitted
		}
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	s.logger.Info("attempt completed",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"score", score,
		"correct", correct,
		"gradable", gradable,
		"end_reason", endReason)
	return nil
}

// gradeSubmission builds one answer row per exam question, graded
// where the type allows it. Unanswered questions get a row with both
// response fields nil.
func gradeSubmission(attemptID uint, links []*models.ExamQuestion, byQuestion map[uint]AnswerSubmission) ([]*models.Answer, int, int, ValidationErrors) {
	var errs ValidationErrors
	answers := make([]*models.Answer, 0, len(links))
	correct := 0
	gradable := 0

	for _, link := range links {
		question := link.Question
		if question == nil {
			continue
		}

		answer := &models.Answer{
			AttemptID:  attemptID,
			QuestionID: question.ID,
		}

		sub, answered := byQuestion[question.ID]
		if answered {
			answer.SelectedChoiceID = sub.SelectedChoiceID
			if sub.AnswerText != nil && strings.TrimSpace(*sub.AnswerText) != "" {
				answer.AnswerText = sub.AnswerText
			}
		}

		switch {
		case question.Type == models.MultipleChoice:
			gradable++
			if answer.SelectedChoiceID != nil && !choiceBelongs(question, *answer.SelectedChoiceID) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("answers[question %d].selected_choice_id", question.ID),
					Message: "choice does not belong to this question",
					Value:   *answer.SelectedChoiceID,
					Rule:    "business_logic",
				})
				continue
			}

			correctID := question.CorrectChoiceID()
			isCorrect := answer.SelectedChoiceID != nil && correctID != nil && *answer.SelectedChoiceID == *correctID
			answer.IsCorrect = &isCorrect
			if isCorrect {
				correct++
				answer.AwardedPoints = float64(link.EffectivePoints())
			}

		case question.IsAutoGradable(): // short answer with model answer
			gradable++
			isCorrect := answer.AnswerText != nil &&
				strings.EqualFold(strings.TrimSpace(*answer.AnswerText), strings.TrimSpace(*question.ModelAnswer))
			answer.IsCorrect = &isCorrect
			if isCorrect {
				correct++
				answer.AwardedPoints = float64(link.EffectivePoints())
			}

		default:
			// Essay, or short answer without a model answer: stays
			// ungraded with IsCorrect nil and is excluded from the
			// score denominator.
		}

		answers = append(answers, answer)
	}

	return answers, correct, gradable, errs
}

func choiceBelongs(question *models.Question, choiceID uint) bool {
	for _, choice := range question.Choices {
		if choice.ID == choiceID {
			return true
		}
	}
	return false
}

// computeScore is correct / gradable * 100, rounded to one decimal.
// No auto-gradable questions means 0, never a division by zero.
func computeScore(correct, gradable int) float64 {
	if gradable == 0 {
		return 0.0
	}
	return math.Round(float64(correct)/float64(gradable)*1000) / 10
}

func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.ExamAttempt, exam *models.Exam, now time.Time) (*AttemptResponse, error) {
	resp := &AttemptResponse{
		ExamAttempt: attempt,
		CanStart:    attempt.Status == models.AttemptRegistered && !exam.HasEnded(now),
		CanSubmit:   attempt.Status == models.AttemptInProgress && !attempt.IsExpired(now),
	}

	if attempt.Status == models.AttemptInProgress {
		if deadline, ok := attempt.Deadline(); ok {
			remaining := int64(deadline.Sub(now).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			resp.TimeRemainingSeconds = &remaining
		}

		links, err := s.repo.ExamQuestion().ListByExam(ctx, nil, exam.ID)
		if err != nil {
			return nil, err
		}
		views := buildQuestionViews(links, false)
		if exam.Settings.ShuffleQuestions {
			shuffleQuestionViews(views, attempt.ID)
		}
		resp.Questions = views
	}

	return resp, nil
}

// shuffleQuestionViews shuffles deterministically per attempt so a
// reconnecting student sees the same order again.
func shuffleQuestionViews(views []*QuestionView, attemptID uint) {
	rng := rand.New(rand.NewSource(int64(attemptID)))
	rng.Shuffle(len(views), func(i, j int) {
		views[i], views[j] = views[j], views[i]
	})
}

func (s *attemptService) buildResultResponse(ctx context.Context, attemptID uint, showAnswers bool) (*AttemptResultResponse, error) {
	attempt, err := s.repo.Attempt().GetWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	resp := &AttemptResultResponse{ExamAttempt: attempt}
	if !showAnswers {
		attempt.Answers = nil
		return resp, nil
	}

	for i := range attempt.Answers {
		answer := &attempt.Answers[i]

		result := &AnswerResult{
			QuestionID:       answer.QuestionID,
			SelectedChoiceID: answer.SelectedChoiceID,
			AnswerText:       answer.AnswerText,
			IsCorrect:        answer.IsCorrect,
			AwardedPoints:    answer.AwardedPoints,
			Feedback:         answer.Feedback,
		}
		if answer.Question != nil {
			result.QuestionText = answer.Question.Text
			result.Type = answer.Question.Type
			if answer.Question.Type == models.MultipleChoice {
				result.CorrectChoiceID = answer.Question.CorrectChoiceID()
			}
		}
		resp.Answers = append(resp.Answers, result)
	}

	attempt.Answers = nil // detail lives in resp.Answers
	return resp, nil
}
