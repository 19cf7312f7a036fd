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

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *appvalidator.BusinessValidator
	events    NotificationEventService

	// now is swappable in tests
	now func() time.Time
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *appvalidator.BusinessValidator, events NotificationEventService) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    events,
		now:       time.Now,
	}
}

// Join registers the student for the exam, or hands back the attempt
// they already hold. Exactly one attempt can ever exist per
// (student, exam) pair.
func (s *attemptService) Join(ctx context.Context, studentID string, examID uint) (*JoinExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return s.join(ctx, studentID, exam)
}

// JoinByCode resolves the join code first, then joins. Deactivated
// exams do not resolve, so their codes behave as unknown.
func (s *attemptService) JoinByCode(ctx context.Context, studentID, code string) (*JoinExamResponse, error) {
	exam, err := s.repo.Exam().GetByJoinCode(ctx, nil, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return s.join(ctx, studentID, exam)
}

func (s *attemptService) join(ctx context.Context, studentID string, exam *models.Exam) (*JoinExamResponse, error) {
	if !exam.IsActive {
		return nil, ErrExamNotFound
	}

	// Timing gate comes before everything else.
	now := s.now()
	if !exam.HasStarted(now) {
		return nil, ErrExamNotYetOpen
	}
	if exam.HasEnded(now) {
		return nil, ErrExamExpired
	}

	existing, err := s.repo.Attempt().GetByExamAndStudent(ctx, nil, exam.ID, studentID)
	if err == nil {
		return s.rejoin(exam, existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	attempt := &models.ExamAttempt{
		ExamID:       exam.ID,
		StudentID:    studentID,
		Status:       models.AttemptRegistered,
		RegisteredAt: now,
	}
	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		// A concurrent join won the unique-index race; return its row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, readErr := s.repo.Attempt().GetByExamAndStudent(ctx, nil, exam.ID, studentID)
			if readErr != nil {
				return nil, readErr
			}
			return s.rejoin(exam, winner)
		}
		return nil, err
	}

	s.logger.Info("student joined exam",
		"exam_id", exam.ID,
		"student_id", studentID,
		"attempt_id", attempt.ID)

	return &JoinExamResponse{Attempt: attempt, Exam: exam, Existing: false}, nil
}

// rejoin implements the idempotent path: any non-completed attempt is
// returned unchanged, a completed one refuses a second round.
func (s *attemptService) rejoin(exam *models.Exam, attempt *models.ExamAttempt) (*JoinExamResponse, error) {
	if attempt.Status == models.AttemptCompleted {
		return nil, ErrAttemptAlreadySubmitted
	}
	return &JoinExamResponse{Attempt: attempt, Exam: exam, Existing: true}, nil
}

// Start moves a registered attempt to in_progress and fixes its
// deadline. Starting an attempt that is already in progress is the
// reconnect path and returns the same state again.
func (s *attemptService) Start(ctx context.Context, studentID string, attemptID uint) (*AttemptResponse, error) {
	attempt, exam, err := s.getOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	switch attempt.Status {
	case models.AttemptCompleted:
		return nil, ErrAttemptAlreadySubmitted

	case models.AttemptInProgress:
		if attempt.IsExpired(now) {
			if err := s.HandleTimeout(ctx, attemptID); err != nil {
				return nil, err
			}
			return nil, ErrAttemptTimeExpired
		}
		return s.buildAttemptResponse(ctx, attempt, exam, now)
	}

	if exam.HasEnded(now) {
		return nil, ErrExamExpired
	}

	deadline := now.Add(exam.Duration())
	if deadline.After(exam.EndTime) {
		deadline = exam.EndTime
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Attempt().UpdateStatus(ctx, nil, attemptID, models.AttemptRegistered, models.AttemptInProgress); err != nil {
			return err
		}
		attempt.Status = models.AttemptInProgress
		attempt.StartedAt = &now
		attempt.EndedAt = &deadline
		return txRepo.Attempt().Update(ctx, nil, attempt)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost a race; re-read and report the real state.
			return s.Start(ctx, studentID, attemptID)
		}
		return nil, err
	}

	s.logger.Info("attempt started",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"deadline", deadline)

	return s.buildAttemptResponse(ctx, attempt, exam, now)
}

// Submit writes the full answer batch and completes the attempt in a
// single transaction. All answer rows land before the status flips;
// any failure rolls everything back and the attempt stays in_progress
// and retriable.
func (s *attemptService) Submit(ctx context.Context, studentID string, attemptID uint, req *SubmitAnswersRequest) (*AttemptResultResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	attempt, exam, err := s.getOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case models.AttemptCompleted:
		return nil, ErrAttemptAlreadySubmitted
	case models.AttemptRegistered:
		return nil, ErrAttemptNotStarted
	}

	if err := s.finalize(ctx, attempt, exam, req.Answers, "submitted"); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishAttemptSubmitted(ctx, attempt); err != nil {
			s.logger.Warn("failed to publish attempt submitted event", "attempt_id", attempt.ID, "error", err)
		}
	}

	return s.buildResultResponse(ctx, attempt.ID, true)
}

func (s *attemptService) Get(ctx context.Context, userID string, attemptID uint) (*AttemptResponse, error) {
	attempt, exam, err := s.getAccessibleAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.buildAttemptResponse(ctx, attempt, exam, s.now())
}

func (s *attemptService) GetResult(ctx context.Context, userID string, attemptID uint) (*AttemptResultResponse, error) {
	attempt, exam, err := s.getAccessibleAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptCompleted {
		return nil, ErrAttemptNotActive
	}

	// Per-answer detail follows the exam's show-results setting for
	// students; the owner always sees it.
	showAnswers := exam.Settings.ShowResults || exam.CreatedBy == userID
	return s.buildResultResponse(ctx, attemptID, showAnswers)
}

// TimeRemaining is the server-authoritative countdown in seconds.
func (s *attemptService) TimeRemaining(ctx context.Context, studentID string, attemptID uint) (int64, error) {
	attempt, exam, err := s.getOwnedAttempt(ctx, studentID, attemptID)
	if err != nil {
		return 0, err
	}

	now := s.now()

	switch attempt.Status {
	case models.AttemptCompleted:
		return 0, nil
	case models.AttemptRegistered:
		// Not started yet: the best case is the full duration, capped
		// by the closing window.
		remaining := exam.Duration()
		if windowLeft := exam.EndTime.Sub(now); windowLeft < remaining {
			remaining = windowLeft
		}
		if remaining < 0 {
			remaining = 0
		}
		return int64(remaining.Seconds()), nil
	}

	deadline, ok := attempt.Deadline()
	if !ok {
		return 0, ErrAttemptNotStarted
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining.Seconds()), nil
}

// HandleTimeout force-submits an expired attempt through the exact
// same finalization path as a manual submit, with no answers recorded.
func (s *attemptService) HandleTimeout(ctx context.Context, attemptID uint) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}
	if attempt.Status != models.AttemptInProgress {
		return nil // nothing to time out
	}

	exam := attempt.Exam
	if exam == nil {
		exam, err = s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
		if err != nil {
			return err
		}
	}

	if err := s.finalize(ctx, attempt, exam, nil, "timeout"); err != nil {
		return err
	}

	s.logger.Info("attempt timed out", "attempt_id", attempt.ID, "exam_id", attempt.ExamID)

	if s.events != nil {
		if err := s.events.PublishAttemptSubmitted(ctx, attempt); err != nil {
			s.logger.Warn("failed to publish attempt submitted event", "attempt_id", attempt.ID, "error", err)
		}
	}
	return nil
}

// SweepExpired times out all overdue in_progress attempts. Run
// periodically from main.
func (s *attemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.Attempt().ListExpired(ctx, nil, s.now(), limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, attempt := range expired {
		if err := s.HandleTimeout(ctx, attempt.ID); err != nil {
			s.logger.Error("failed to time out attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

func (s *attemptService) ListByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.StudentID = &studentID
	return s.repo.Attempt().List(ctx, nil, filters)
}

func (s *attemptService) ListByExam(ctx context.Context, teacherID string, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrExamNotFound
		}
		return nil, 0, err
	}
	if exam.CreatedBy != teacherID {
		isAdmin, roleErr := s.repo.User().HasRole(ctx, teacherID, models.RoleAdmin)
		if roleErr != nil || !isAdmin {
			return nil, 0, NewPermissionError(teacherID, "list attempts of", fmt.Sprintf("exam %d", examID))
		}
	}

	filters.ExamID = &examID
	return s.repo.Attempt().List(ctx, nil, filters)
}
