package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *appvalidator.BusinessValidator
	events    NotificationEventService

	// newJoinCode is swappable in tests.
	newJoinCode func() (string, error)
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *appvalidator.BusinessValidator, events NotificationEventService) ExamService {
	return &examService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		events:      events,
		newJoinCode: randomJoinCode,
	}
}

func (s *examService) Create(ctx context.Context, teacherID string, req *CreateExamRequest) (*models.Exam, error) {
	if errs := s.validator.ValidateExamCreate(req); len(errs) > 0 {
		return nil, errs
	}

	exam := &models.Exam{
		CreatedBy:       teacherID,
		Title:           strings.TrimSpace(req.Title),
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		IsActive:        true,
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if exam.DurationMinutes == 0 {
		exam.DurationMinutes = 60
	}
	if exam.TotalMarks == 0 {
		exam.TotalMarks = 100
	}
	if req.Settings != nil {
		exam.Settings = models.ExamSettings{ShowResults: true}
		if req.Settings.ShuffleQuestions != nil {
			exam.Settings.ShuffleQuestions = *req.Settings.ShuffleQuestions
		}
		if req.Settings.ShowResults != nil {
			exam.Settings.ShowResults = *req.Settings.ShowResults
		}
	} else {
		exam.Settings = models.ExamSettings{ShowResults: true}
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		code, err := s.generateJoinCode(ctx, txRepo)
		if err != nil {
			return err
		}
		exam.JoinCode = code

		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return err
		}

		for i, qReq := range req.Questions {
			order := qReq.Order
			if order == 0 {
				order = i + 1
			}
			link := &models.ExamQuestion{
				ExamID:     exam.ID,
				QuestionID: qReq.QuestionID,
				Order:      order,
				Points:     qReq.Points,
			}
			if err := s.attachQuestion(ctx, txRepo, teacherID, link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exam created",
		"exam_id", exam.ID,
		"teacher_id", teacherID,
		"join_code", exam.JoinCode)

	if s.events != nil {
		if err := s.events.PublishExamCreated(ctx, exam); err != nil {
			s.logger.Warn("failed to publish exam created event", "exam_id", exam.ID, "error", err)
		}
	}

	return exam, nil
}

func (s *examService) Update(ctx context.Context, teacherID string, id uint, req *UpdateExamRequest) (*models.Exam, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canModify(ctx, teacherID, exam, "update"); err != nil {
		return nil, err
	}

	if errs := s.validator.ValidateExamUpdate(req, exam); len(errs) > 0 {
		return nil, errs
	}

	// The join code is immutable for the exam's lifetime, so updates
	// never touch it.
	if req.Title != nil {
		exam.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.TotalMarks != nil {
		exam.TotalMarks = *req.TotalMarks
	}
	if req.StartTime != nil {
		exam.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = *req.EndTime
	}
	if req.Settings != nil {
		if req.Settings.ShuffleQuestions != nil {
			exam.Settings.ShuffleQuestions = *req.Settings.ShuffleQuestions
		}
		if req.Settings.ShowResults != nil {
			exam.Settings.ShowResults = *req.Settings.ShowResults
		}
	}

	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, err
	}

	s.logger.Info("exam updated", "exam_id", exam.ID, "teacher_id", teacherID)
	return exam, nil
}

func (s *examService) Delete(ctx context.Context, teacherID string, id uint) error {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canModify(ctx, teacherID, exam, "delete"); err != nil {
		return err
	}

	count, err := s.repo.Attempt().CountByExam(ctx, nil, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrExamHasAttempts
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	s.logger.Info("exam deleted", "exam_id", id, "teacher_id", teacherID)
	return nil
}

func (s *examService) Activate(ctx context.Context, teacherID string, id uint) error {
	return s.setActive(ctx, teacherID, id, true)
}

func (s *examService) Deactivate(ctx context.Context, teacherID string, id uint) error {
	return s.setActive(ctx, teacherID, id, false)
}

// setActive flips the soft activation flag. Deactivation hides the
// exam from code resolution but touches nothing else, so existing
// attempts survive untouched.
func (s *examService) setActive(ctx context.Context, teacherID string, id uint, active bool) error {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	if err := s.canModify(ctx, teacherID, exam, action); err != nil {
		return err
	}

	if exam.IsActive == active {
		return nil // already in the requested state
	}

	if err := s.repo.Exam().SetActive(ctx, nil, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}

	s.logger.Info("exam active flag changed", "exam_id", id, "active", active)

	if !active && s.events != nil {
		exam.IsActive = false
		if err := s.events.PublishExamDeactivated(ctx, exam); err != nil {
			s.logger.Warn("failed to publish exam deactivated event", "exam_id", id, "error", err)
		}
	}

	return nil
}

func (s *examService) GetByID(ctx context.Context, userID string, id uint) (*ExamResponse, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return nil, err
	}

	questionCount, err := s.repo.ExamQuestion().CountByExam(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	resp := &ExamResponse{Exam: exam, QuestionCount: questionCount}

	// Attempt statistics are only for the exam owner.
	if exam.CreatedBy == userID {
		stats, err := s.repo.Exam().GetStats(ctx, nil, id)
		if err != nil {
			s.logger.Warn("failed to load exam stats", "exam_id", id, "error", err)
		} else {
			resp.Stats = stats
		}
	}

	return resp, nil
}

// ResolveByCode maps a join code to its active exam. Lookups are
// case-insensitive and never reveal inactive or deleted exams.
func (s *examService) ResolveByCode(ctx context.Context, code string) (*models.Exam, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, ErrExamNotFound
	}

	exam, err := s.repo.Exam().GetByJoinCode(ctx, nil, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}

func (s *examService) ListActive(ctx context.Context, limit, offset int) ([]*models.Exam, int64, error) {
	now := time.Now()
	active := true
	return s.repo.Exam().List(ctx, nil, repositories.ExamFilters{
		IsActive:  &active,
		OpenAt:    &now,
		Limit:     limit,
		Offset:    offset,
		SortBy:    "end_time",
		SortOrder: "asc",
	})
}

func (s *examService) ListByTeacher(ctx context.Context, teacherID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CreatedBy = &teacherID
	return s.repo.Exam().List(ctx, nil, filters)
}

func (s *examService) AddQuestion(ctx context.Context, teacherID string, examID uint, req *ExamQuestionRequest) error {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return errs
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	if err := s.canModify(ctx, teacherID, exam, "modify questions of"); err != nil {
		return err
	}

	count, err := s.repo.Attempt().CountByExam(ctx, nil, examID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrExamHasAttempts
	}

	link := &models.ExamQuestion{
		ExamID:     examID,
		QuestionID: req.QuestionID,
		Order:      req.Order,
		Points:     req.Points,
	}
	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return s.attachQuestion(ctx, txRepo, teacherID, link)
	})
}

func (s *examService) RemoveQuestion(ctx context.Context, teacherID string, examID, questionID uint) error {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	if err := s.canModify(ctx, teacherID, exam, "modify questions of"); err != nil {
		return err
	}

	count, err := s.repo.Attempt().CountByExam(ctx, nil, examID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrExamHasAttempts
	}

	if err := s.repo.ExamQuestion().Remove(ctx, nil, examID, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotInExam
		}
		return err
	}
	return nil
}

func (s *examService) GetQuestions(ctx context.Context, userID string, role models.UserRole, examID uint) ([]*QuestionView, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	links, err := s.repo.ExamQuestion().ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}

	// Correct answers are visible only to the exam owner and admins.
	includeAnswers := role == models.RoleAdmin || (role.CanAuthor() && exam.CreatedBy == userID)
	return buildQuestionViews(links, includeAnswers), nil
}
