package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/events"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

type notificationEventService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
}

func NewNotificationEventService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger) NotificationEventService {
	return &notificationEventService{
		repo:           repo,
		eventPublisher: publisher,
		logger:         logger,
	}
}

func (s *notificationEventService) PublishExamCreated(ctx context.Context, exam *models.Exam) error {
	event := events.NewEvent(events.TypeExamCreated, map[string]interface{}{
		"notification": string(models.NotificationExamPublished),
		"priority":     string(models.PriorityNormal),
		"exam_id":      exam.ID,
		"title":        exam.Title,
		"created_by":   exam.CreatedBy,
		"join_code":    exam.JoinCode,
		"start_time":   exam.StartTime,
		"end_time":     exam.EndTime,
	})
	return s.publish(ctx, event)
}

func (s *notificationEventService) PublishExamDeactivated(ctx context.Context, exam *models.Exam) error {
	event := events.NewEvent(events.TypeExamDeactivated, map[string]interface{}{
		"notification": string(models.NotificationExamDeactivated),
		"priority":     string(models.PriorityHigh),
		"exam_id":      exam.ID,
		"title":        exam.Title,
		"created_by":   exam.CreatedBy,
	})
	return s.publish(ctx, event)
}

func (s *notificationEventService) PublishAttemptSubmitted(ctx context.Context, attempt *models.ExamAttempt) error {
	data := map[string]interface{}{
		"notification": string(models.NotificationAttemptSubmitted),
		"priority":     string(models.PriorityNormal),
		"attempt_id":   attempt.ID,
		"exam_id":      attempt.ExamID,
		"student_id":   attempt.StudentID,
		"end_reason":   attempt.EndReason,
	}
	if attempt.Score != nil {
		data["score"] = *attempt.Score
	}
	return s.publish(ctx, events.NewEvent(events.TypeAttemptSubmitted, data))
}

func (s *notificationEventService) PublishAttemptGraded(ctx context.Context, attempt *models.ExamAttempt) error {
	data := map[string]interface{}{
		"notification": string(models.NotificationAttemptGraded),
		"priority":     string(models.PriorityNormal),
		"attempt_id":   attempt.ID,
		"exam_id":      attempt.ExamID,
		"student_id":   attempt.StudentID,
	}
	if attempt.Score != nil {
		data["score"] = *attempt.Score
	}
	return s.publish(ctx, events.NewEvent(events.TypeAttemptGraded, data))
}

func (s *notificationEventService) publish(ctx context.Context, event events.Event) error {
	if s.eventPublisher == nil {
		s.logger.Debug("event publisher not configured, dropping event", "type", event.Type)
		return nil
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	s.logger.Debug("event published", "type", event.Type, "event_id", event.ID)
	return nil
}
