package models

// NotificationType identifies what a published notification is about.
type NotificationType string

const (
	NotificationExamPublished    NotificationType = "exam.published"
	NotificationExamDeactivated  NotificationType = "exam.deactivated"
	NotificationExamClosingSoon  NotificationType = "exam.closing_soon"
	NotificationAttemptSubmitted NotificationType = "attempt.submitted"
	NotificationAttemptGraded    NotificationType = "attempt.graded"
)

// NotificationPriority orders delivery urgency downstream.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)
