package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptStatus tracks a student's progress through an exam.
// Transitions are strictly forward: registered -> in_progress -> completed.
type AttemptStatus string

const (
	AttemptRegistered AttemptStatus = "registered"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// attemptTransitions is the full forward-only transition table.
// No status ever moves backwards, including on error paths.
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptRegistered: {AttemptInProgress},
	AttemptInProgress: {AttemptCompleted},
	AttemptCompleted:  {},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt can change no further.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted
}

// ExamAttempt is the single attempt a student gets at an exam.
// The (exam_id, student_id) unique index is what serializes concurrent
// joins: the second insert loses and re-reads the winner's row.
type ExamAttempt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_exam_student"`
	StudentID string `json:"student_id" gorm:"size:255;not null;uniqueIndex:idx_attempt_exam_student;index"`

	Status AttemptStatus `json:"status" gorm:"size:20;not null;default:'registered';index"`

	RegisteredAt time.Time  `json:"registered_at" gorm:"not null"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	// EndedAt is the hard deadline: min(StartedAt + exam duration, exam EndTime).
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Score is the percentage over auto-gradable questions, one decimal.
	// Nil until the attempt is completed.
	Score         *float64 `json:"score,omitempty"`
	CorrectCount  int      `json:"correct_count"`
	GradableCount int      `json:"gradable_count"`

	SessionData datatypes.JSON `json:"session_data,omitempty" gorm:"type:jsonb"`
	EndReason   string         `json:"end_reason,omitempty" gorm:"size:50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Exam    *Exam    `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// Deadline returns the attempt's hard deadline, or false when the
// attempt has not been started yet.
func (a *ExamAttempt) Deadline() (time.Time, bool) {
	if a.EndedAt == nil {
		return time.Time{}, false
	}
	return *a.EndedAt, true
}

// IsExpired reports whether the deadline has passed at t.
func (a *ExamAttempt) IsExpired(t time.Time) bool {
	deadline, ok := a.Deadline()
	return ok && t.After(deadline)
}

// Answer is one response row per exam question per attempt. Unanswered
// questions still get a row with both response fields nil.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question;index"`

	SelectedChoiceID *uint   `json:"selected_choice_id,omitempty"`
	AnswerText       *string `json:"answer_text,omitempty" gorm:"type:text"`

	// IsCorrect is nil for answers that were not auto-graded
	// (essay, short answer without a model answer).
	IsCorrect     *bool   `json:"is_correct,omitempty"`
	AwardedPoints float64 `json:"awarded_points" gorm:"not null;default:0"`

	// Manual grading
	GradedBy *string    `json:"graded_by,omitempty" gorm:"size:255"`
	GradedAt *time.Time `json:"graded_at,omitempty"`
	Feedback *string    `json:"feedback,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "student_answers"
}

// IsAnswered reports whether the student supplied any response.
func (a *Answer) IsAnswered() bool {
	return a.SelectedChoiceID != nil || (a.AnswerText != nil && *a.AnswerText != "")
}
