package models

import (
	"time"

	"gorm.io/gorm"
)

// Exam represents a scheduled examination that students join by code.
// Deactivation is a soft flag: the row (and all attempts) stay intact,
// the exam just stops resolving for students.
type Exam struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	CreatedBy string `json:"created_by" gorm:"size:255;not null;index"`

	Title       string `json:"title" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`

	// JoinCode is generated once at creation and never changes.
	// Always stored uppercase; lookups uppercase their input.
	JoinCode string `json:"join_code" gorm:"size:6;not null;uniqueIndex"`

	DurationMinutes int `json:"duration_minutes" gorm:"not null;default:60"`
	TotalMarks      int `json:"total_marks" gorm:"not null;default:100"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null;index"`

	IsActive bool `json:"is_active" gorm:"not null;default:true"`

	Settings ExamSettings `json:"settings" gorm:"embedded;embeddedPrefix:setting_"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	// Computed fields (not persisted)
	QuestionCount int   `json:"question_count,omitempty" gorm:"-"`
	AttemptCount  int64 `json:"attempt_count,omitempty" gorm:"-"`
}

// ExamSettings holds per-exam behaviour toggles.
type ExamSettings struct {
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShowResults      bool `json:"show_results" gorm:"default:true"`
}

func (Exam) TableName() string {
	return "exams"
}

// IsOpen reports whether the exam window contains t.
func (e *Exam) IsOpen(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

// HasStarted reports whether the exam window has opened at t.
func (e *Exam) HasStarted(t time.Time) bool {
	return !t.Before(e.StartTime)
}

// HasEnded reports whether the exam window has closed at t.
func (e *Exam) HasEnded(t time.Time) bool {
	return t.After(e.EndTime)
}

// Duration returns the per-attempt time limit.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}
