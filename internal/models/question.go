package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	Essay          QuestionType = "essay"
	ShortAnswer    QuestionType = "short_answer"
)

// IsValid checks whether the type is one of the supported kinds.
func (qt QuestionType) IsValid() bool {
	switch qt {
	case MultipleChoice, Essay, ShortAnswer:
		return true
	}
	return false
}

// Question is owned by a teacher and reusable across exams through
// the exam_questions join table.
type Question struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	CreatedBy string `json:"created_by" gorm:"size:255;not null;index"`

	Type QuestionType `json:"type" gorm:"size:20;not null;index"`
	Text string       `json:"text" gorm:"type:text;not null"`

	Points int `json:"points" gorm:"not null;default:1"`

	// ModelAnswer enables auto-grading of short_answer questions
	// (case-insensitive, trimmed match). Nil means manual grading.
	ModelAnswer *string `json:"model_answer,omitempty" gorm:"type:text"`

	Tags datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Choices []Choice `json:"choices,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// IsAutoGradable reports whether this question can be graded
// automatically at submission time. Short answers qualify only when a
// model answer is set.
func (q *Question) IsAutoGradable() bool {
	switch q.Type {
	case MultipleChoice:
		return true
	case ShortAnswer:
		return q.ModelAnswer != nil && *q.ModelAnswer != ""
	}
	return false
}

// CorrectChoiceID returns the id of the single correct choice, or nil
// for question types without choices.
func (q *Question) CorrectChoiceID() *uint {
	for i := range q.Choices {
		if q.Choices[i].IsCorrect {
			return &q.Choices[i].ID
		}
	}
	return nil
}

// Choice is one selectable option of a multiple_choice question.
type Choice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct,omitempty" gorm:"not null;default:false"`
	Order      int    `json:"order" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Choice) TableName() string {
	return "answer_choices"
}

// ExamQuestion links a reusable question into an exam at a position.
type ExamQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ExamID     uint `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_question;uniqueIndex:idx_exam_order"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_exam_question;index"`
	Order      int  `json:"order" gorm:"not null;uniqueIndex:idx_exam_order"`

	// Points overrides the question's own point value for this exam.
	Points *int `json:"points,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// EffectivePoints returns the point value of the question within this exam.
func (eq *ExamQuestion) EffectivePoints() int {
	if eq.Points != nil {
		return *eq.Points
	}
	if eq.Question != nil {
		return eq.Question.Points
	}
	return 1
}
