package validator

import (
	"time"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
)

// ExamCreateRequest represents the request structure for creating exams
type ExamCreateRequest struct {
	Title           string               `json:"title" validate:"required,exam_title"`
	Description     *string              `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes int                  `json:"duration_minutes" validate:"omitempty,exam_duration"`
	TotalMarks      int                  `json:"total_marks" validate:"omitempty,min=1,max=1000"`
	StartTime       time.Time            `json:"start_time" validate:"required"`
	EndTime         time.Time            `json:"end_time" validate:"required"`
	Settings        *ExamSettingsRequest `json:"settings"`

	// Questions may be attached in the same request, in display order.
	Questions []ExamQuestionRequest `json:"questions" validate:"omitempty,dive"`
}

// ExamUpdateRequest represents the request structure for updating exams
type ExamUpdateRequest struct {
	Title           *string              `json:"title" validate:"omitempty,exam_title"`
	Description     *string              `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes *int                 `json:"duration_minutes" validate:"omitempty,exam_duration"`
	TotalMarks      *int                 `json:"total_marks" validate:"omitempty,min=1,max=1000"`
	StartTime       *time.Time           `json:"start_time"`
	EndTime         *time.Time           `json:"end_time"`
	Settings        *ExamSettingsRequest `json:"settings"`
}

// ExamSettingsRequest carries optional behaviour toggles
type ExamSettingsRequest struct {
	ShuffleQuestions *bool `json:"shuffle_questions"`
	ShowResults      *bool `json:"show_results"`
}

// ExamQuestionRequest links an existing question into an exam
type ExamQuestionRequest struct {
	QuestionID uint `json:"question_id" validate:"required"`
	Order      int  `json:"order" validate:"omitempty,min=1"`
	Points     *int `json:"points" validate:"omitempty,points_range"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Type        models.QuestionType `json:"type" validate:"required,question_type"`
	Text        string              `json:"text" validate:"required,min=1,max=2000"`
	Points      int                 `json:"points" validate:"omitempty,points_range"`
	ModelAnswer *string             `json:"model_answer" validate:"omitempty,max=1000"`
	Tags        []string            `json:"tags" validate:"omitempty,max=10,dive,max=50"`
	Choices     []ChoiceRequest     `json:"choices" validate:"omitempty,dive"`
}

// QuestionUpdateRequest represents the request structure for updating questions
type QuestionUpdateRequest struct {
	Type        *models.QuestionType `json:"type" validate:"omitempty,question_type"`
	Text        *string              `json:"text" validate:"omitempty,min=1,max=2000"`
	Points      *int                 `json:"points" validate:"omitempty,points_range"`
	ModelAnswer *string              `json:"model_answer" validate:"omitempty,max=1000"`
	Tags        []string             `json:"tags" validate:"omitempty,max=10,dive,max=50"`

	// Nil means keep existing choices; non-nil replaces them wholesale.
	Choices []ChoiceRequest `json:"choices" validate:"omitempty,dive"`
}

// ChoiceRequest is one option of a multiple choice question
type ChoiceRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=500"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" validate:"omitempty,min=0"`
}

// SubmitAnswersRequest is the batch payload of a final submission
type SubmitAnswersRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"omitempty,dive"`
}

// AnswerSubmission is one response inside a submission batch
type AnswerSubmission struct {
	QuestionID       uint    `json:"question_id" validate:"required"`
	SelectedChoiceID *uint   `json:"selected_choice_id"`
	AnswerText       *string `json:"answer_text" validate:"omitempty,max=10000"`
}

// GradeAnswerRequest is the teacher's manual grade for one answer
type GradeAnswerRequest struct {
	IsCorrect bool    `json:"is_correct"`
	Points    float64 `json:"points" validate:"min=0"`
	Feedback  *string `json:"feedback" validate:"omitempty,max=2000"`
}
