package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
)

// ValidationError represents a single failed business rule
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// BusinessValidator layers exam-platform rules on top of struct tag
// validation.
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates a struct against its tags
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	var errs ValidationErrors

	err := bv.validate.Struct(s)
	if err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs = append(errs, ValidationError{
				Field:   fieldErr.Field(),
				Message: bv.getErrorMessage(fieldErr),
				Value:   fieldErr.Value(),
				Rule:    fieldErr.Tag(),
			})
		}
	}

	return errs
}

// ValidateExamCreate validates exam creation business rules
func (bv *BusinessValidator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	errs := bv.Validate(req)
	errs = append(errs, bv.validateExamWindow(req.StartTime, req.EndTime)...)
	return errs
}

// ValidateExamUpdate validates an update against the merged result, so
// moving only one end of the window cannot invert it.
func (bv *BusinessValidator) ValidateExamUpdate(req *ExamUpdateRequest, existing *models.Exam) ValidationErrors {
	errs := bv.Validate(req)

	start := existing.StartTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	end := existing.EndTime
	if req.EndTime != nil {
		end = *req.EndTime
	}
	errs = append(errs, bv.validateExamWindow(start, end)...)

	return errs
}

// ValidateQuestionCreate validates question creation business rules
func (bv *BusinessValidator) ValidateQuestionCreate(req *QuestionCreateRequest) ValidationErrors {
	errs := bv.Validate(req)
	errs = append(errs, bv.validateChoices(req.Type, req.Choices)...)
	return errs
}

// ValidateQuestionUpdate validates question update business rules
func (bv *BusinessValidator) ValidateQuestionUpdate(req *QuestionUpdateRequest, existing *models.Question) ValidationErrors {
	errs := bv.Validate(req)

	qType := existing.Type
	if req.Type != nil {
		qType = *req.Type
	}
	if req.Choices != nil {
		errs = append(errs, bv.validateChoices(qType, req.Choices)...)
	}

	return errs
}

// ValidateStatusTransition checks the attempt state machine.
func (bv *BusinessValidator) ValidateStatusTransition(current, next models.AttemptStatus) ValidationErrors {
	var errs ValidationErrors

	if !current.CanTransitionTo(next) {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	return errs
}

func (bv *BusinessValidator) validateExamWindow(start, end time.Time) ValidationErrors {
	var errs ValidationErrors

	if !start.Before(end) {
		errs = append(errs, ValidationError{
			Field:   "start_time",
			Message: "must be before end_time",
			Value:   start,
			Rule:    "exam_window",
		})
	}

	return errs
}

// validateChoices enforces the per-type choice rules: multiple choice
// needs at least two choices with exactly one marked correct, other
// types carry none.
func (bv *BusinessValidator) validateChoices(qType models.QuestionType, choices []ChoiceRequest) ValidationErrors {
	var errs ValidationErrors

	if qType != models.MultipleChoice {
		if len(choices) > 0 {
			errs = append(errs, ValidationError{
				Field:   "choices",
				Message: fmt.Sprintf("%s questions cannot have choices", qType),
				Value:   len(choices),
				Rule:    "business_logic",
			})
		}
		return errs
	}

	if len(choices) < 2 {
		errs = append(errs, ValidationError{
			Field:   "choices",
			Message: "multiple choice questions need at least 2 choices",
			Value:   len(choices),
			Rule:    "business_logic",
		})
	}

	correct := 0
	for i, choice := range choices {
		if strings.TrimSpace(choice.Text) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("choices[%d].text", i),
				Message: "cannot be empty",
				Value:   choice.Text,
				Rule:    "business_logic",
			})
		}
		if choice.IsCorrect {
			correct++
		}
	}

	if len(choices) >= 2 && correct != 1 {
		errs = append(errs, ValidationError{
			Field:   "choices",
			Message: "exactly one choice must be marked correct",
			Value:   correct,
			Rule:    "business_logic",
		})
	}

	return errs
}

// registerBusinessRules registers custom tag validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Exam duration in minutes
	bv.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 480
	})

	// Exam title length after trimming
	bv.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 3 && len(title) <= 255
	})

	// Points per question
	bv.validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	// Question type
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	// Join code shape: 6 uppercase alphanumerics
	bv.validate.RegisterValidation("join_code", func(fl validator.FieldLevel) bool {
		code := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		if len(code) != 6 {
			return false
		}
		for _, r := range code {
			if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				return false
			}
		}
		return true
	})
}

// getErrorMessage returns user-friendly error messages
func (bv *BusinessValidator) getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "exam_duration":
		return "must be between 1 and 480 minutes"
	case "exam_title":
		return "must be between 3 and 255 characters"
	case "points_range":
		return "must be between 1 and 100"
	case "question_type":
		return "must be multiple_choice, essay, or short_answer"
	case "join_code":
		return "must be 6 uppercase letters or digits"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
