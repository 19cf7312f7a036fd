package services

import (
	"errors"
	"fmt"

	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

// Sentinel errors mapped to HTTP statuses at the handler layer.
var (
	// Exams
	ErrExamNotFound    = errors.New("exam not found")
	ErrExamNotYetOpen  = errors.New("exam has not opened yet")
	ErrExamExpired     = errors.New("exam window has closed")
	ErrExamHasAttempts = errors.New("exam already has attempts")

	// Questions
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuestionInUse     = errors.New("question is linked to an exam")
	ErrQuestionSubmitted = errors.New("question has submitted answers")
	ErrQuestionNotInExam = errors.New("question is not part of this exam")

	// Attempts
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotStarted       = errors.New("attempt has not been started")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrSubmissionFailed        = errors.New("submission failed")

	// Answers
	ErrAnswerNotFound = errors.New("answer not found")

	// Generic
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrUserNotFound     = errors.New("user not found")
	ErrConflict         = errors.New("conflict")
)

// ValidationErrors is re-exported so callers of the service layer do
// not need to import the validator package directly.
type ValidationErrors = appvalidator.ValidationErrors
type ValidationError = appvalidator.ValidationError

// PermissionError carries who tried what on which resource.
type PermissionError struct {
	UserID   string
	Action   string
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s %s", e.UserID, e.Action, e.Resource)
}

func NewPermissionError(userID, action, resource string) *PermissionError {
	return &PermissionError{UserID: userID, Action: action, Resource: resource}
}

// BusinessRuleError marks violations of domain rules that are neither
// validation nor permission problems.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
