package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/services"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
)

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SuccessResponse wraps payloads that need a message alongside data.
type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// BaseHandler carries the helpers shared by all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.FromContext(c, h.logger).Error(msg, append(args, "error", err)...)
}

func (h *BaseHandler) getUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// requireUserID aborts with 401 when no authenticated user is present.
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID := h.getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, newErrorResponse("unauthorized", "User not authenticated", nil))
		return "", false
	}
	return userID, true
}

// parseIDParam parses a numeric path parameter. A zero return means the
// response has already been written.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid "+param, idStr))
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func newErrorResponse(code, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func newSuccessResponse(message string, data interface{}) SuccessResponse {
	return SuccessResponse{
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// handleServiceError translates service-layer errors to HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, newErrorResponse("validation_failed", "Validation failed", validationErrors))
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, newErrorResponse("business_rule_violation", businessRuleError.Message, map[string]interface{}{
			"rule": businessRuleError.Rule,
		}))
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, newErrorResponse("forbidden", "Access denied", map[string]interface{}{
			"action":   permissionError.Action,
			"resource": permissionError.Resource,
		}))
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "Exam not found", nil))
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "Question not found", nil))
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "Attempt not found", nil))
	case errors.Is(err, services.ErrAnswerNotFound):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "Answer not found", nil))
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "User not found", nil))
	case errors.Is(err, services.ErrExamNotYetOpen):
		c.JSON(http.StatusConflict, newErrorResponse("exam_not_open", "Exam has not opened yet", nil))
	case errors.Is(err, services.ErrExamExpired):
		c.JSON(http.StatusGone, newErrorResponse("exam_expired", "Exam window has closed", nil))
	case errors.Is(err, services.ErrExamHasAttempts):
		c.JSON(http.StatusConflict, newErrorResponse("exam_has_attempts", "Exam already has attempts", nil))
	case errors.Is(err, services.ErrQuestionInUse):
		c.JSON(http.StatusConflict, newErrorResponse("question_in_use", "Question is linked to an exam", nil))
	case errors.Is(err, services.ErrQuestionSubmitted):
		c.JSON(http.StatusConflict, newErrorResponse("question_frozen", "Question already has submitted answers", nil))
	case errors.Is(err, services.ErrQuestionNotInExam):
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "Question is not part of this exam", nil))
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, newErrorResponse("already_submitted", "Attempt already submitted", nil))
	case errors.Is(err, services.ErrAttemptNotStarted):
		c.JSON(http.StatusConflict, newErrorResponse("not_started", "Attempt has not been started", nil))
	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, newErrorResponse("not_active", "Attempt is not in progress", nil))
	case errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusGone, newErrorResponse("time_expired", "Attempt time has expired", nil))
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, newErrorResponse("conflict", "Resource conflict", nil))
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, newErrorResponse("unauthorized", "Authentication required", nil))
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, newErrorResponse("forbidden", "Access denied", nil))
	case errors.Is(err, services.ErrSubmissionFailed):
		c.JSON(http.StatusInternalServerError, newErrorResponse("submission_failed", "Submission failed, please retry", nil))
	default:
		h.logger.Error("unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, newErrorResponse("internal_error", "Internal server error", nil))
	}
}
