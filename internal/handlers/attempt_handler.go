package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/services"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *appvalidator.BusinessValidator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *appvalidator.BusinessValidator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

type joinByCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// JoinExam registers the student on an exam by ID
// @Summary Join exam
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.JoinExamResponse
// @Router /exams/{id}/join [post]
func (h *AttemptHandler) JoinExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	resp, err := h.attemptService.Join(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Existing {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// JoinExamByCode registers the student on an exam by join code
// @Summary Join exam by code
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body joinByCodeRequest true "Join code"
// @Success 200 {object} services.JoinExamResponse
// @Router /attempts/join [post]
func (h *AttemptHandler) JoinExamByCode(c *gin.Context) {
	var req joinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	resp, err := h.attemptService.JoinByCode(c.Request.Context(), userID, strings.TrimSpace(req.Code))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Existing {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// StartAttempt moves a registered attempt to in_progress
// @Summary Start attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Router /attempts/{id}/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "attempt_id", id)

	attempt, err := h.attemptService.Start(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAnswers submits the whole answer batch and completes the attempt
// @Summary Submit answers
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answers body services.SubmitAnswersRequest true "Answer batch"
// @Success 200 {object} services.AttemptResultResponse
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) SubmitAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id, "answers", len(req.Answers))

	result, err := h.attemptService.Submit(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt returns the in-flight view of an attempt
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttemptResult returns the graded result of a completed attempt
// @Summary Get attempt result
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResultResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetAttemptResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTimeRemaining returns the seconds left on an attempt
// @Summary Get time remaining
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} map[string]int64
// @Router /attempts/{id}/time-remaining [get]
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	seconds, err := h.attemptService.TimeRemaining(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"time_remaining_seconds": seconds})
}

// ListMyAttempts lists the authenticated student's attempts
// @Summary List own attempts
// @Tags attempts
// @Produce json
// @Success 200 {object} models.PaginatedResponse[models.ExamAttempt]
// @Router /attempts [get]
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, total, err := h.attemptService.ListByStudent(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	c.JSON(http.StatusOK, models.NewPaginatedResponse(attempts, total, page, size))
}

// ListExamAttempts lists attempts on one exam for its owner
// @Summary List exam attempts
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.PaginatedResponse[models.ExamAttempt]
// @Router /exams/{id}/attempts [get]
func (h *AttemptHandler) ListExamAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, total, err := h.attemptService.ListByExam(c.Request.Context(), userID, examID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	c.JSON(http.StatusOK, models.NewPaginatedResponse(attempts, total, page, size))
}

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.AttemptFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	return filters
}
