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

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *appvalidator.BusinessValidator
}

func NewExamHandler(
	examService services.ExamService,
	validator *appvalidator.BusinessValidator,
	logger utils.Logger,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   validator,
	}
}

// CreateExam creates a new exam
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves an exam by ID
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ResolveExamByCode looks up an open exam by join code
// @Summary Resolve exam by join code
// @Tags exams
// @Produce json
// @Param code path string true "Join code"
// @Success 200 {object} models.Exam
// @Router /exams/code/{code} [get]
func (h *ExamHandler) ResolveExamByCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	exam, err := h.examService.ResolveByCode(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// UpdateExam updates an exam
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.UpdateExamRequest true "Updated fields"
// @Success 200 {object} models.Exam
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam removes an exam that has no attempts
// @Summary Delete exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), userID, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse("Exam deleted", nil))
}

// ActivateExam re-activates a deactivated exam
func (h *ExamHandler) ActivateExam(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateExam hides an exam from students without touching attempts
func (h *ExamHandler) DeactivateExam(c *gin.Context) {
	h.setActive(c, false)
}

func (h *ExamHandler) setActive(c *gin.Context, active bool) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var err error
	if active {
		err = h.examService.Activate(c.Request.Context(), userID, id)
	} else {
		err = h.examService.Deactivate(c.Request.Context(), userID, id)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	msg := "Exam deactivated"
	if active {
		msg = "Exam activated"
	}
	c.JSON(http.StatusOK, newSuccessResponse(msg, nil))
}

// ListActiveExams lists exams currently open for joining
// @Summary List active exams
// @Tags exams
// @Produce json
// @Success 200 {object} models.PaginatedResponse[models.Exam]
// @Router /exams/active [get]
func (h *ExamHandler) ListActiveExams(c *gin.Context) {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	exams, total, err := h.examService.ListActive(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewPaginatedResponse(exams, total, page, size))
}

// ListMyExams lists the authenticated teacher's exams
// @Summary List own exams
// @Tags exams
// @Produce json
// @Success 200 {object} models.PaginatedResponse[models.Exam]
// @Router /exams [get]
func (h *ExamHandler) ListMyExams(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseExamFilters(c)
	exams, total, err := h.examService.ListByTeacher(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	c.JSON(http.StatusOK, models.NewPaginatedResponse(exams, total, page, size))
}

// AddQuestionToExam links a question into an exam
// @Summary Add question to exam
// @Tags exams
// @Accept json
// @Param id path uint true "Exam ID"
// @Param link body services.ExamQuestionRequest true "Question link"
// @Success 201 {object} SuccessResponse
// @Router /exams/{id}/questions [post]
func (h *ExamHandler) AddQuestionToExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ExamQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.examService.AddQuestion(c.Request.Context(), userID, id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSuccessResponse("Question added to exam", nil))
}

// RemoveQuestionFromExam unlinks a question from an exam
// @Summary Remove question from exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Router /exams/{id}/questions/{question_id} [delete]
func (h *ExamHandler) RemoveQuestionFromExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.examService.RemoveQuestion(c.Request.Context(), userID, id, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse("Question removed from exam", nil))
}

// GetExamQuestions lists the questions of an exam. Correct answers are
// included only for the exam owner and admins.
// @Summary List exam questions
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} services.QuestionView
// @Router /exams/{id}/questions [get]
func (h *ExamHandler) GetExamQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	role := models.RoleStudent
	if v, exists := c.Get("user_role"); exists {
		if r, ok := v.(models.UserRole); ok {
			role = r
		}
	}

	questions, err := h.examService.GetQuestions(c.Request.Context(), userID, role, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

func (h *ExamHandler) parseExamFilters(c *gin.Context) repositories.ExamFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.ExamFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if activeStr := c.Query("is_active"); activeStr != "" {
		active := activeStr == "true"
		filters.IsActive = &active
	}

	return filters
}
