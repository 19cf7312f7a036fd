package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/services"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *appvalidator.BusinessValidator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *appvalidator.BusinessValidator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeAnswer records a manual grade on a subjective answer
// @Summary Grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param grade body services.GradeAnswerRequest true "Grade"
// @Success 200 {object} services.GradingResult
// @Router /answers/{id}/grade [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.GradeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse("bad_request", "Invalid request payload", err.Error()))
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingService.GradeAnswer(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPendingCount returns how many answers still need manual grading
// @Summary Pending manual grades
// @Tags grading
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} map[string]int64
// @Router /exams/{id}/grading/pending [get]
func (h *GradingHandler) GetPendingCount(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	count, err := h.gradingService.PendingManualCount(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending_manual": count})
}
