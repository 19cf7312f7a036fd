package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/config"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/services"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

type HandlerManager struct {
	examHandler     *ExamHandler
	questionHandler *QuestionHandler
	attemptHandler  *AttemptHandler
	gradingHandler  *GradingHandler
	reportHandler   *ReportHandler
	userHandler     *UserHandler
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *appvalidator.BusinessValidator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:     NewExamHandler(serviceManager.Exam(), validator, logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), validator, logger),
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler:  NewGradingHandler(serviceManager.Grading(), validator, logger),
		reportHandler:   NewReportHandler(serviceManager.Report(), logger),
		userHandler:     NewUserHandler(userRepo, logger),
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())

	authoring := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)

	exams := v1.Group("/exams")
	{
		// Authoring - teachers and admins only
		exams.POST("", authoring, hm.examHandler.CreateExam)
		exams.PUT("/:id", authoring, hm.examHandler.UpdateExam)
		exams.DELETE("/:id", authoring, hm.examHandler.DeleteExam)
		exams.POST("/:id/activate", authoring, hm.examHandler.ActivateExam)
		exams.POST("/:id/deactivate", authoring, hm.examHandler.DeactivateExam)
		exams.POST("/:id/questions", authoring, hm.examHandler.AddQuestionToExam)
		exams.DELETE("/:id/questions/:question_id", authoring, hm.examHandler.RemoveQuestionFromExam)
		exams.GET("", authoring, hm.examHandler.ListMyExams)

		// Oversight - owner checks happen in the services
		exams.GET("/:id/attempts", authoring, hm.attemptHandler.ListExamAttempts)
		exams.GET("/:id/summary", authoring, hm.reportHandler.GetExamSummary)
		exams.GET("/:id/export", authoring, hm.reportHandler.ExportExamResults)
		exams.GET("/:id/grading/pending", authoring, hm.gradingHandler.GetPendingCount)

		// Taking - all authenticated users
		exams.GET("/active", hm.examHandler.ListActiveExams)
		exams.GET("/code/:code", hm.examHandler.ResolveExamByCode)
		exams.GET("/:id", hm.examHandler.GetExam)
		exams.GET("/:id/questions", hm.examHandler.GetExamQuestions)
		exams.POST("/:id/join", hm.attemptHandler.JoinExam)
	}

	questions := v1.Group("/questions")
	questions.Use(authoring)
	{
		questions.POST("", hm.questionHandler.CreateQuestion)
		questions.GET("", hm.questionHandler.ListQuestions)
		questions.GET("/:id", hm.questionHandler.GetQuestion)
		questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
		questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
	}

	attempts := v1.Group("/attempts")
	{
		attempts.POST("/join", hm.attemptHandler.JoinExamByCode)
		attempts.GET("", hm.attemptHandler.ListMyAttempts)
		attempts.GET("/:id", hm.attemptHandler.GetAttempt)
		attempts.POST("/:id/start", hm.attemptHandler.StartAttempt)
		attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswers)
		attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
		attempts.GET("/:id/result", hm.attemptHandler.GetAttemptResult)
	}

	answers := v1.Group("/answers")
	{
		answers.POST("/:id/grade", authoring, hm.gradingHandler.GradeAnswer)
	}

	users := v1.Group("/users")
	{
		users.GET("/me", hm.userHandler.GetMe)
		users.GET("", authoring, hm.userHandler.ListUsers)
	}
}

// HealthCheck endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "exam-central",
	})
}
