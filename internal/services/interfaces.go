package services

import (
	"context"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

// Request DTOs are defined next to their validation rules and aliased
// here so service callers only import this package.
type CreateExamRequest = appvalidator.ExamCreateRequest
type UpdateExamRequest = appvalidator.ExamUpdateRequest
type ExamSettingsRequest = appvalidator.ExamSettingsRequest
type ExamQuestionRequest = appvalidator.ExamQuestionRequest
type CreateQuestionRequest = appvalidator.QuestionCreateRequest
type UpdateQuestionRequest = appvalidator.QuestionUpdateRequest
type ChoiceRequest = appvalidator.ChoiceRequest
type SubmitAnswersRequest = appvalidator.SubmitAnswersRequest
type AnswerSubmission = appvalidator.AnswerSubmission
type GradeAnswerRequest = appvalidator.GradeAnswerRequest

// ===== RESPONSE TYPES =====

// ExamResponse decorates an exam with computed counters.
type ExamResponse struct {
	*models.Exam
	QuestionCount int64                   `json:"question_count"`
	Stats         *repositories.ExamStats `json:"stats,omitempty"`
}

// ChoiceView is a choice as shown through the API. IsCorrect is set
// only for the exam owner and admins, never for students.
type ChoiceView struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	Order     int    `json:"order"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

// QuestionView is a question as shown during an attempt.
type QuestionView struct {
	ID      uint                `json:"id"`
	Type    models.QuestionType `json:"type"`
	Text    string              `json:"text"`
	Points  int                 `json:"points"`
	Order   int                 `json:"order"`
	Choices []ChoiceView        `json:"choices,omitempty"`
}

// JoinExamResponse is returned by the join operation. Existing covers
// the idempotent case: the student already held this attempt.
type JoinExamResponse struct {
	Attempt  *models.ExamAttempt `json:"attempt"`
	Exam     *models.Exam        `json:"exam"`
	Existing bool                `json:"existing"`
}

// AttemptResponse is the in-flight view of an attempt.
type AttemptResponse struct {
	*models.ExamAttempt
	CanStart             bool            `json:"can_start"`
	CanSubmit            bool            `json:"can_submit"`
	TimeRemainingSeconds *int64          `json:"time_remaining_seconds,omitempty"`
	Questions            []*QuestionView `json:"questions,omitempty"`
}

// AnswerResult is one graded answer in a result view.
type AnswerResult struct {
	QuestionID       uint                `json:"question_id"`
	QuestionText     string              `json:"question_text"`
	Type             models.QuestionType `json:"type"`
	SelectedChoiceID *uint               `json:"selected_choice_id,omitempty"`
	AnswerText       *string             `json:"answer_text,omitempty"`
	IsCorrect        *bool               `json:"is_correct,omitempty"`
	CorrectChoiceID  *uint               `json:"correct_choice_id,omitempty"`
	AwardedPoints    float64             `json:"awarded_points"`
	Feedback         *string             `json:"feedback,omitempty"`
}

// AttemptResultResponse is the post-submission view of an attempt.
type AttemptResultResponse struct {
	*models.ExamAttempt
	Answers []*AnswerResult `json:"answers,omitempty"`
}

// GradingResult reports the outcome of one manual grade.
type GradingResult struct {
	AnswerID      uint     `json:"answer_id"`
	IsCorrect     bool     `json:"is_correct"`
	AwardedPoints float64  `json:"awarded_points"`
	AttemptScore  *float64 `json:"attempt_score,omitempty"`
}

// ExamSummaryResponse is the teacher's aggregate view of one exam.
type ExamSummaryResponse struct {
	Exam          *models.Exam                `json:"exam"`
	Stats         *repositories.ExamStats     `json:"stats"`
	QuestionStats []repositories.QuestionStat `json:"question_stats"`
	PendingManual int64                       `json:"pending_manual"`
}

// ===== SERVICE INTERFACES =====

// ExamService owns the exam lifecycle and join-code resolution.
type ExamService interface {
	Create(ctx context.Context, teacherID string, req *CreateExamRequest) (*models.Exam, error)
	Update(ctx context.Context, teacherID string, id uint, req *UpdateExamRequest) (*models.Exam, error)
	Delete(ctx context.Context, teacherID string, id uint) error
	Activate(ctx context.Context, teacherID string, id uint) error
	Deactivate(ctx context.Context, teacherID string, id uint) error

	GetByID(ctx context.Context, userID string, id uint) (*ExamResponse, error)
	ResolveByCode(ctx context.Context, code string) (*models.Exam, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.Exam, int64, error)
	ListByTeacher(ctx context.Context, teacherID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error)

	AddQuestion(ctx context.Context, teacherID string, examID uint, req *ExamQuestionRequest) error
	RemoveQuestion(ctx context.Context, teacherID string, examID, questionID uint) error
	GetQuestions(ctx context.Context, userID string, role models.UserRole, examID uint) ([]*QuestionView, error)
}

// QuestionService owns the reusable question pool.
type QuestionService interface {
	Create(ctx context.Context, teacherID string, req *CreateQuestionRequest) (*models.Question, error)
	GetByID(ctx context.Context, userID string, id uint) (*models.Question, error)
	Update(ctx context.Context, teacherID string, id uint, req *UpdateQuestionRequest) (*models.Question, error)
	Delete(ctx context.Context, teacherID string, id uint) error
	List(ctx context.Context, teacherID string, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
}

// AttemptService owns joining, taking, and submitting exams.
type AttemptService interface {
	Join(ctx context.Context, studentID string, examID uint) (*JoinExamResponse, error)
	JoinByCode(ctx context.Context, studentID, code string) (*JoinExamResponse, error)
	Start(ctx context.Context, studentID string, attemptID uint) (*AttemptResponse, error)
	Submit(ctx context.Context, studentID string, attemptID uint, req *SubmitAnswersRequest) (*AttemptResultResponse, error)

	Get(ctx context.Context, userID string, attemptID uint) (*AttemptResponse, error)
	GetResult(ctx context.Context, userID string, attemptID uint) (*AttemptResultResponse, error)
	TimeRemaining(ctx context.Context, studentID string, attemptID uint) (int64, error)

	// HandleTimeout force-submits an expired in_progress attempt with
	// whatever answers were stored, through the same grading path.
	HandleTimeout(ctx context.Context, attemptID uint) error
	SweepExpired(ctx context.Context, limit int) (int, error)

	ListByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	ListByExam(ctx context.Context, teacherID string, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
}

// GradingService owns manual grading of subjective answers.
type GradingService interface {
	GradeAnswer(ctx context.Context, teacherID string, answerID uint, req *GradeAnswerRequest) (*GradingResult, error)
	PendingManualCount(ctx context.Context, teacherID string, examID uint) (int64, error)
}

// ReportService owns teacher-facing aggregates and exports.
type ReportService interface {
	ExamSummary(ctx context.Context, teacherID string, examID uint) (*ExamSummaryResponse, error)

	// ExportResults renders an XLSX workbook and returns its bytes
	// together with a suggested filename.
	ExportResults(ctx context.Context, teacherID string, examID uint) ([]byte, string, error)
}

// NotificationEventService publishes domain events. Callers treat
// failures as log-only.
type NotificationEventService interface {
	PublishExamCreated(ctx context.Context, exam *models.Exam) error
	PublishExamDeactivated(ctx context.Context, exam *models.Exam) error
	PublishAttemptSubmitted(ctx context.Context, attempt *models.ExamAttempt) error
	PublishAttemptGraded(ctx context.Context, attempt *models.ExamAttempt) error
}

// ServiceManager wires and owns all services.
type ServiceManager interface {
	Exam() ExamService
	Question() QuestionService
	Attempt() AttemptService
	Grading() GradingService
	Report() ReportService
	NotificationEvents() NotificationEventService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
