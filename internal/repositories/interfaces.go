package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
)

// All repository methods accept an optional transaction handle. A nil
// tx means the repository's own connection is used.

// ===== FILTERS =====

// ExamFilters narrows exam list queries.
type ExamFilters struct {
	CreatedBy *string
	IsActive  *bool
	OpenAt    *time.Time // only exams whose window contains this instant
	Search    string     // matches title
	Limit     int
	Offset    int
	SortBy    string // created_at | start_time | title
	SortOrder string // asc | desc
}

// QuestionFilters narrows question list queries.
type QuestionFilters struct {
	CreatedBy *string
	Type      *models.QuestionType
	Search    string
	Limit     int
	Offset    int
}

// AttemptFilters narrows attempt list queries.
type AttemptFilters struct {
	ExamID    *uint
	StudentID *string
	Status    *models.AttemptStatus
	Limit     int
	Offset    int
}

// ===== STATS =====

// ExamStats aggregates attempt outcomes for one exam.
type ExamStats struct {
	TotalAttempts int64   `json:"total_attempts"`
	Registered    int64   `json:"registered"`
	InProgress    int64   `json:"in_progress"`
	Completed     int64   `json:"completed"`
	AverageScore  float64 `json:"average_score"`
}

// QuestionStat is the per-question breakdown used by exam summaries.
type QuestionStat struct {
	QuestionID uint                `json:"question_id"`
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	Answered   int64               `json:"answered"`
	Correct    int64               `json:"correct"`
}

// ===== REPOSITORIES =====

// ExamRepository persists exams and resolves join codes.
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	SetActive(ctx context.Context, tx *gorm.DB, id uint, active bool) error

	// GetByJoinCode matches case-insensitively against active,
	// non-deleted exams only.
	GetByJoinCode(ctx context.Context, tx *gorm.DB, code string) (*models.Exam, error)
	// JoinCodeExists checks every exam regardless of state, mirroring
	// the unique index on the column.
	JoinCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)

	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*ExamStats, error)
}

// QuestionRepository persists reusable questions and their choices.
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)

	ReplaceChoices(ctx context.Context, tx *gorm.DB, questionID uint, choices []models.Choice) error

	IsLinkedToExam(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error)
	HasSubmittedAnswers(ctx context.Context, tx *gorm.DB, questionID uint) (bool, error)
}

// ExamQuestionRepository manages the exam <-> question links.
type ExamQuestionRepository interface {
	Add(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error
	Remove(ctx context.Context, tx *gorm.DB, examID, questionID uint) error
	Exists(ctx context.Context, tx *gorm.DB, examID, questionID uint) (bool, error)

	// ListByExam returns links ordered by position with questions and
	// choices preloaded.
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	NextOrder(ctx context.Context, tx *gorm.DB, examID uint) (int, error)
}

// AttemptRepository persists exam attempts.
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error

	// UpdateStatus flips the status only when the row still holds the
	// expected current status, enforcing forward-only transitions at
	// the database. Returns gorm.ErrRecordNotFound when no row matched.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus) error

	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)

	// ListExpired returns in_progress attempts whose deadline passed
	// before the given instant.
	ListExpired(ctx context.Context, tx *gorm.DB, before time.Time, limit int) ([]*models.ExamAttempt, error)
}

// AnswerRepository persists per-question responses.
type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error

	CountPendingManual(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	QuestionStats(ctx context.Context, tx *gorm.DB, examID uint) ([]QuestionStat, error)
}
