package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/events"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	appvalidator "github.com/moheebaljmaly/tafawuq-exam-central/internal/validator"
)

// ServiceManagerConfig tunes manager-wide behavior.
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// How long an expired in-progress attempt may linger before the
	// background sweep closes it.
	SweepInterval  time.Duration
	DefaultTimeout time.Duration
}

// serviceManager wires the services to their shared dependencies and
// gates access until Initialize has run.
type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *appvalidator.BusinessValidator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	examService        ExamService
	questionService    QuestionService
	attemptService     AttemptService
	gradingService     GradingService
	reportService      ReportService
	notificationEvents NotificationEventService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *appvalidator.BusinessValidator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		config:    config,
	}
}

// NewDefaultServiceManager applies the production defaults.
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *appvalidator.BusinessValidator, publisher events.EventPublisher) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,
		SweepInterval:      time.Minute,
		DefaultTimeout:     30 * time.Second,
	}
	return NewServiceManager(db, repo, logger, validator, publisher, config)
}

// Initialize constructs the services and verifies the repository is
// reachable. It is idempotent.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.notificationEvents = NewNotificationEventService(sm.repo, sm.publisher, sm.logger)
	sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationEvents)
	sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationEvents)
	sm.gradingService = NewGradingService(sm.repo, sm.db, sm.logger, sm.validator, sm.notificationEvents)
	sm.reportService = NewReportService(sm.repo, sm.db, sm.logger)

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository ping failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// require guards every getter. Accessing a service before Initialize
// is a wiring bug, so it panics rather than limping along.
func (sm *serviceManager) require(name string, ready bool) {
	if !sm.initialized || !ready {
		panic(name + " service not initialized")
	}
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("exam", sm.examService != nil)
	return sm.examService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("question", sm.questionService != nil)
	return sm.questionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("attempt", sm.attemptService != nil)
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("grading", sm.gradingService != nil)
	return sm.gradingService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("report", sm.reportService != nil)
	return sm.reportService
}

func (sm *serviceManager) NotificationEvents() NotificationEventService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("notification event", sm.notificationEvents != nil)
	return sm.notificationEvents
}

// Health and lifecycle

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Warn("failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.initialized = false
	sm.logger.Info("Service manager shut down")

	return nil
}
