package services

import (
	"log/slog"

	"github.com/coursekit/quiz-engine/internal/cache"
	"github.com/coursekit/quiz-engine/internal/events"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/validator"
)

type serviceManager struct {
	quiz    QuizService
	attempt AttemptService
	grading GradingService
	export  ExportService
}

// NewServiceManager wires all domain services around shared
// infrastructure.
func NewServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
) ServiceManager {
	attempt := NewAttemptService(repo, logger.With("component", "attempt_service"), v, publisher, cacheService)

	return &serviceManager{
		quiz:    NewQuizService(repo, logger.With("component", "quiz_service"), v),
		attempt: attempt,
		grading: NewGradingService(repo, logger.With("component", "grading_service"), v, publisher, cacheService, attempt),
		export:  NewExportService(repo, logger.With("component", "export_service")),
	}
}

func (m *serviceManager) Quiz() QuizService       { return m.quiz }
func (m *serviceManager) Attempt() AttemptService { return m.attempt }
func (m *serviceManager) Grading() GradingService { return m.grading }
func (m *serviceManager) Export() ExportService   { return m.export }
