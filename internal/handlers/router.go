package handlers

import (
	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	quizHandler    *QuizHandler
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	exportHandler  *ExportHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		quizHandler:    NewQuizHandler(serviceManager.Quiz(), logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), logger),
		exportHandler:  NewExportHandler(serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-engine",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Quiz routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("", hm.quizHandler.CreateQuiz)
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/mine", hm.quizHandler.ListMyQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/details", hm.quizHandler.GetQuizWithQuestions)
			quizzes.PUT("/:id", hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.quizHandler.DeleteQuiz)
			quizzes.GET("/lesson/:lesson_id", hm.quizHandler.GetQuizByLesson)

			// Question management
			quizzes.POST("/:id/questions", hm.quizHandler.AddQuestion)
			quizzes.PUT("/:id/questions/:question_id", hm.quizHandler.UpdateQuestion)
			quizzes.DELETE("/:id/questions/:question_id", hm.quizHandler.RemoveQuestion)
			quizzes.PUT("/:id/questions/reorder", hm.quizHandler.ReorderQuestions)

			// Attempt entry points scoped to a quiz
			quizzes.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
			quizzes.GET("/:id/attempts", hm.attemptHandler.ListQuizAttempts)
			quizzes.GET("/:id/attempts/active", hm.attemptHandler.GetActiveAttempt)

			// Results export for the quiz creator
			quizzes.GET("/:id/export", hm.exportHandler.ExportQuizResults)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListMyAttempts)
			attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/abandon", hm.attemptHandler.AbandonAttempt)
			attempts.GET("/:id/results", hm.attemptHandler.GetResults)
			attempts.POST("/:id/grades", hm.gradingHandler.RecordManualGrade)
			attempts.POST("/sweep", hm.attemptHandler.SweepExpiredAttempts)
		}
	}
}
