package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportQuizResults renders every attempt of a quiz as an xlsx sheet,
// one row per attempt. Returns the file bytes and a suggested filename.
func (s *exportService) ExportQuizResults(ctx context.Context, quizID uint, userID string) ([]byte, string, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrQuizNotFound
		}
		return nil, "", fmt.Errorf("failed to get quiz: %w", err)
	}

	if quiz.CreatedBy != userID {
		return nil, "", NewPermissionError(userID, quizID, "quiz", "export_results", "not the quiz owner")
	}

	attempts, _, err := s.repo.Attempt().GetByQuiz(ctx, quizID, repositories.AttemptFilters{
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get quiz attempts: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Learner ID", "Attempt", "Status", "Started At", "Completed At",
		"Score", "Passed", "Fully Graded", "Time Spent (minutes)",
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		row := []interface{}{
			attempt.LearnerID,
			attempt.AttemptNumber,
			string(attempt.Status),
			attempt.StartedAt.Format(time.RFC3339),
			formatTimePtr(attempt.CompletedAt),
			formatIntPtr(attempt.Score),
			formatBoolPtr(attempt.Passed),
			attempt.FullyGraded,
			formatMinutes(attempt.TimeSpentSeconds),
		}

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write Excel file: %w", err)
	}

	filename := fmt.Sprintf("quiz_%d_results_%s.xlsx", quizID, time.Now().UTC().Format("20060102"))

	s.logger.Info("Quiz results exported",
		"quiz_id", quizID,
		"attempts", len(attempts),
		"user_id", userID)

	return buf.Bytes(), filename, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatIntPtr(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatBoolPtr(v *bool) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatMinutes(seconds *int) interface{} {
	if seconds == nil {
		return ""
	}
	return *seconds / 60
}
