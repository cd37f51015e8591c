package pkg

import (
	"fmt"

	"github.com/coursekit/quiz-engine/internal/config"
	"github.com/coursekit/quiz-engine/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema. The attempt uniqueness
// rules live in the model index tags, including the partial index that
// allows only one in_progress attempt per (quiz, learner).
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Quiz{},
		&models.Question{},
		&models.QuestionOption{},
		&models.Attempt{},
		&models.AnswerRecord{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}
