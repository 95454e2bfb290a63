package repository

import (
	"context"

	"github.com/aigoflow/complaint-classifier/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Classification() ClassificationRepositoryInterface
	Event() EventRepositoryInterface
}

// ClassificationRepositoryInterface defines classification logging operations
type ClassificationRepositoryInterface interface {
	LogClassification(ctx context.Context, entry *models.ClassificationLog) error
	GetClassificationLogs(ctx context.Context, limit int) ([]*models.ClassificationLog, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}
