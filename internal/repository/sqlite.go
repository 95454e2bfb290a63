package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aigoflow/complaint-classifier/internal/models"
	"github.com/aigoflow/complaint-classifier/internal/store"
)

const maxLogLimit = 1000

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db                 *store.DB
	classificationRepo ClassificationRepositoryInterface
	eventRepo          EventRepositoryInterface
}

func NewSQLiteRepository(db *store.DB) Repository {
	return &SQLiteRepository{
		db:                 db,
		classificationRepo: &SQLiteClassificationRepository{db: db},
		eventRepo:          &SQLiteEventRepository{db: db},
	}
}

func (r *SQLiteRepository) Classification() ClassificationRepositoryInterface {
	return r.classificationRepo
}

func (r *SQLiteRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

// SQLiteClassificationRepository handles classification logging
type SQLiteClassificationRepository struct {
	db *store.DB
}

func (r *SQLiteClassificationRepository) LogClassification(ctx context.Context, entry *models.ClassificationLog) error {
	err := r.db.Classification(
		entry.Timestamp,
		entry.ReqID,
		entry.Source,
		entry.Complaint,
		entry.Category,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.TotalTokens,
		entry.ArtifactKey,
		entry.Model,
		time.Duration(entry.DurationMs)*time.Millisecond,
		entry.Status,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("insert classification log: %w", err)
	}
	return nil
}

func (r *SQLiteClassificationRepository) GetClassificationLogs(ctx context.Context, limit int) ([]*models.ClassificationLog, error) {
	if limit <= 0 || limit > maxLogLimit {
		limit = maxLogLimit
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ts,req_id,source,complaint,category,prompt_tokens,completion_tokens,total_tokens,artifact_key,model,dur_ms,status,error FROM classifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query classification logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.ClassificationLog{}
	for rows.Next() {
		var entry models.ClassificationLog
		var tsFloat float64

		if err := rows.Scan(
			&tsFloat, &entry.ReqID, &entry.Source, &entry.Complaint, &entry.Category,
			&entry.PromptTokens, &entry.CompletionTokens, &entry.TotalTokens,
			&entry.ArtifactKey, &entry.Model, &entry.DurationMs, &entry.Status, &entry.Error,
		); err != nil {
			return nil, fmt.Errorf("scan classification log: %w", err)
		}
		entry.Timestamp = time.Unix(0, int64(tsFloat*1e9))
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return r.db.Event(level, code, msg, meta)
}
