package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/complaint-classifier/internal/artifacts"
	"github.com/aigoflow/complaint-classifier/internal/classifier"
	"github.com/aigoflow/complaint-classifier/internal/models"
	"github.com/aigoflow/complaint-classifier/internal/repository"
)

var (
	// ErrNotConfigured means the classifier was never initialized.
	ErrNotConfigured = errors.New("classification service not configured")
	// ErrClassification wraps any failure of the remote classification call.
	ErrClassification = errors.New("classification failed")
	// ErrEmptyComplaint is returned when no complaint text was supplied.
	ErrEmptyComplaint = errors.New("empty complaint")
)

// Dependencies is the set of collaborators built once at startup. Classifier
// is nil when it could not be configured; Artifacts and Repo are optional.
type Dependencies struct {
	Classifier     classifier.Classifier
	Artifacts      artifacts.Store
	Repo           repository.Repository
	ArtifactPrefix string
	Now            func() time.Time
}

// Ready reports whether classification requests can be served.
func (d Dependencies) Ready() bool {
	return d.Classifier != nil
}

// Outcome is a successful classification together with its serialized form.
type Outcome struct {
	ReqID       string
	Result      models.ClassificationResult
	Body        []byte
	ArtifactKey string // empty when the artifact was not stored
}

type ComplaintService struct {
	deps Dependencies
}

func NewComplaintService(deps Dependencies) *ComplaintService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ComplaintService{deps: deps}
}

func (s *ComplaintService) Ready() bool {
	return s.deps.Ready()
}

// ModelName returns the classifier's model, or "" when not configured.
func (s *ComplaintService) ModelName() string {
	if !s.Ready() {
		return ""
	}
	return s.deps.Classifier.Model()
}

// Classify runs one complaint through the classifier and stores the result.
// Artifact and ledger writes are best-effort: their failures are logged and
// never turn a successful classification into an error.
func (s *ComplaintService) Classify(ctx context.Context, req models.ComplaintRequest, source string) (*Outcome, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	if req.Text == "" {
		return nil, ErrEmptyComplaint
	}

	start := s.deps.Now()
	reqID := ulid.Make().String()

	classification, err := s.deps.Classifier.Classify(ctx, req.Text)
	if err != nil {
		slog.Error("Classification call failed",
			"req_id", reqID,
			"source", source,
			"model", s.deps.Classifier.Model(),
			"error", err)
		s.record(ctx, &models.ClassificationLog{
			Timestamp:  start,
			ReqID:      reqID,
			Source:     source,
			Complaint:  req.Text,
			Model:      s.deps.Classifier.Model(),
			DurationMs: float64(s.deps.Now().Sub(start).Milliseconds()),
			Status:     "error",
			Error:      err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	result := models.ClassificationResult{
		Category:         classification.Category,
		PromptTokens:     classification.PromptTokens,
		CompletionTokens: classification.CompletionTokens,
		TotalTokens:      classification.TotalTokens,
	}
	body, err := models.EncodeResult(result)
	if err != nil {
		return nil, fmt.Errorf("%w: encode result: %w", ErrClassification, err)
	}

	// The body is final from here on; nothing below may change it.
	outcome := &Outcome{ReqID: reqID, Result: result, Body: body}
	outcome.ArtifactKey = s.persist(context.WithoutCancel(ctx), reqID, body)

	duration := s.deps.Now().Sub(start)
	s.record(ctx, &models.ClassificationLog{
		Timestamp:        start,
		ReqID:            reqID,
		Source:           source,
		Complaint:        req.Text,
		Category:         result.Category,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		ArtifactKey:      outcome.ArtifactKey,
		Model:            s.deps.Classifier.Model(),
		DurationMs:       float64(duration.Milliseconds()),
		Status:           "ok",
	})

	slog.Info("Complaint classified",
		"req_id", reqID,
		"source", source,
		"category", result.Category,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"total_tokens", result.TotalTokens,
		"artifact_key", outcome.ArtifactKey,
		"duration_ms", duration.Milliseconds())

	return outcome, nil
}

// persist uploads the artifact and returns its key, or "" when nothing was stored.
func (s *ComplaintService) persist(ctx context.Context, reqID string, body []byte) string {
	if s.deps.Artifacts == nil {
		slog.Warn("Artifact not stored, storage not configured", "req_id", reqID)
		return ""
	}

	key := artifacts.Key(s.deps.ArtifactPrefix, s.deps.Now())
	if err := s.deps.Artifacts.Put(ctx, key, body); err != nil {
		slog.Error("Failed to store artifact", "req_id", reqID, "artifact_key", key, "error", err)
		return ""
	}

	slog.Info("Artifact stored", "req_id", reqID, "artifact_key", key)
	return key
}

func (s *ComplaintService) record(ctx context.Context, entry *models.ClassificationLog) {
	if s.deps.Repo == nil {
		return
	}
	if err := s.deps.Repo.Classification().LogClassification(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("Failed to record classification", "req_id", entry.ReqID, "error", err)
	}
}

// GetClassificationLogs returns the most recent ledger rows, newest first.
func (s *ComplaintService) GetClassificationLogs(ctx context.Context, limit int) ([]*models.ClassificationLog, error) {
	if s.deps.Repo == nil {
		return []*models.ClassificationLog{}, nil
	}
	return s.deps.Repo.Classification().GetClassificationLogs(ctx, limit)
}
