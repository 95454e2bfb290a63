package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aigoflow/complaint-classifier/internal/models"
	"github.com/aigoflow/complaint-classifier/internal/services"
)

const (
	complaintField   = "Queja"
	maxBodyBytes     = 1 << 20
	defaultLogsLimit = 50
)

// ComplaintClassifier is the part of the complaint service the handler needs.
type ComplaintClassifier interface {
	Ready() bool
	Classify(ctx context.Context, req models.ComplaintRequest, source string) (*services.Outcome, error)
	GetClassificationLogs(ctx context.Context, limit int) ([]*models.ClassificationLog, error)
}

type ClassifierHandler struct {
	complaints ComplaintClassifier
}

func NewClassifierHandler(complaints ComplaintClassifier) *ClassifierHandler {
	return &ClassifierHandler{
		complaints: complaints,
	}
}

func (h *ClassifierHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/Clasificador", h.handleClassify)
	mux.HandleFunc("/Clasificador", h.handleClassify)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	mux.HandleFunc("/logs", h.handleLogs)
}

func (h *ClassifierHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *ClassifierHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.complaints.Ready() {
		http.Error(w, "classifier not configured", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *ClassifierHandler) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
		return
	}

	slog.Debug("Classifier triggered", "method", r.Method, "path", r.URL.Path)

	if !h.complaints.Ready() {
		slog.Error("Classifier not initialized, check configuration")
		writeText(w, http.StatusInternalServerError, services.NotConfiguredMessage)
		return
	}

	complaint, ok := extractComplaint(w, r)
	if !ok {
		writeText(w, http.StatusOK, services.UsageHint)
		return
	}

	outcome, err := h.complaints.Classify(r.Context(), models.ComplaintRequest{Text: complaint}, "http")
	if err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			writeText(w, http.StatusInternalServerError, services.NotConfiguredMessage)
			return
		}
		writeText(w, http.StatusInternalServerError, services.ClassificationFailedMessage)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(outcome.Body)
}

func (h *ClassifierHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.complaints.GetClassificationLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get logs: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(logs)
}

// extractComplaint reads the complaint from the query string, falling back
// to the "Queja" field of a JSON object body.
func extractComplaint(w http.ResponseWriter, r *http.Request) (string, bool) {
	if complaint := r.URL.Query().Get(complaintField); complaint != "" {
		return complaint, true
	}
	if r.Body == nil {
		return "", false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		slog.Debug("Could not read request body", "error", err)
		return "", false
	}
	return complaintFromJSON(body)
}

// complaintFromJSON returns the "Queja" string of a JSON object. Any other
// shape of body, including non-JSON, yields false.
func complaintFromJSON(body []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	raw, ok := fields[complaintField]
	if !ok {
		return "", false
	}
	var complaint string
	if err := json.Unmarshal(raw, &complaint); err != nil || complaint == "" {
		return "", false
	}
	return complaint, true
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
