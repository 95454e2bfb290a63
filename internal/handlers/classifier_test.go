package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/complaint-classifier/internal/classifier"
	"github.com/aigoflow/complaint-classifier/internal/models"
	"github.com/aigoflow/complaint-classifier/internal/services"
)

type fakeClassifier struct {
	mu     sync.Mutex
	inputs []string
	result classifier.Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, complaint string) (classifier.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, complaint)
	return f.result, f.err
}

func (f *fakeClassifier) Model() string { return "fake" }

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func scenarioClassifier() *fakeClassifier {
	return &fakeClassifier{result: classifier.Classification{
		Category:         "Plataformas Digitales",
		PromptTokens:     12,
		CompletionTokens: 3,
		TotalTokens:      15,
	}}
}

func newTestRouter(c classifier.Classifier, store *fakeStore) *http.ServeMux {
	deps := services.Dependencies{
		Classifier:     c,
		ArtifactPrefix: "LogsAzFnOpenAI",
		Now:            func() time.Time { return time.Date(2026, 10, 18, 10, 0, 0, 0, time.Local) },
	}
	if store != nil {
		deps.Artifacts = store
	}
	mux := http.NewServeMux()
	NewClassifierHandler(services.NewComplaintService(deps)).RegisterRoutes(mux)
	return mux
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func queryRequest(method, complaint string) *http.Request {
	return httptest.NewRequest(method, "/api/Clasificador?Queja="+url.QueryEscape(complaint), nil)
}

const scenarioABody = `{"categoria":"Plataformas Digitales","prompt_tokens":12,"completion_tokens":3,"total_tokens":15}`

func TestClassify_QueryParameter(t *testing.T) {
	stub := scenarioClassifier()
	store := &fakeStore{}
	r := newTestRouter(stub, store)

	w := serve(r, queryRequest(http.MethodGet, "No puedo ingresar a la app"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, scenarioABody, w.Body.String())
	assert.Equal(t, []string{"No puedo ingresar a la app"}, stub.inputs)
	assert.Equal(t, []string{"LogsAzFnOpenAI/20261018_100000.json"}, store.keys)
}

func TestClassify_ResponseHasExactlyFourFields(t *testing.T) {
	r := newTestRouter(scenarioClassifier(), nil)

	w := serve(r, queryRequest(http.MethodPost, "No puedo ingresar a la app"))
	require.Equal(t, http.StatusOK, w.Code)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	assert.Len(t, fields, 4)
	for _, key := range []string{"prompt_tokens", "completion_tokens", "total_tokens"} {
		n, ok := fields[key].(float64)
		require.True(t, ok, key)
		assert.GreaterOrEqual(t, n, float64(0))
		assert.Equal(t, float64(int64(n)), n)
	}
	assert.IsType(t, "", fields["categoria"])
}

func TestClassify_JSONBody(t *testing.T) {
	stub := scenarioClassifier()
	r := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`{"Queja":"Me cobraron dos veces el retiro"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Me cobraron dos veces el retiro"}, stub.inputs)
}

func TestClassify_QueryTakesPrecedence(t *testing.T) {
	stub := scenarioClassifier()
	r := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/Clasificador?Queja=desde+la+url", strings.NewReader(`{"Queja":"desde el cuerpo"}`))
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"desde la url"}, stub.inputs)
}

func TestClassify_MissingComplaint(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "no query no body", req: httptest.NewRequest(http.MethodGet, "/api/Clasificador", nil)},
		{name: "empty query", req: httptest.NewRequest(http.MethodGet, "/api/Clasificador?Queja=", nil)},
		{name: "malformed json", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`{"Queja": `))},
		{name: "form body", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`Queja=hola`))},
		{name: "json array", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`["Queja"]`))},
		{name: "other field", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`{"queja":"minúsculas"}`))},
		{name: "empty field", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`{"Queja":""}`))},
		{name: "non-string field", req: httptest.NewRequest(http.MethodPost, "/api/Clasificador", strings.NewReader(`{"Queja":42}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := scenarioClassifier()
			store := &fakeStore{}
			r := newTestRouter(stub, store)

			w := serve(r, tt.req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, services.UsageHint, w.Body.String())
			assert.Zero(t, stub.calls())
			assert.Zero(t, store.calls())
		})
	}
}

func TestClassify_NotConfigured(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(nil, store)

	w := serve(r, queryRequest(http.MethodGet, "No puedo ingresar a la app"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, services.NotConfiguredMessage, w.Body.String())
	assert.Zero(t, store.calls())

	// the readiness check runs before input extraction
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/Clasificador", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClassify_ClassifierFailure(t *testing.T) {
	stub := &fakeClassifier{err: errors.New("401 Unauthorized: key sk-live-123")}
	store := &fakeStore{}
	r := newTestRouter(stub, store)

	w := serve(r, queryRequest(http.MethodGet, "No puedo ingresar a la app"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, services.ClassificationFailedMessage, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sk-live-123")
	assert.Equal(t, 1, stub.calls())
	assert.Zero(t, store.calls())
}

func TestClassify_StorageFailureDoesNotChangeResponse(t *testing.T) {
	healthy := serve(newTestRouter(scenarioClassifier(), &fakeStore{}), queryRequest(http.MethodGet, "No puedo ingresar a la app"))

	failing := &fakeStore{err: errors.New("upload failed")}
	w := serve(newTestRouter(scenarioClassifier(), failing), queryRequest(http.MethodGet, "No puedo ingresar a la app"))

	assert.Equal(t, 1, failing.calls())
	assert.Equal(t, healthy.Code, w.Code)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, healthy.Body.String(), w.Body.String())
	assert.Equal(t, healthy.Header().Get("Content-Type"), w.Header().Get("Content-Type"))
}

func TestClassify_PreservesAccents(t *testing.T) {
	stub := &fakeClassifier{result: classifier.Classification{Category: "Atención Presencial en Oficinas", PromptTokens: 90, CompletionTokens: 5, TotalTokens: 95}}
	r := newTestRouter(stub, nil)

	w := serve(r, queryRequest(http.MethodGet, "La atención en la oficina fue pésima"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Atención Presencial en Oficinas")
	assert.Equal(t, []string{"La atención en la oficina fue pésima"}, stub.inputs)
}

func TestClassify_MethodNotAllowed(t *testing.T) {
	stub := scenarioClassifier()
	r := newTestRouter(stub, nil)

	w := serve(r, httptest.NewRequest(http.MethodDelete, "/api/Clasificador?Queja=hola", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Zero(t, stub.calls())
}

func TestHealthAndReady(t *testing.T) {
	ready := newTestRouter(scenarioClassifier(), nil)
	notReady := newTestRouter(nil, nil)

	assert.Equal(t, http.StatusOK, serve(ready, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(notReady, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(notReady, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

type fakeLogSource struct {
	ComplaintClassifier
	limit int
	logs  []*models.ClassificationLog
	err   error
}

func (f *fakeLogSource) GetClassificationLogs(ctx context.Context, limit int) ([]*models.ClassificationLog, error) {
	f.limit = limit
	return f.logs, f.err
}

func TestLogs(t *testing.T) {
	source := &fakeLogSource{logs: []*models.ClassificationLog{{ReqID: "r1", Category: "Plataformas Digitales", Status: "ok"}}}
	mux := http.NewServeMux()
	NewClassifierHandler(source).RegisterRoutes(mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/logs?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, source.limit)

	var logs []models.ClassificationLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "r1", logs[0].ReqID)

	serve(mux, httptest.NewRequest(http.MethodGet, "/logs?limit=abc", nil))
	assert.Equal(t, defaultLogsLimit, source.limit)

	source.err = errors.New("db locked")
	w = serve(mux, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestComplaintFromJSON(t *testing.T) {
	complaint, ok := complaintFromJSON([]byte(`{"Queja":"Depósito no acreditado","otro":1}`))
	assert.True(t, ok)
	assert.Equal(t, "Depósito no acreditado", complaint)

	_, ok = complaintFromJSON([]byte(`null`))
	assert.False(t, ok)
	_, ok = complaintFromJSON(nil)
	assert.False(t, ok)
}

func TestServesWithoutLedger(t *testing.T) {
	stub := scenarioClassifier()
	r := newTestRouter(stub, nil)

	w := serve(r, queryRequest(http.MethodGet, "No puedo ingresar a la app"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, scenarioABody, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
