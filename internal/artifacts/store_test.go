package artifacts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known Azurite development account key.
const devAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

func devConnectionString(endpoint string) string {
	return "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=" + devAccountKey +
		";BlobEndpoint=" + endpoint + "/devstoreaccount1;"
}

type recordedUpload struct {
	method      string
	path        string
	blobType    string
	contentType string
	body        string
}

type fakeBlobServer struct {
	mu      sync.Mutex
	uploads []recordedUpload
	status  int
}

func (f *fakeBlobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.uploads = append(f.uploads, recordedUpload{
		method:      r.Method,
		path:        r.URL.Path,
		blobType:    r.Header.Get("x-ms-blob-type"),
		contentType: r.Header.Get("x-ms-blob-content-type"),
		body:        string(body),
	})
	status := f.status
	f.mu.Unlock()

	w.Header().Set("x-ms-request-id", "test-request")
	w.Header().Set("x-ms-version", "2025-01-05")
	if status != http.StatusCreated {
		w.Header().Set("x-ms-error-code", "InternalError")
	}
	w.WriteHeader(status)
}

func (f *fakeBlobServer) recorded() []recordedUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpload(nil), f.uploads...)
}

func TestKey(t *testing.T) {
	now := time.Date(2026, 10, 18, 7, 5, 9, 0, time.UTC)
	assert.Equal(t, "LogsAzFnOpenAI/20261018_070509.json", Key("LogsAzFnOpenAI", now))
	assert.Equal(t, "20261018_070509.json", Key("", now))
	assert.Equal(t, "logs/nested/20261018_070509.json", Key("logs/nested/", now))
}

func TestNewBlobStoreRequiresConnectionString(t *testing.T) {
	_, err := NewBlobStore("  ", "cr001")
	assert.True(t, errors.Is(err, ErrNoConnectionString))

	_, err = NewBlobStore("not a connection string", "cr001")
	assert.Error(t, err)
}

func TestBlobStorePut(t *testing.T) {
	fake := &fakeBlobServer{status: http.StatusCreated}
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := NewBlobStore(devConnectionString(server.URL), "cr001")
	require.NoError(t, err)
	assert.Equal(t, "cr001", store.Container())

	body := []byte("{\n  \"categoria\": \"Atención Presencial en Oficinas\"\n}")
	require.NoError(t, store.Put(context.Background(), "LogsAzFnOpenAI/20261018_070509.json", body))

	uploads := fake.recorded()
	require.Len(t, uploads, 1)
	assert.Equal(t, http.MethodPut, uploads[0].method)
	assert.Equal(t, "/devstoreaccount1/cr001/LogsAzFnOpenAI/20261018_070509.json", uploads[0].path)
	assert.Equal(t, "BlockBlob", uploads[0].blobType)
	assert.Equal(t, "application/json", uploads[0].contentType)
	assert.Equal(t, string(body), uploads[0].body)
}

func TestBlobStorePutFailureIsNotRetried(t *testing.T) {
	fake := &fakeBlobServer{status: http.StatusInternalServerError}
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := NewBlobStore(devConnectionString(server.URL), "cr001")
	require.NoError(t, err)

	err = store.Put(context.Background(), "LogsAzFnOpenAI/20261018_070509.json", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cr001/LogsAzFnOpenAI/20261018_070509.json")
	assert.Len(t, fake.recorded(), 1)
}
