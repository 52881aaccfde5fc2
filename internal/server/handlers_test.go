package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/history"
	"github.com/notedrop/seiri/internal/models"
)

type mockProcessor struct {
	processed []string
	flushed   bool
	pending   int
}

func (m *mockProcessor) ProcessImage(_ context.Context, imagePath string) models.ProcessingResult {
	m.processed = append(m.processed, imagePath)
	return models.ProcessingResult{ImagePath: imagePath, ImageName: filepath.Base(imagePath)}
}

func (m *mockProcessor) ProcessBatch(ctx context.Context, imagePaths []string) []models.ProcessingResult {
	results := make([]models.ProcessingResult, 0, len(imagePaths))
	for _, p := range imagePaths {
		results = append(results, m.ProcessImage(ctx, p))
	}
	return results
}

func (m *mockProcessor) Flush(context.Context) ([]string, error) {
	m.flushed = true
	return []string{"/notes/doc.md"}, nil
}

func (m *mockProcessor) Pending() int { return m.pending }

type mockHistory struct {
	results []models.ProcessingResult
	err     error
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]models.ProcessingResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.results) {
		limit = len(m.results)
	}
	return m.results[:limit], nil
}

func (m *mockHistory) Summary(context.Context) (history.Stats, error) {
	if m.err != nil {
		return history.Stats{}, m.err
	}
	return history.Stats{Total: len(m.results)}, nil
}

type mockProber struct{ err error }

func (m *mockProber) Probe(context.Context) error { return m.err }

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestServer(opts ...Option) (*Server, *mockProcessor) {
	proc := &mockProcessor{pending: 2}
	cfg := &config.Config{}
	cfg.Provider.Model = "test-model"
	srv := NewServer(proc, &mockHistory{results: []models.ProcessingResult{{ImageName: "a.jpg"}}}, cfg, zap.NewNop(), opts...)
	return srv, proc
}

func TestHandleProcess(t *testing.T) {
	srv, proc := newTestServer()
	imagePath := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(imagePath, []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"path": imagePath})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleProcess(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(proc.processed) != 1 || proc.processed[0] != imagePath {
		t.Errorf("processed = %v", proc.processed)
	}
}

func TestHandleProcessMissingImage(t *testing.T) {
	srv, _ := newTestServer()
	body, _ := json.Marshal(map[string]string{"path": "/nope/missing.jpg"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleProcess(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleProcessBadBody(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	srv.handleProcess(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleBatch(t *testing.T) {
	srv, proc := newTestServer()
	body, _ := json.Marshal(map[string][]string{"paths": {"/a.jpg", "/b.jpg"}})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleBatch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(proc.processed) != 2 {
		t.Errorf("processed = %v", proc.processed)
	}
	var out struct {
		Results []models.ProcessingResult `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Errorf("results = %d", len(out.Results))
	}
}

func TestHandleBatchEmptyPaths(t *testing.T) {
	srv, _ := newTestServer()
	body, _ := json.Marshal(map[string][]string{"paths": {}})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleBatch(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleFlush(t *testing.T) {
	srv, proc := newTestServer()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/flush", nil)
	w := httptest.NewRecorder()
	srv.handleFlush(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !proc.flushed {
		t.Error("flush not invoked")
	}
}

func TestHandleResults(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/results?limit=1", nil)
	w := httptest.NewRecorder()
	srv.handleResults(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Results []models.ProcessingResult `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].ImageName != "a.jpg" {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestHandleResultsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/results?limit=zero", nil)
	w := httptest.NewRecorder()
	srv.handleResults(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(WithProber(&mockProber{}))
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	provider, ok := out["provider"].(map[string]any)
	if !ok || provider["status"] != "ok" {
		t.Errorf("provider = %v", out["provider"])
	}
	if out["pending"].(float64) != 2 {
		t.Errorf("pending = %v", out["pending"])
	}
}

func TestHandleStatusProviderDown(t *testing.T) {
	srv, _ := newTestServer(WithProber(&mockProber{err: errors.New("connection refused")}))
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	provider := out["provider"].(map[string]any)
	if provider["status"] != "unreachable" {
		t.Errorf("provider = %v", provider)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/inbox"}}
	srv, _ := newTestServer(WithWatcher(mock))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/inbox" {
		t.Errorf("directories = %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesListDisabled(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w, r)

	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	mock := &mockWatchService{}
	srv, _ := newTestServer(WithWatcher(mock))
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesAdd(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 1 {
		t.Errorf("dirs = %v", mock.dirs)
	}
}

func TestHandleWatchDirectoriesAddMissing(t *testing.T) {
	srv, _ := newTestServer(WithWatcher(&mockWatchService{}))
	body, _ := json.Marshal(map[string]string{"path": "/does/not/exist"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesAdd(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	srv, _ := newTestServer(WithWatcher(mock))

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesRemove(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(mock.dirs) != 0 {
		t.Errorf("dirs = %v", mock.dirs)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
