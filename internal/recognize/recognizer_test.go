package recognize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/notedrop/seiri/internal/config"
)

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.jpg")
	if err := os.WriteFile(path, []byte("fake image bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
		}
		if r.FormValue("language") != "eng" {
			t.Errorf("language = %q", r.FormValue("language"))
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("image part missing: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "extracted text"}`))
	}))
	defer srv.Close()

	r, err := NewHTTPRecognizer(config.RecognizerConfig{Endpoint: srv.URL, Language: "eng", TimeoutSec: 5})
	if err != nil {
		t.Fatal(err)
	}
	text, err := r.Recognize(context.Background(), writeTempImage(t))
	if err != nil {
		t.Fatal(err)
	}
	if text != "extracted text" {
		t.Errorf("text = %q", text)
	}
}

func TestRecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "ocr engine crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewHTTPRecognizer(config.RecognizerConfig{Endpoint: srv.URL, TimeoutSec: 5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Recognize(context.Background(), writeTempImage(t)); err == nil {
		t.Error("expected error on non-200 reply")
	}
}

func TestRecognizeMissingImage(t *testing.T) {
	r, err := NewHTTPRecognizer(config.RecognizerConfig{Endpoint: "http://localhost:1", TimeoutSec: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Recognize(context.Background(), filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for unreadable image")
	}
}

func TestNewHTTPRecognizerRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPRecognizer(config.RecognizerConfig{}); err == nil {
		t.Error("empty endpoint should fail construction")
	}
}
