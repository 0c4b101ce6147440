package finetune

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/normanking/revoice/internal/config"
)

func writeTestJSONL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.jsonl")
	line := `{"messages":[{"role":"system","content":"s"},{"role":"user","content":"u"},{"role":"assistant","content":"a"}]}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestTrainHappyPath(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/upload":
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("missing auth header, got %q", got)
			}
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("expected multipart upload, got %s", r.Header.Get("Content-Type"))
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})

		case r.URL.Path == "/fine-tunes" && r.Method == http.MethodPost:
			var payload map[string]interface{}
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["training_file"] != "file-123" {
				t.Errorf("job not bound to uploaded file: %v", payload["training_file"])
			}
			if payload["model"] != "llama-3.1-8b" {
				t.Errorf("unexpected base model %v", payload["model"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "queued"})

		case r.URL.Path == "/fine-tunes/job-1":
			polls++
			status := "running"
			model := ""
			if polls >= 2 {
				status = "completed"
				model = "ft-voice-1"
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id": "job-1", "status": status, "fine_tuned_model": model,
			})

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(config.FinetuneConfig{Endpoint: srv.URL, APIKey: "test-key", Epochs: 2})
	c.pollInterval = 5 * time.Millisecond

	modelID, err := c.Train(context.Background(), writeTestJSONL(t), "llama-3.1-8b")
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if modelID != "ft-voice-1" {
		t.Errorf("expected ft-voice-1, got %q", modelID)
	}
	if polls < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls)
	}
}

func TestTrainJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/upload":
			json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})
		case r.URL.Path == "/fine-tunes":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "status": "queued"})
		case r.URL.Path == "/fine-tunes/job-2":
			json.NewEncoder(w).Encode(map[string]string{
				"id": "job-2", "status": "failed", "error": "data format rejected",
			})
		}
	}))
	defer srv.Close()

	c := NewClient(config.FinetuneConfig{Endpoint: srv.URL, APIKey: "test-key"})
	c.pollInterval = 5 * time.Millisecond

	_, err := c.Train(context.Background(), writeTestJSONL(t), "llama-3.1-8b")
	if err == nil {
		t.Fatal("expected error for failed job")
	}
	if !strings.Contains(err.Error(), "data format rejected") {
		t.Errorf("error should carry the provider reason: %v", err)
	}
}

func TestTrainUnconfigured(t *testing.T) {
	c := NewClient(config.FinetuneConfig{})
	if c.Available() {
		t.Error("unconfigured client must not report available")
	}
	if _, err := c.Train(context.Background(), "x.jsonl", "base"); err == nil {
		t.Error("expected error from unconfigured client")
	}
}

func TestTrainHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.FinetuneConfig{Endpoint: srv.URL, APIKey: "bad-key"})
	_, err := c.Train(context.Background(), writeTestJSONL(t), "base")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry the status code: %v", err)
	}
}
