// Package finetune submits packaged training data to a Together-compatible
// fine-tuning API: upload the JSONL file, create a job, poll until it
// resolves.
package finetune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/normanking/revoice/internal/config"
	"github.com/normanking/revoice/internal/logging"
)

const (
	defaultPollInterval = 30 * time.Second
	maxErrorBodySize    = 4096
)

// Client talks to one fine-tuning endpoint.
type Client struct {
	endpoint     string
	apiKey       string
	suffix       string
	epochs       int
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *logging.Logger
}

// NewClient builds a client from the finetune config section.
func NewClient(cfg config.FinetuneConfig) *Client {
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 3
	}
	return &Client{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		suffix:       cfg.Suffix,
		epochs:       epochs,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		logger:       logging.Global().WithComponent("finetune"),
	}
}

// Available reports whether the client is configured enough to submit jobs.
func (c *Client) Available() bool {
	return c.endpoint != "" && c.apiKey != ""
}

type fileUploadResponse struct {
	ID string `json:"id"`
}

type jobResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	OutputName     string `json:"output_name"`
	FineTunedModel string `json:"fine_tuned_model"`
	TrainingFile   string `json:"training_file"`
	Error          string `json:"error,omitempty"`
}

// Train uploads the SFT file, creates a fine-tuning job, and polls until
// it completes. Returns the resulting model identifier.
func (c *Client) Train(ctx context.Context, sftPath, baseModel string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("fine-tuning endpoint not configured")
	}

	fileID, err := c.uploadFile(ctx, sftPath)
	if err != nil {
		return "", fmt.Errorf("upload training file: %w", err)
	}
	c.logger.Info("Uploaded %s as file %s", filepath.Base(sftPath), fileID)

	job, err := c.createJob(ctx, fileID, baseModel)
	if err != nil {
		return "", fmt.Errorf("create fine-tuning job: %w", err)
	}
	c.logger.Info("Created fine-tuning job %s on %s", job.ID, baseModel)

	return c.waitForJob(ctx, job.ID)
}

// uploadFile sends the JSONL file as multipart form data.
func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("purpose", "fine-tune"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy file contents: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/files/upload", &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out fileUploadResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload response missing file id")
	}
	return out.ID, nil
}

// createJob starts a fine-tuning run over an uploaded file.
func (c *Client) createJob(ctx context.Context, fileID, baseModel string) (*jobResponse, error) {
	payload := map[string]interface{}{
		"training_file": fileID,
		"model":         baseModel,
		"n_epochs":      c.epochs,
	}
	if c.suffix != "" {
		payload["suffix"] = c.suffix
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/fine-tunes", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create job request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("job response missing id")
	}
	return &out, nil
}

// GetJob fetches the current state of a fine-tuning job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/fine-tunes/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// waitForJob polls until the job reaches a terminal status.
func (c *Client) waitForJob(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("poll job %s: %w", jobID, err)
		}

		switch job.Status {
		case "completed":
			model := job.FineTunedModel
			if model == "" {
				model = job.OutputName
			}
			if model == "" {
				return "", fmt.Errorf("job %s completed without a model name", jobID)
			}
			return model, nil
		case "failed", "cancelled", "error":
			if job.Error != "" {
				return "", fmt.Errorf("job %s %s: %s", jobID, job.Status, job.Error)
			}
			return "", fmt.Errorf("job %s %s", jobID, job.Status)
		}

		c.logger.Debug("Job %s status %s, waiting", jobID, job.Status)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// do executes a request and decodes a JSON response, surfacing API error
// bodies in a bounded form.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
