package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"dlerbot/internal/task"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Client talks to the job service. It keeps no state between calls and
// never retries.
type Client struct {
	baseURL string
	http    *http.Client
}

type createRequest struct {
	URL       string `json:"url"`
	AudioOnly bool   `json:"audio_only,omitempty"`
}

type createResponse struct {
	TaskID json.RawMessage `json:"task_id"`
}

type statusResponse struct {
	Status      string          `json:"status"`
	DownloadURL string          `json:"download_url"`
	Details     json.RawMessage `json:"details"`
}

type successDetails struct {
	OriginalFilename string `json:"original_filename"`
}

// New returns a client for the service at baseURL. A non-positive timeout
// falls back to the default; every request is bounded.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateJob submits a download and returns the id assigned by the service.
func (c *Client) CreateJob(ctx context.Context, sourceURL string, audioOnly bool) (string, error) {
	const op = "create job"

	body, err := json.Marshal(createRequest{URL: sourceURL, AudioOnly: audioOnly})
	if err != nil {
		return "", &ProtocolError{Op: op, Reason: "encode request", Err: err}
	}
	raw, err := c.do(ctx, op, http.MethodPost, "/tasks", body)
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ProtocolError{Op: op, Reason: "decode response", Err: err}
	}
	id, err := decodeID(resp.TaskID)
	if err != nil {
		return "", &ProtocolError{Op: op, Reason: "decode task_id", Err: err}
	}
	if id == "" {
		return "", &ProtocolError{Op: op, Reason: "response has no task_id"}
	}
	log.Debug().Str("task_id", id).Bool("audio_only", audioOnly).Msg("job created")
	return id, nil
}

// GetStatus fetches the current state of a job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*task.Job, error) {
	const op = "get job status"

	raw, err := c.do(ctx, op, http.MethodGet, "/tasks/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Op: op, Reason: "decode response", Err: err}
	}
	if resp.Status == "" {
		return nil, &ProtocolError{Op: op, Reason: "response has no status"}
	}

	job := &task.Job{
		ID:        jobID,
		Status:    task.Status(resp.Status),
		CheckedAt: time.Now(),
	}
	switch job.Status {
	case task.StatusSuccess:
		if resp.DownloadURL == "" {
			return nil, &ProtocolError{Op: op, Reason: "SUCCESS without download_url"}
		}
		job.ResultPath = resp.DownloadURL
		job.ResultName = successName(resp.Details)
	case task.StatusFailure:
		job.FailureReason = failureReason(resp.Details)
	}
	return job, nil
}

// DeleteJob removes the job and its artifact. Any 2xx counts as success,
// whether or not the artifact still existed.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, "delete job", http.MethodDelete, "/tasks/"+url.PathEscape(jobID), nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ConnectionError{Op: op, StatusCode: resp.StatusCode}
	}
	return raw, nil
}

// decodeID accepts both string and numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func successName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var d successDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return ""
	}
	return d.OriginalFilename
}

// failureReason renders details of any JSON shape as display text.
func failureReason(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
