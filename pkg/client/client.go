// Package client is a Go consumer of the legal OCR service API. It
// carries the polling discipline and the sequential sync-OCR queue so
// callers do not reinvent either, plus the merge of server job history
// with the locally cached one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/internal/history"
	"github.com/jus-team/legal-ocr-service/pkg/log"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 120
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	accessCode string

	history         *history.Cache
	pollInterval    time.Duration
	maxPollAttempts int
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHistoryCache enables the local job history used by ListJobsMerged.
func WithHistoryCache(cache *history.Cache) Option {
	return func(c *Client) {
		c.history = cache
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

func WithMaxPollAttempts(attempts int) Option {
	return func(c *Client) {
		c.maxPollAttempts = attempts
	}
}

func New(baseURL, accessCode, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	c := &Client{
		httpClient:      &http.Client{Timeout: 150 * time.Second},
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		accessCode:      accessCode,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.accessCode != "" {
		req.Header.Set("X-Access-Code", c.accessCode)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("service returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

type BatchFileRef struct {
	Name         string `json:"name"`
	RemoteFileID string `json:"remote_file_id"`
}

type CreateBatchResponse struct {
	JobID     string          `json:"job_id"`
	Status    batch.JobStatus `json:"status"`
	FileCount int             `json:"file_count"`
	CreatedAt string          `json:"created_at"`
}

// CreateBatch submits pre-uploaded provider file references as one
// batch job and mirrors the new job into the local history cache.
func (c *Client) CreateBatch(ctx context.Context, files []BatchFileRef) (*CreateBatchResponse, error) {
	payload, err := json.Marshal(map[string]any{"files": files})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/batch/create", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp CreateBatchResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	if c.history != nil {
		batchFiles := make([]batch.BatchFile, 0, len(files))
		for _, f := range files {
			batchFiles = append(batchFiles, batch.BatchFile{DisplayName: f.Name, RemoteFileID: f.RemoteFileID})
		}
		if err := c.history.Save(c.accessCode, &batch.BatchJobRecord{
			ID:        resp.JobID,
			OwnerKey:  c.accessCode,
			Status:    resp.Status,
			Files:     batchFiles,
			CreatedAt: resp.CreatedAt,
		}); err != nil {
			log.Warn("Failed to cache job %s locally: %v", resp.JobID, err)
		}
	}
	return &resp, nil
}

type StatusResponse struct {
	JobID     string            `json:"job_id"`
	Status    batch.JobStatus   `json:"status"`
	Files     []batch.BatchFile `json:"files"`
	Progress  *batch.Progress   `json:"progress,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Error     string            `json:"error,omitempty"`
}

func (c *Client) GetStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/batch/status?id="+jobID, nil)
	if err != nil {
		return nil, err
	}
	var resp StatusResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type ResultsResponse struct {
	JobID   string             `json:"job_id"`
	Status  batch.JobStatus    `json:"status"`
	Results []batch.FileResult `json:"results"`
}

func (c *Client) GetResults(ctx context.Context, jobID string) (*ResultsResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/batch/results?id="+jobID, nil)
	if err != nil {
		return nil, err
	}
	var resp ResultsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PollStatus polls the job until it reaches a terminal state, invoking
// onUpdate after every successful poll. It gives up after the attempt
// cap; a batch stuck in the provider's queue for longer is surfaced as
// a timeout, not an error status on the job itself.
func (c *Client) PollStatus(ctx context.Context, jobID string, onUpdate func(*StatusResponse)) (*StatusResponse, error) {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		status, err := c.GetStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(status)
		}
		if status.Status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("job %s still not finished after %d polls", jobID, c.maxPollAttempts)
}

type File struct {
	Name    string
	Content []byte
}

type FileOutcome struct {
	Name     string
	Markdown string
	Err      error
}

// ProcessSequentially runs each file through the synchronous OCR
// endpoint one at a time; the provider rate-limits aggressively, so
// this path never fans out. The stop flag is checked between items
// only; an in-flight call is allowed to finish.
func (c *Client) ProcessSequentially(ctx context.Context, files []File, stop *atomic.Bool) []FileOutcome {
	outcomes := make([]FileOutcome, 0, len(files))
	for _, file := range files {
		if stop != nil && stop.Load() {
			log.Info("Sequential processing stopped before %s", file.Name)
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		markdown, err := c.processOne(ctx, file)
		outcomes = append(outcomes, FileOutcome{Name: file.Name, Markdown: markdown, Err: err})
	}
	return outcomes
}

func (c *Client) processOne(ctx context.Context, file File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ocr", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("ocr failed with status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("ocr failed with status %d", resp.StatusCode)
	}
	return string(data), nil
}

// ListJobsMerged returns the server's job list merged with the local
// history cache. When the server is unreachable (or the records have
// hit their TTL server-side) the cached summaries still come back, so
// history survives the store's 7-day window.
func (c *Client) ListJobsMerged(ctx context.Context) ([]*batch.BatchJobRecord, error) {
	var cached []*batch.BatchJobRecord
	if c.history != nil {
		var err error
		cached, err = c.history.List(c.accessCode)
		if err != nil {
			log.Warn("Failed to read local job history: %v", err)
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/batch/list", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Jobs []*batch.BatchJobRecord `json:"jobs"`
	}
	if err := c.do(req, &resp); err != nil {
		if c.history == nil {
			return nil, err
		}
		log.Warn("Job list request failed, serving local history only: %v", err)
		return cached, nil
	}

	if c.history == nil {
		return resp.Jobs, nil
	}
	return history.Merge(resp.Jobs, cached), nil
}
