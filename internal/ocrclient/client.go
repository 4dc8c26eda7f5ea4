package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/jus-team/legal-ocr-service/internal/config"
)

// Client talks to the remote OCR provider. The caller's API key is passed
// per operation, never stored: this service holds no provider credentials.
// Thread-safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryDelay overrides the base backoff delay (default 1s).
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.OCRConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured OCR model name.
func (c *Client) Model() string {
	return c.model
}

// UploadFile submits a document to the provider's file store and returns
// the opaque file reference id.
func (c *Client) UploadFile(ctx context.Context, file UploadedFile, apiKey string) (string, error) {
	if len(file.Bytes) == 0 {
		return "", newValidationError("file is empty")
	}
	if apiKey == "" {
		return "", &APIError{Kind: KindAuth, Message: "missing API key"}
	}

	body, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Bytes); err != nil {
			return nil, err
		}
		if err := writer.WriteField("purpose", "ocr"); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var parsed fileUploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &APIError{Kind: KindProvider, Message: "unexpected upload response", Cause: err}
	}
	if parsed.ID == "" {
		return "", &APIError{Kind: KindProvider, Message: "upload response carried no file id"}
	}
	return parsed.ID, nil
}

// GetSignedURL exchanges a file reference for a short-lived fetch URL.
func (c *Client) GetSignedURL(ctx context.Context, fileID, apiKey string) (string, error) {
	if fileID == "" {
		return "", newValidationError("file id is required")
	}

	body, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+fileID+"/url", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var parsed signedURLResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.URL == "" {
		return "", &APIError{Kind: KindProvider, Message: "unexpected signed URL response", Cause: err}
	}
	return parsed.URL, nil
}

// Process runs OCR on a document the provider can already fetch.
// Headers and footers are extracted separately so running page furniture
// stays out of the body text; image payloads are excluded to keep
// responses small.
func (c *Client) Process(ctx context.Context, signedURL, apiKey string) (*OCRResponse, error) {
	request := ocrRequest{
		Model: c.model,
		Document: documentRef{
			Type:        "document_url",
			DocumentURL: signedURL,
		},
		ExtractHeader:      true,
		ExtractFooter:      true,
		IncludeImageBase64: false,
	}
	return c.postOCR(ctx, request, apiKey)
}

func (c *Client) postOCR(ctx context.Context, request ocrRequest, apiKey string) (*OCRResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	body, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed OCRResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &APIError{Kind: KindProvider, Message: "unexpected OCR response", Cause: err}
	}
	return &parsed, nil
}

// ExtractMarkdown is the full synchronous pipeline: upload, signed URL,
// OCR, then page normalization. Returns KindNoContent when the document
// yields no text at all; that is a property of the document, not a
// provider failure, and callers surface it differently.
func (c *Client) ExtractMarkdown(ctx context.Context, file UploadedFile, apiKey string) (string, error) {
	fileID, err := c.UploadFile(ctx, file, apiKey)
	if err != nil {
		return "", err
	}
	return c.ExtractMarkdownByFileID(ctx, fileID, apiKey)
}

// ExtractMarkdownByFileID runs the pipeline for a document already
// uploaded to the provider (the direct-upload client path).
func (c *Client) ExtractMarkdownByFileID(ctx context.Context, fileID, apiKey string) (string, error) {
	signedURL, err := c.GetSignedURL(ctx, fileID, apiKey)
	if err != nil {
		return "", err
	}
	response, err := c.Process(ctx, signedURL, apiKey)
	if err != nil {
		return "", err
	}

	markdown := PagesToMarkdown(response.Pages)
	if markdown == "" {
		return "", &APIError{
			Kind:    KindNoContent,
			Message: "no text content could be extracted; the document may be empty or contain only images without text",
		}
	}
	return markdown, nil
}

// CreateBatch submits one batch job covering the given provider file ids.
// Sub-requests are tagged with their positional index as custom_id.
func (c *Client) CreateBatch(ctx context.Context, fileIDs []string, apiKey string) (*BatchJob, error) {
	if len(fileIDs) == 0 {
		return nil, newValidationError("at least one file id is required")
	}

	requests := make([]batchSubRequest, 0, len(fileIDs))
	for i, fileID := range fileIDs {
		requests = append(requests, batchSubRequest{
			CustomID: strconv.Itoa(i),
			Body: ocrRequest{
				Model: c.model,
				Document: documentRef{
					Type:   "file",
					FileID: fileID,
				},
				ExtractHeader:      true,
				ExtractFooter:      true,
				IncludeImageBase64: false,
			},
		})
	}

	payload, err := json.Marshal(batchCreateRequest{
		Model:    c.model,
		Endpoint: "/v1/ocr",
		Requests: requests,
	})
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	body, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batch/jobs", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed BatchJob
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
		return nil, &APIError{Kind: KindProvider, Message: "unexpected batch create response", Cause: err}
	}
	return &parsed, nil
}

// GetBatch fetches the current state of a provider batch job.
func (c *Client) GetBatch(ctx context.Context, batchID, apiKey string) (*BatchJob, error) {
	if batchID == "" {
		return nil, newValidationError("batch id is required")
	}

	body, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/batch/jobs/"+batchID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed BatchJob
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &APIError{Kind: KindProvider, Message: "unexpected batch status response", Cause: err}
	}
	return &parsed, nil
}

// DownloadFileContent fetches a provider file's raw content, used for the
// JSONL batch output file.
func (c *Client) DownloadFileContent(ctx context.Context, fileID, apiKey string) ([]byte, error) {
	if fileID == "" {
		return nil, newValidationError("file id is required")
	}

	return c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+fileID+"/content", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		return req, nil
	})
}
