package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/internal/config"
	"github.com/jus-team/legal-ocr-service/internal/ocrclient"
	"github.com/jus-team/legal-ocr-service/internal/persistence"
)

// fakeProvider scripts the remote OCR API for end-to-end handler tests.
type fakeProvider struct {
	batchStatus string
	resultBody  string
	failBatch   bool
}

func (f *fakeProvider) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files" && r.Method == http.MethodPost:
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "file-up-1"})

		case strings.HasSuffix(r.URL.Path, "/url") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://signed.example/doc"})

		case r.URL.Path == "/ocr" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"pages": []map[string]any{
					{"index": 0, "markdown": "# 合同\n\n正文"},
				},
			})

		case r.URL.Path == "/batch/jobs" && r.Method == http.MethodPost:
			if f.failBatch {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"message":"too many requests in batch"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "remote-batch-1", "status": "QUEUED"})

		case strings.HasPrefix(r.URL.Path, "/batch/jobs/") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                 "remote-batch-1",
				"status":             f.batchStatus,
				"output_file":        "out-1",
				"total_requests":     2,
				"succeeded_requests": 1,
			})

		case strings.HasSuffix(r.URL.Path, "/content") && r.Method == http.MethodGet:
			fmt.Fprint(w, f.resultBody)

		default:
			t.Fatalf("unexpected provider call: %s %s", r.Method, r.URL.Path)
		}
	})
}

func newTestServer(t *testing.T, provider *fakeProvider) *Server {
	t.Helper()
	remote := httptest.NewServer(provider.handler(t))
	t.Cleanup(remote.Close)

	client, err := ocrclient.NewClient(config.OCRConfig{
		BaseURL:    remote.URL,
		Model:      "mistral-ocr-latest",
		Timeout:    5,
		MaxRetries: 1,
	})
	require.NoError(t, err)

	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "legalocr.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	orch := batch.NewOrchestrator(client, store, 2)
	return NewServer(client, orch, []string{"https://ocr.jus.team"})
}

func doJSON(t *testing.T, srv *Server, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	r := httptest.NewRequest(method, target, reader)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func authed(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer test-key",
		"X-Access-Code": "TEAM42",
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	w := doJSON(t, srv, http.MethodGet, "/health", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestOCR_RequiresAuthorization(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	w := doJSON(t, srv, http.MethodPost, "/ocr", map[string]any{"file_id": "file-1"}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOCR_ByFileID(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	w := doJSON(t, srv, http.MethodPost, "/ocr", map[string]any{"file_id": "file-1"}, authed(nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, "# 合同\n\n正文", w.Body.String())
}

func TestOCR_MultipartUpload(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "contract.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/ocr", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# 合同\n\n正文", w.Body.String())
}

func createBatchJob(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/batch/create", map[string]any{
		"files": []map[string]any{
			{"name": "a.pdf", "remote_file_id": "file-a"},
			{"name": "b.pdf", "remote_file_id": "file-b"},
		},
	}, authed(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		JobID     string `json:"job_id"`
		Status    string `json:"status"`
		FileCount int    `json:"file_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 2, resp.FileCount)
	return resp.JobID
}

func TestBatchCreate_RejectsEmptyFileList(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	w := doJSON(t, srv, http.MethodPost, "/batch/create", map[string]any{"files": []any{}}, authed(nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchCreate_SubmissionFailureReportsReason(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{failBatch: true})

	w := doJSON(t, srv, http.MethodPost, "/batch/create", map[string]any{
		"files": []map[string]any{{"name": "a.pdf", "remote_file_id": "file-a"}},
	}, authed(nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp struct {
		Error  string `json:"error"`
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "too many requests in batch")
	assert.Equal(t, "failed", resp.Status)

	// The failed record is durable and stays visible to its owner.
	list := doJSON(t, srv, http.MethodGet, "/batch/list", nil, authed(nil))
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), resp.JobID)
}

func TestBatchStatus_RequiresAuthorization(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{batchStatus: "RUNNING"})
	jobID := createBatchJob(t, srv)

	// Without a provider key the poll cannot reconcile; rejecting up
	// front beats reporting stale state as if it were fresh.
	w := doJSON(t, srv, http.MethodGet, "/batch/status?id="+jobID, nil, map[string]string{
		"X-Access-Code": "TEAM42",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing Authorization header")
}

func TestBatchStatus_RunningJobCarriesProgress(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{batchStatus: "RUNNING"})
	jobID := createBatchJob(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/batch/status?id="+jobID, nil, authed(nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp batchStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, batch.StatusProcessing, resp.Status)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, batch.Progress{Total: 2, Succeeded: 1}, *resp.Progress)
	assert.Empty(t, resp.Error)
}

func TestBatchStatus_OtherOwnerCannotSeeJob(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{batchStatus: "RUNNING"})
	jobID := createBatchJob(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/batch/status?id="+jobID, nil, authed(map[string]string{
		"X-Access-Code": "OTHERTEAM",
	}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchResults_BeforeCompletionRejected(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{batchStatus: "RUNNING"})
	jobID := createBatchJob(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/batch/results?id="+jobID, nil, authed(nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not completed, current status: processing")
}

func TestBatchResults_AfterSuccess(t *testing.T) {
	line := func(markdown string) string {
		encoded, _ := json.Marshal(map[string]any{
			"response": map[string]any{
				"body": map[string]any{
					"pages": []map[string]any{{"index": 0, "markdown": markdown}},
				},
			},
		})
		return string(encoded)
	}
	srv := newTestServer(t, &fakeProvider{
		batchStatus: "SUCCESS",
		resultBody:  line("first") + "\n" + line("second"),
	})
	jobID := createBatchJob(t, srv)

	// Status call reconciles the job to completed.
	status := doJSON(t, srv, http.MethodGet, "/batch/status?id="+jobID, nil, authed(nil))
	require.Equal(t, http.StatusOK, status.Code)

	w := doJSON(t, srv, http.MethodGet, "/batch/results?id="+jobID, nil, authed(nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		JobID   string             `json:"job_id"`
		Status  string             `json:"status"`
		Results []batch.FileResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a.pdf", resp.Results[0].FileName)
	assert.Equal(t, "first", resp.Results[0].Markdown)
	assert.Equal(t, "second", resp.Results[1].Markdown)
}

func TestRedactIdentifyAndApply(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})
	text := "联系人：张三丰，联系电话：13812345678"

	w := doJSON(t, srv, http.MethodPost, "/redact/identify", map[string]any{"text": text}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var identifyResp struct {
		Matches  []map[string]any `json:"matches"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identifyResp))
	require.Len(t, identifyResp.Matches, 2)
	assert.Equal(t, "zh", identifyResp.Language.Code)

	apply := doJSON(t, srv, http.MethodPost, "/redact/apply", map[string]any{
		"text":    text,
		"matches": identifyResp.Matches,
	}, nil)
	require.Equal(t, http.StatusOK, apply.Code)
	assert.Contains(t, apply.Body.String(), "【人员1】")
	assert.Contains(t, apply.Body.String(), "【电话1】")
	assert.NotContains(t, apply.Body.String(), "13812345678")
}

func TestRedactReport_Formats(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})
	matches := []map[string]any{
		{"category": "person_name", "original": "张三丰", "replacement": "【人员1】", "is_selected": true},
	}

	md := doJSON(t, srv, http.MethodPost, "/redact/report", map[string]any{"matches": matches}, nil)
	require.Equal(t, http.StatusOK, md.Code)
	assert.Contains(t, md.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, md.Body.String(), "脱敏替换比对表")

	xlsx := doJSON(t, srv, http.MethodPost, "/redact/report?format=xlsx", map[string]any{"matches": matches}, nil)
	require.Equal(t, http.StatusOK, xlsx.Code)
	assert.Contains(t, xlsx.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, xlsx.Body.Bytes())

	bad := doJSON(t, srv, http.MethodPost, "/redact/report?format=pdf", map[string]any{"matches": matches}, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCORS_PreflightForAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	r := httptest.NewRequest(http.MethodOptions, "/batch/create", nil)
	r.Header.Set("Origin", "https://ocr.jus.team")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ocr.jus.team", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
