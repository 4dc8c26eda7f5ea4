package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/internal/identity"
	"github.com/jus-team/legal-ocr-service/internal/ocrclient"
	"github.com/jus-team/legal-ocr-service/internal/redact"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// bearerKey extracts the caller-supplied provider key. The service
// stores no provider credentials of its own; every OCR call runs on the
// key the client sends.
func bearerKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

type ocrRequest struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	apiKey := bearerKey(r)
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing Authorization header, expected: Bearer <api key>")
		return
	}

	var markdown string
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var file ocrclient.UploadedFile
		file, err = s.readUploadedFile(w, r, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		markdown, err = s.client.ExtractMarkdown(r.Context(), file, apiKey)
	} else {
		var req ocrRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.FileID == "" {
			writeError(w, http.StatusBadRequest, "file_id is required")
			return
		}
		markdown, err = s.client.ExtractMarkdownByFileID(r.Context(), req.FileID, apiKey)
	}
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, markdown)
}

func (s *Server) readUploadedFile(w http.ResponseWriter, r *http.Request, field string) (ocrclient.UploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return ocrclient.UploadedFile{}, fmt.Errorf("parse upload: %w", err)
	}
	part, header, err := r.FormFile(field)
	if err != nil {
		return ocrclient.UploadedFile{}, fmt.Errorf("missing %q form field", field)
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		return ocrclient.UploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	return ocrclient.UploadedFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Bytes:    content,
	}, nil
}

type batchCreateRequest struct {
	Files []struct {
		Name         string `json:"name"`
		RemoteFileID string `json:"remote_file_id"`
	} `json:"files"`
}

func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	apiKey := bearerKey(r)
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing Authorization header, expected: Bearer <api key>")
		return
	}
	owner := identity.FromRequest(w, r)

	var inputs []batch.InputFile
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		files, err := s.readUploadedFiles(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, f := range files {
			inputs = append(inputs, batch.InputFile{Name: f.Name, Content: f.Bytes})
		}
	} else {
		var req batchCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		for _, f := range req.Files {
			if f.RemoteFileID == "" {
				writeError(w, http.StatusBadRequest, "every file needs a remote_file_id")
				return
			}
			inputs = append(inputs, batch.InputFile{Name: f.Name, RemoteFileID: f.RemoteFileID})
		}
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	record, err := s.orch.CreateJob(r.Context(), inputs, apiKey, owner.Key)
	if err != nil {
		if record != nil {
			// Submission failed after uploads: the failed record is
			// durable and the reason travels with the error response.
			writeJSON(w, statusForError(err), map[string]any{
				"error":  err.Error(),
				"job_id": record.ID,
				"status": record.Status,
			})
			return
		}
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id":     record.ID,
		"status":     record.Status,
		"file_count": len(record.Files),
		"created_at": record.CreatedAt,
	})
}

// readUploadedFiles handles the legacy multipart path where raw PDFs
// arrive with the create call instead of provider file references.
func (s *Server) readUploadedFiles(w http.ResponseWriter, r *http.Request) ([]ocrclient.UploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		return nil, fmt.Errorf("missing \"files\" form field")
	}

	ret := make([]ocrclient.UploadedFile, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		file, err := readFormFile(header)
		if err != nil {
			return nil, err
		}
		ret = append(ret, file)
	}
	return ret, nil
}

func readFormFile(header *multipart.FileHeader) (ocrclient.UploadedFile, error) {
	part, err := header.Open()
	if err != nil {
		return ocrclient.UploadedFile{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		return ocrclient.UploadedFile{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return ocrclient.UploadedFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Bytes:    content,
	}, nil
}

type batchStatusResponse struct {
	JobID     string            `json:"job_id"`
	Status    batch.JobStatus   `json:"status"`
	Files     []batch.BatchFile `json:"files"`
	Progress  *batch.Progress   `json:"progress,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	apiKey := bearerKey(r)
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing Authorization header, expected: Bearer <api key>")
		return
	}
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}
	owner := identity.FromRequest(w, r)

	record, ok, err := s.orch.GetJob(r.Context(), owner.Key, jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	record, progress := s.orch.Reconcile(r.Context(), record, apiKey)
	writeJSON(w, http.StatusOK, batchStatusResponse{
		JobID:     record.ID,
		Status:    record.Status,
		Files:     record.Files,
		Progress:  progress,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		Error:     record.Error,
	})
}

func (s *Server) handleBatchResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}
	owner := identity.FromRequest(w, r)

	results, err := s.orch.GetResults(r.Context(), owner.Key, jobID)
	if err != nil {
		var notCompleted *batch.NotCompletedError
		switch {
		case errors.As(err, &notCompleted):
			writeError(w, http.StatusBadRequest, err.Error())
		case err.Error() == "job not found":
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  jobID,
		"status":  batch.StatusCompleted,
		"results": results,
	})
}

func (s *Server) handleBatchList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	owner := identity.FromRequest(w, r)

	jobs, err := s.orch.ListJobs(r.Context(), owner.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type redactIdentifyRequest struct {
	Text  string          `json:"text"`
	Rules json.RawMessage `json:"rules,omitempty"`
}

func (s *Server) handleRedactIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req redactIdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	rules := s.redactRules
	if len(req.Rules) > 0 {
		custom, err := redact.LoadRuleset(req.Rules)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rules = custom
	}

	matches, err := redact.Identify(req.Text, rules)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches":  matches,
		"language": redact.DetectLanguage(req.Text),
	})
}

type redactApplyRequest struct {
	Text    string         `json:"text"`
	Matches []redact.Match `json:"matches"`
}

func (s *Server) handleRedactApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req redactApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redacted_text": redact.Apply(req.Text, req.Matches),
	})
}

type redactReportRequest struct {
	Matches []redact.Match `json:"matches"`
}

func (s *Server) handleRedactReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req redactReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, redact.ReportMarkdown(req.Matches))
	case "xlsx":
		data, err := redact.ReportXLSX(req.Matches)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="redaction-report.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unsupported format, expected markdown or xlsx")
	}
}

// statusForError maps the provider error taxonomy onto HTTP statuses at
// the service boundary.
func statusForError(err error) int {
	var apiErr *ocrclient.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case ocrclient.KindAuth:
		return http.StatusUnauthorized
	case ocrclient.KindValidation:
		return http.StatusBadRequest
	case ocrclient.KindNoContent:
		return http.StatusUnprocessableEntity
	case ocrclient.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
