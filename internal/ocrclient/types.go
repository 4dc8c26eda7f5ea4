package ocrclient

// UploadedFile is the boundary representation of a client upload.
// The HTTP layer extracts bytes from whatever transport shape it received;
// nothing below it inspects request formats.
type UploadedFile struct {
	Name     string
	MimeType string
	Bytes    []byte
}

// Page is one page of an OCR response.
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
	Header   string `json:"header,omitempty"`
	Footer   string `json:"footer,omitempty"`
}

// OCRResponse is the provider's OCR result for one document.
type OCRResponse struct {
	Pages     []Page `json:"pages"`
	Model     string `json:"model,omitempty"`
	UsageInfo struct {
		PagesProcessed int   `json:"pages_processed"`
		DocSizeBytes   int64 `json:"doc_size_bytes"`
	} `json:"usage_info"`
}

type fileUploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
	Bytes    int64  `json:"bytes"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

// BatchStatus is the provider-side batch job state.
type BatchStatus string

const (
	BatchQueued                BatchStatus = "QUEUED"
	BatchRunning               BatchStatus = "RUNNING"
	BatchSuccess               BatchStatus = "SUCCESS"
	BatchFailed                BatchStatus = "FAILED"
	BatchTimeoutExceeded       BatchStatus = "TIMEOUT_EXCEEDED"
	BatchCancellationRequested BatchStatus = "CANCELLATION_REQUESTED"
	BatchCancelled             BatchStatus = "CANCELLED"
)

// BatchJob mirrors the provider's batch job resource.
type BatchJob struct {
	ID                string      `json:"id"`
	Status            BatchStatus `json:"status"`
	OutputFile        string      `json:"output_file,omitempty"`
	ErrorFile         string      `json:"error_file,omitempty"`
	TotalRequests     int         `json:"total_requests,omitempty"`
	CompletedRequests int         `json:"completed_requests,omitempty"`
	SucceededRequests int         `json:"succeeded_requests,omitempty"`
	FailedRequests    int         `json:"failed_requests,omitempty"`
}

type documentRef struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	FileID      string `json:"file_id,omitempty"`
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           documentRef `json:"document"`
	ExtractHeader      bool        `json:"extract_header"`
	ExtractFooter      bool        `json:"extract_footer"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type batchSubRequest struct {
	CustomID string     `json:"custom_id"`
	Body     ocrRequest `json:"body"`
}

type batchCreateRequest struct {
	Model    string            `json:"model"`
	Endpoint string            `json:"endpoint"`
	Requests []batchSubRequest `json:"requests"`
}

// BatchResultLine is one line of the provider's JSONL batch output file.
type BatchResultLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Body OCRResponse `json:"body"`
	} `json:"response"`
}
