package batch

import "time"

// JobStatus is the local lifecycle state of a batch job. It is more
// granular than the provider's model; only processing, completed and
// failed are ever stored, the rest exist for client-side display.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusUploading  JobStatus = "uploading"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// BatchFile records one submitted file. Position in the slice is
// significant: the provider's bulk result file is correlated back to
// display names by line order.
type BatchFile struct {
	DisplayName  string `json:"name"`
	RemoteFileID string `json:"remote_file_id"`
}

// FileResult is the outcome for one file of a completed batch.
type FileResult struct {
	FileName string `json:"file_name"`
	Markdown string `json:"markdown"`
	Error    string `json:"error,omitempty"`
}

// BatchJobRecord is the stored state of one batch job.
// Results is non-nil exactly when Status is completed; RemoteJobID is
// non-empty once provider submission has succeeded at least once.
type BatchJobRecord struct {
	ID          string       `json:"id"`
	OwnerKey    string       `json:"owner_key"`
	RemoteJobID string       `json:"remote_job_id"`
	Status      JobStatus    `json:"status"`
	Files       []BatchFile  `json:"files"`
	Results     []FileResult `json:"results,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	Error       string       `json:"error,omitempty"`
}

// CreatedTime parses CreatedAt, returning the zero time for malformed
// values so sorting stays total.
func (r *BatchJobRecord) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Progress carries the provider's advisory request counters while a job
// is running. Never persisted; recomputed on every poll.
type Progress struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// InputFile is one file handed to CreateJob. Files already uploaded to
// the provider carry a RemoteFileID and skip the upload step.
type InputFile struct {
	Name         string
	RemoteFileID string
	Content      []byte
}
