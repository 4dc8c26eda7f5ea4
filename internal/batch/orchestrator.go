package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jus-team/legal-ocr-service/internal/ocrclient"
	"github.com/jus-team/legal-ocr-service/pkg/log"
)

// Orchestrator owns the batch job lifecycle: creation against the
// provider, reconciliation of local records with remote state, and
// result retrieval.
type Orchestrator struct {
	client            *ocrclient.Client
	store             Store
	uploadConcurrency int

	reconciles singleflight.Group
	now        func() time.Time
}

func NewOrchestrator(client *ocrclient.Client, store Store, uploadConcurrency int) *Orchestrator {
	if uploadConcurrency < 1 {
		uploadConcurrency = 1
	}
	return &Orchestrator{
		client:            client,
		store:             store,
		uploadConcurrency: uploadConcurrency,
		now:               time.Now,
	}
}

func newJobID(now time.Time) string {
	return fmt.Sprintf("batch_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateJob uploads any files that do not yet carry a provider reference,
// persists a processing record, then submits the batch. A submission
// failure leaves a terminal failed record behind: the job stays visible
// in history rather than vanishing.
func (o *Orchestrator) CreateJob(ctx context.Context, files []InputFile, apiKey, ownerKey string) (*BatchJobRecord, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	batchFiles, err := o.uploadPending(ctx, files, apiKey)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	record := &BatchJobRecord{
		ID:        newJobID(now),
		OwnerKey:  ownerKey,
		Status:    StatusProcessing,
		Files:     batchFiles,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}

	if err := o.store.SaveJob(ctx, record); err != nil {
		return nil, fmt.Errorf("persist job record: %w", err)
	}

	fileIDs := make([]string, 0, len(batchFiles))
	for _, f := range batchFiles {
		fileIDs = append(fileIDs, f.RemoteFileID)
	}

	remote, err := o.client.CreateBatch(ctx, fileIDs, apiKey)
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.UpdatedAt = o.now().UTC().Format(time.RFC3339)
		if saveErr := o.store.SaveJob(ctx, record); saveErr != nil {
			log.Error("Failed to persist failed job %s: %v", record.ID, saveErr)
		}
		return record, fmt.Errorf("create batch job: %w", err)
	}

	record.RemoteJobID = remote.ID
	record.UpdatedAt = o.now().UTC().Format(time.RFC3339)
	if err := o.store.SaveJob(ctx, record); err != nil {
		return nil, fmt.Errorf("persist job record: %w", err)
	}
	return record, nil
}

// uploadPending resolves every input to a provider file reference,
// preserving input order. Uploads run with bounded parallelism; OCR
// itself is deferred to the provider's batch queue, so only the upload
// step fans out.
func (o *Orchestrator) uploadPending(ctx context.Context, files []InputFile, apiKey string) ([]BatchFile, error) {
	ret := make([]BatchFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.uploadConcurrency)

	for i, file := range files {
		i, file := i, file
		if file.RemoteFileID != "" {
			ret[i] = BatchFile{DisplayName: file.Name, RemoteFileID: file.RemoteFileID}
			continue
		}
		g.Go(func() error {
			fileID, err := o.client.UploadFile(gctx, ocrclient.UploadedFile{
				Name:     file.Name,
				MimeType: "application/pdf",
				Bytes:    file.Content,
			}, apiKey)
			if err != nil {
				return fmt.Errorf("upload %s: %w", file.Name, err)
			}
			ret[i] = BatchFile{DisplayName: file.Name, RemoteFileID: fileID}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Reconcile refreshes a record against remote state. Terminal records are
// returned untouched with no remote call. A failing status check returns
// the last known local state: transient reconciliation errors must never
// flip a healthy job to failed. The returned Progress is advisory and
// only present while the job is still running remotely.
func (o *Orchestrator) Reconcile(ctx context.Context, record *BatchJobRecord, apiKey string) (*BatchJobRecord, *Progress) {
	if record.Status.Terminal() || record.RemoteJobID == "" {
		return record, nil
	}

	type outcome struct {
		record   *BatchJobRecord
		progress *Progress
	}

	v, _, _ := o.reconciles.Do(record.ID, func() (interface{}, error) {
		updated, progress := o.reconcileOnce(ctx, record, apiKey)
		return outcome{record: updated, progress: progress}, nil
	})

	result := v.(outcome)
	return result.record, result.progress
}

func (o *Orchestrator) reconcileOnce(ctx context.Context, record *BatchJobRecord, apiKey string) (*BatchJobRecord, *Progress) {
	remote, err := o.client.GetBatch(ctx, record.RemoteJobID, apiKey)
	if err != nil {
		log.Warn("Status check for job %s failed, returning last known state: %v", record.ID, err)
		return record, nil
	}

	switch remote.Status {
	case ocrclient.BatchSuccess:
		results, err := o.fetchResults(ctx, remote, record.Files, apiKey)
		if err != nil {
			log.Warn("Result download for job %s failed, returning last known state: %v", record.ID, err)
			return record, nil
		}
		record.Status = StatusCompleted
		record.Results = results
		record.UpdatedAt = o.now().UTC().Format(time.RFC3339)
		if err := o.store.SaveJob(ctx, record); err != nil {
			log.Error("Failed to persist completed job %s: %v", record.ID, err)
		}
		return record, nil

	case ocrclient.BatchFailed, ocrclient.BatchCancelled, ocrclient.BatchTimeoutExceeded:
		record.Status = StatusFailed
		record.Error = fmt.Sprintf("remote batch job %s", strings.ToLower(string(remote.Status)))
		record.UpdatedAt = o.now().UTC().Format(time.RFC3339)
		if err := o.store.SaveJob(ctx, record); err != nil {
			log.Error("Failed to persist failed job %s: %v", record.ID, err)
		}
		return record, nil

	default:
		total := remote.TotalRequests
		if total == 0 {
			total = len(record.Files)
		}
		return record, &Progress{
			Total:     total,
			Succeeded: remote.SucceededRequests,
			Failed:    remote.FailedRequests,
		}
	}
}

// fetchResults downloads and parses the JSONL output file. Every file
// gets a result entry: a line that fails to parse, or a missing line,
// becomes an entry with an error string instead of aborting the batch.
// A failed download is returned as an error so the job is not completed
// against partial state; the next poll retries the download.
func (o *Orchestrator) fetchResults(ctx context.Context, remote *ocrclient.BatchJob, files []BatchFile, apiKey string) ([]FileResult, error) {
	results := make([]FileResult, len(files))
	for i, f := range files {
		results[i] = FileResult{
			FileName: f.DisplayName,
			Error:    "no result returned for this file",
		}
	}

	if remote.OutputFile == "" {
		log.Warn("Remote batch %s succeeded without an output file", remote.ID)
		return results, nil
	}

	content, err := o.client.DownloadFileContent(ctx, remote.OutputFile, apiKey)
	if err != nil {
		return nil, fmt.Errorf("download batch results %s: %w", remote.OutputFile, err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	for i, line := range lines {
		if i >= len(results) {
			log.Warn("Batch output carried %d lines for %d files, ignoring extras", len(lines), len(files))
			break
		}

		var parsed ocrclient.BatchResultLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			results[i] = FileResult{
				FileName: results[i].FileName,
				Error:    "failed to parse result",
			}
			continue
		}
		results[i] = FileResult{
			FileName: results[i].FileName,
			Markdown: ocrclient.PagesToMarkdown(parsed.Response.Body.Pages),
		}
	}
	return results, nil
}

// GetJob loads a single record for an owner.
func (o *Orchestrator) GetJob(ctx context.Context, ownerKey, jobID string) (*BatchJobRecord, bool, error) {
	return o.store.GetJob(ctx, ownerKey, jobID)
}

// ListJobs returns the owner's records newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, ownerKey string) ([]*BatchJobRecord, error) {
	records, err := o.store.ListJobs(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedTime().After(records[j].CreatedTime())
	})
	return records, nil
}

// NotCompletedError rejects result fetches for unfinished jobs with the
// job's current status, so clients can tell "still running" from "gone".
type NotCompletedError struct {
	Status JobStatus
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("job not completed, current status: %s", e.Status)
}

// GetResults returns the per-file results of a completed job.
func (o *Orchestrator) GetResults(ctx context.Context, ownerKey, jobID string) ([]FileResult, error) {
	record, ok, err := o.store.GetJob(ctx, ownerKey, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("job not found")
	}
	if record.Status != StatusCompleted {
		return nil, &NotCompletedError{Status: record.Status}
	}
	return record.Results, nil
}
