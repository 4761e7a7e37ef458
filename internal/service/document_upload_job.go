package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
)

// JobTypeStudentDocument tags queued student document uploads.
const JobTypeStudentDocument = "student-document"

type blobUploader interface {
	Upload(ctx context.Context, blobPath string, data []byte) (*models.BlobHandle, error)
	ResolveDownloadLocator(ctx context.Context, handle *models.BlobHandle) (string, error)
}

type documentMerger interface {
	MergeDocument(ctx context.Context, uid string, kind models.DocumentKind, ref models.DocumentRef) error
}

// DocumentUpload is one attachment waiting to be uploaded for a student.
type DocumentUpload struct {
	UID        string
	Kind       models.DocumentKind
	Attachment dto.Attachment
}

// StudentDocumentPath returns the blob path for a student document uploaded at ts.
func StudentDocumentPath(uid string, kind models.DocumentKind, ts time.Time) string {
	return fmt.Sprintf("students/%s/documents/%s-%d", uid, kind, ts.UnixMilli())
}

// DocumentUploadWorker uploads student documents in the background. Failures are logged and counted, never retried.
type DocumentUploadWorker struct {
	blobs    blobUploader
	profiles documentMerger
	metrics  *MetricsService
	logger   *zap.Logger
	queue    *jobs.Queue
	now      func() time.Time
}

// NewDocumentUploadWorker constructs the worker and its queue.
func NewDocumentUploadWorker(blobs blobUploader, profiles documentMerger, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *DocumentUploadWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &DocumentUploadWorker{
		blobs:    blobs,
		profiles: profiles,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	cfg.MaxRetries = 0
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	w.queue = jobs.NewQueue("student-documents", w.handle, cfg)
	return w
}

// Start launches the queue workers.
func (w *DocumentUploadWorker) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop finishes accepted uploads and stops the workers.
func (w *DocumentUploadWorker) Stop() {
	w.queue.Stop()
}

// Enqueue schedules an upload and returns immediately.
func (w *DocumentUploadWorker) Enqueue(_ context.Context, upload DocumentUpload) error {
	return w.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeStudentDocument,
		Payload: upload,
	})
}

// Process uploads the attachment, resolves its locator and merges documents.{kind} into the profile.
func (w *DocumentUploadWorker) Process(ctx context.Context, upload DocumentUpload) error {
	uploadedAt := w.now()
	blobPath := StudentDocumentPath(upload.UID, upload.Kind, uploadedAt)

	handle, err := w.blobs.Upload(ctx, blobPath, upload.Attachment.Data)
	if err != nil {
		w.metrics.RecordUpload(upload.Kind, OutcomeFailure)
		return fmt.Errorf("upload %s for %s: %w", upload.Kind, upload.UID, err)
	}

	locator, err := w.blobs.ResolveDownloadLocator(ctx, handle)
	if err != nil {
		w.metrics.RecordUpload(upload.Kind, OutcomeFailure)
		return fmt.Errorf("resolve %s locator for %s: %w", upload.Kind, upload.UID, err)
	}

	ref := models.DocumentRef{URL: locator, FileName: upload.Attachment.FileName, UploadedAt: uploadedAt}
	if err := w.profiles.MergeDocument(ctx, upload.UID, upload.Kind, ref); err != nil {
		w.metrics.RecordUpload(upload.Kind, OutcomeFailure)
		return fmt.Errorf("merge %s into profile %s: %w", upload.Kind, upload.UID, err)
	}

	w.metrics.RecordUpload(upload.Kind, OutcomeSuccess)
	w.logger.Info("student document stored", zap.String("uid", upload.UID), zap.String("kind", string(upload.Kind)))
	return nil
}

func (w *DocumentUploadWorker) handle(ctx context.Context, job jobs.Job) error {
	upload, ok := job.Payload.(DocumentUpload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return w.Process(ctx, upload)
}
