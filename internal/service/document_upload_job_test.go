package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
)

type fakeBlobs struct {
	mu        sync.Mutex
	uploadErr error
	paths     []string
}

func (f *fakeBlobs) Upload(ctx context.Context, blobPath string, data []byte) (*models.BlobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, blobPath)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &models.BlobHandle{ID: "h1", Path: blobPath, Size: int64(len(data))}, nil
}

func (f *fakeBlobs) ResolveDownloadLocator(ctx context.Context, handle *models.BlobHandle) (string, error) {
	return "https://portal.test/blobs/" + handle.Path, nil
}

func (f *fakeBlobs) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func TestStudentDocumentPath(t *testing.T) {
	ts := time.UnixMilli(1760000123456)
	assert.Equal(t, "students/u1/documents/birthCert-1760000123456", StudentDocumentPath("u1", models.DocumentBirthCert, ts))
}

func TestDocumentUploadWorkerProcessMergesKind(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	profiles := repository.NewProfileRepository(store)
	ctx := context.Background()
	require.NoError(t, profiles.Create(ctx, &models.UserProfile{UID: "u1", Role: models.RoleStudent, FirstName: "Ada"}))

	blobs := &fakeBlobs{}
	worker := NewDocumentUploadWorker(blobs, profiles, nil, nil, jobs.QueueConfig{})
	worker.now = func() time.Time { return time.UnixMilli(1760000000000).UTC() }

	err := worker.Process(ctx, DocumentUpload{UID: "u1", Kind: models.DocumentIDCopy, Attachment: dto.Attachment{FileName: "id.pdf", Data: samplePDF}})
	require.NoError(t, err)

	profile, err := profiles.FindByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.FirstName)
	require.Contains(t, profile.Documents, models.DocumentIDCopy)
	ref := profile.Documents[models.DocumentIDCopy]
	assert.Equal(t, "id.pdf", ref.FileName)
	assert.Equal(t, "https://portal.test/blobs/students/u1/documents/idCopy-1760000000000", ref.URL)
}

func TestDocumentUploadWorkerDrainsQueue(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	profiles := repository.NewProfileRepository(store)
	ctx := context.Background()
	require.NoError(t, profiles.Create(ctx, &models.UserProfile{UID: "u1", Role: models.RoleStudent}))

	worker := NewDocumentUploadWorker(&fakeBlobs{}, profiles, nil, nil, jobs.QueueConfig{Workers: 3})
	worker.Start(ctx)
	for kind, attachment := range studentAttachments() {
		require.NoError(t, worker.Enqueue(ctx, DocumentUpload{UID: "u1", Kind: kind, Attachment: attachment}))
	}
	worker.Stop()

	profile, err := profiles.FindByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, profile.Documents, 3)
}

func TestDocumentUploadWorkerFailureIsLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	profiles := repository.NewProfileRepository(repository.NewMemoryDocumentStore())
	blobs := &fakeBlobs{uploadErr: errors.New("disk full")}

	worker := NewDocumentUploadWorker(blobs, profiles, nil, zap.New(core), jobs.QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	worker.Start(context.Background())
	require.NoError(t, worker.Enqueue(context.Background(), DocumentUpload{UID: "u1", Kind: models.DocumentClinicCard, Attachment: dto.Attachment{Data: samplePDF}}))
	worker.Stop()

	assert.Equal(t, 1, blobs.uploadCount())
	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())

	_, err := profiles.FindByUID(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)
}
