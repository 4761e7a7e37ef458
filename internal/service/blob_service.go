package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type blobFileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
}

type blobURLSigner interface {
	Generate(id, relPath string) (string, error)
	Parse(token string) (id, relPath string, err error)
}

// DefaultDocumentMIMEs is the allow-list used when none is configured.
var DefaultDocumentMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}

// BlobDownload bundles an opened blob with its metadata for streaming.
type BlobDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// BlobServiceConfig holds validation parameters and the public base of download links.
type BlobServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	PublicURL    string
	APIPrefix    string
}

// BlobService stores document blobs and hands out signed download locators.
type BlobService struct {
	storage blobFileStorage
	signer  blobURLSigner
	logger  *zap.Logger
	cfg     BlobServiceConfig
	mimeSet map[string]struct{}
}

// NewBlobService constructs the service with defaults.
func NewBlobService(storage blobFileStorage, signer blobURLSigner, logger *zap.Logger, cfg BlobServiceConfig) *BlobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = DefaultDocumentMIMEs
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &BlobService{storage: storage, signer: signer, logger: logger, cfg: cfg, mimeSet: MIMESet(cfg.AllowedMIMEs)}
}

// Upload validates and writes the bytes under blobPath.
func (s *BlobService) Upload(ctx context.Context, blobPath string, data []byte) (*models.BlobHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType := DetectMIME(data)
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	stored, err := s.storage.Save(blobPath, data)
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrDocumentUpload, err, "")
	}

	return &models.BlobHandle{
		ID:          uuid.NewString(),
		Path:        stored,
		ContentType: mimeType,
		Size:        int64(len(data)),
	}, nil
}

// ResolveDownloadLocator returns an absolute signed URL for the blob. The URL does not expire.
func (s *BlobService) ResolveDownloadLocator(_ context.Context, handle *models.BlobHandle) (string, error) {
	if handle == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "blob handle is required")
	}
	token, err := s.signer.Generate(handle.ID, handle.Path)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := s.cfg.PublicURL + strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/download?token=%s", base, url.QueryEscape(token)), nil
}

// Open validates a download token and opens the blob it points at.
func (s *BlobService) Open(_ context.Context, token string) (*BlobDownload, error) {
	_, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrDocumentUnavailable, err, "")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.CloneWrap(appErrors.ErrDocumentUnavailable, err, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}

	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewind document")
	}

	return &BlobDownload{
		File:      file,
		Filename:  path.Base(relPath),
		MimeType:  DetectMIME(head[:n]),
		SizeBytes: info.Size(),
	}, nil
}

// MIMESet lowercases a MIME allow-list into a lookup set.
func MIMESet(allowed []string) map[string]struct{} {
	set := make(map[string]struct{}, len(allowed))
	for _, mt := range allowed {
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			set[mt] = struct{}{}
		}
	}
	return set
}

// DetectMIME sniffs the content type of data without parameters.
func DetectMIME(data []byte) string {
	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
