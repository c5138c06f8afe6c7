package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/jobs"
)

// BlobCleanupJob removes a stored file that never got its metadata row.
const BlobCleanupJob = "blob_cleanup"

type attachmentStore interface {
	Create(ctx context.Context, attachment *models.Attachment, actor string) error
	FindByID(ctx context.Context, id string) (*models.Attachment, error)
}

type fileStorage interface {
	Save(relPath string, r io.Reader) (string, int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

type urlSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string) (id, relPath string, err error)
}

// AttachmentUpload carries an uploaded file stream.
type AttachmentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// AttachmentDownload is an opened file ready for streaming.
type AttachmentDownload struct {
	File     *os.File
	Filename string
	MimeType string
	Size     int64
}

// SignedAttachmentURL is a time-limited download link.
type SignedAttachmentURL struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachmentServiceConfig holds upload limits.
type AttachmentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentService stores report files and issues signed download links.
type AttachmentService struct {
	repo    attachmentStore
	storage fileStorage
	signer  urlSigner
	logger  *zap.Logger
	cfg     AttachmentServiceConfig
	mimeSet map[string]struct{}
	cleanup jobQueue
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(repo attachmentStore, storage fileStorage, signer urlSigner, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &AttachmentService{repo: repo, storage: storage, signer: signer, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// WithCleanupQueue retries failed blob deletions in the background.
func (s *AttachmentService) WithCleanupQueue(q jobQueue) *AttachmentService {
	s.cleanup = q
	return s
}

// BlobCleanupHandler deletes the file named by a BlobCleanupJob payload.
func BlobCleanupHandler(storage fileStorage) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		path, ok := job.Payload.(string)
		if !ok || path == "" {
			return nil
		}
		return storage.Delete(path)
	}
}

// Upload validates and stores a file, then records its metadata.
func (s *AttachmentService) Upload(ctx context.Context, rc authz.RequestContext, upload AttachmentUpload) (*models.Attachment, error) {
	if rc.Principal.ProfileID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	relPath := filepath.Join(rc.SemesterCode, storedName(upload.Filename, mimeType))
	path, size, err := s.storage.Save(relPath, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist file")
	}
	attachment := &models.Attachment{
		OwnerKind:   rc.Principal.Kind,
		OwnerID:     rc.Principal.ProfileID,
		FileName:    filepath.Base(upload.Filename),
		MIMEType:    mimeType,
		SizeBytes:   size,
		StoragePath: path,
	}
	if err := s.repo.Create(ctx, attachment, rc.Principal.AccountID); err != nil {
		s.discard(path)
		return nil, appErrors.Store(err, "failed to record attachment")
	}
	s.logger.Info("attachment stored", zap.String("attachment_id", attachment.ID), zap.Int64("size", size))
	return attachment, nil
}

func (s *AttachmentService) discard(path string) {
	err := s.storage.Delete(path)
	if err == nil {
		return
	}
	if s.cleanup == nil {
		s.logger.Warn("orphan blob left behind", zap.String("path", path), zap.Error(err))
		return
	}
	if qerr := s.cleanup.Enqueue(jobs.Job{ID: path, Type: BlobCleanupJob, Payload: path}); qerr != nil {
		s.logger.Warn("orphan blob left behind", zap.String("path", path), zap.Error(qerr))
	}
}

// SignedURL issues a download link. Owners and teachers may request one.
func (s *AttachmentService) SignedURL(ctx context.Context, rc authz.RequestContext, id string) (*SignedAttachmentURL, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	attachment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "attachment")
	}
	if !rc.Principal.IsTeacher() && attachment.OwnerID != rc.Principal.ProfileID {
		return nil, forbidden("attachment belongs to another user")
	}
	token, expiresAt, err := s.signer.Generate(attachment.ID, attachment.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &SignedAttachmentURL{
		URL:       fmt.Sprintf("%s/attachments/download?token=%s", base, token),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the file it names.
func (s *AttachmentService) Open(ctx context.Context, token string) (*AttachmentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	id, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	attachment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "attachment")
	}
	if attachment.StoragePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &AttachmentDownload{
		File:     file,
		Filename: attachment.FileName,
		MimeType: attachment.MIMEType,
		Size:     attachment.SizeBytes,
	}, nil
}

func detectMime(upload AttachmentUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func storedName(original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	stem := sanitize(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	if stem == "" {
		stem = "report"
	}
	return fmt.Sprintf("%s_%d_%s%s", stem, time.Now().Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/zip":
		return ".zip"
	default:
		return ""
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
