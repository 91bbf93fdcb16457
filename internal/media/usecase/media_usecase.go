// Package usecase implements media upload, range streaming, download, and
// transcript result handling on top of the container codec.
package usecase

import (
	"context"
	"crypto/rsa"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/job/domain"
	jobUseCase "github.com/SUNET/transcribe-backend/internal/job/usecase"
	"github.com/SUNET/transcribe-backend/internal/metrics"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
	vaultDomain "github.com/SUNET/transcribe-backend/internal/vault/domain"
	vaultService "github.com/SUNET/transcribe-backend/internal/vault/service"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// ObjectStore defines the blob operations the use case needs. Satisfied by
// the storage package.
type ObjectStore interface {
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)
	NewRangeReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	NewWriter(ctx context.Context, key string) (io.WriteCloser, error)
	ReadAll(ctx context.Context, key string) ([]byte, error)
	WriteAll(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// KeyService resolves user key material. Satisfied by the keys use case.
type KeyService interface {
	PublicKey(ctx context.Context, userID uuid.UUID) (*rsa.PublicKey, error)
	PrivateKey(ctx context.Context, userID uuid.UUID, passphrase string) (*rsa.PrivateKey, error)
}

// JobService is the slice of the job use case the media layer drives.
type JobService interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID, callerID uuid.UUID, admin bool) (*domain.Job, error)
	Update(ctx context.Context, jobID, callerID uuid.UUID, admin bool, input jobUseCase.UpdateJobInput) (*domain.Job, error)
}

// Source labels how a served body was produced. The plaintext fallback is a
// named outcome rather than a swallowed decode failure so it stays auditable.
const (
	SourceEncrypted         = "encrypted"
	SourcePlaintext         = "plaintext"
	SourcePlaintextFallback = "plaintext_fallback"
)

const mediaContentType = "video/mp4"

// UploadInput carries a media upload.
type UploadInput struct {
	Filename     string
	Language     string
	ModelType    string
	Speakers     string
	OutputFormat domain.OutputFormat

	// Size is the plaintext byte length, recorded as the container's
	// declared size.
	Size    int64
	Content io.Reader
}

// StreamOutput is a ready-to-send media response.
type StreamOutput struct {
	Job *domain.Job

	// Status is 206 for a range response, 200 for a full body.
	Status        int
	ContentType   string
	ContentRange  string
	ContentLength int64
	TotalSize     int64
	Source        string
	Body          io.ReadCloser
}

// ResultOutput is a transcript result response.
type ResultOutput struct {
	Job         *domain.Job
	Content     string
	Filename    string
	ContentType string
	Source      string
}

// UseCase defines the media business logic operations.
type UseCase interface {
	Upload(ctx context.Context, caller *userDomain.User, input UploadInput) (*domain.Job, error)
	Stream(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, rangeHeader, passphrase string) (*StreamOutput, error)
	Download(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, passphrase string) (*StreamOutput, error)
	UploadResult(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, content string) error
	Result(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, passphrase string) (*ResultOutput, error)
}

// MediaUseCase implements UseCase.
type MediaUseCase struct {
	jobs      JobService
	keys      KeyService
	store     ObjectStore
	business  metrics.BusinessMetrics
	assembler *vaultService.StreamAssembler
	chunkSize int
	logger    *slog.Logger
}

// NewMediaUseCase creates a new MediaUseCase. chunkSize is the deployment's
// container chunk size; it must match the size used when existing containers
// were written.
func NewMediaUseCase(
	jobs JobService,
	keys KeyService,
	store ObjectStore,
	business metrics.BusinessMetrics,
	chunkSize int,
	logger *slog.Logger,
) (*MediaUseCase, error) {
	assembler, err := vaultService.NewStreamAssembler(chunkSize, logger)
	if err != nil {
		return nil, err
	}
	return &MediaUseCase{
		jobs:      jobs,
		keys:      keys,
		store:     store,
		business:  business,
		assembler: assembler,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}

// Upload stores the media bytes and registers the job. Users with
// encryption enabled get a sized container under their public key; everyone
// else gets the plaintext object. On any mid-write failure the partial
// object is discarded and the job is marked failed.
func (u *MediaUseCase) Upload(ctx context.Context, caller *userDomain.User, input UploadInput) (*domain.Job, error) {
	if input.Filename == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "filename is required")
	}
	if input.Size < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "negative upload size")
	}

	job := &domain.Job{
		UserID:       caller.ID,
		Status:       domain.StatusUploading,
		Language:     input.Language,
		ModelType:    input.ModelType,
		Speakers:     input.Speakers,
		Filename:     input.Filename,
		OutputFormat: input.OutputFormat,
		Encrypted:    caller.EncryptionEnabled,
	}
	if job.Encrypted {
		job.ContainerVersion = domain.ContainerVersionSized
	}

	if err := u.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	var storeErr error
	if job.Encrypted {
		publicKey, err := u.keys.PublicKey(ctx, caller.ID)
		if err != nil {
			storeErr = err
		} else {
			storeErr = u.writeContainer(ctx, job.MediaObjectKey(), publicKey, input.Content, input.Size)
		}
	} else {
		storeErr = u.writeObject(ctx, job.MediaObjectKey(), input.Content)
	}

	if storeErr != nil {
		u.discardUpload(ctx, caller, job, storeErr)
		u.business.RecordOperation(ctx, "media", "upload", "error")
		return nil, storeErr
	}

	uploaded := domain.StatusUploaded
	job, err := u.jobs.Update(ctx, job.ID, caller.ID, caller.Admin, jobUseCase.UpdateJobInput{Status: &uploaded})
	if err != nil {
		return nil, err
	}

	u.business.RecordOperation(ctx, "media", "upload", "success")
	u.logger.Info(
		"media stored",
		slog.String("job_id", job.ID.String()),
		slog.Bool("encrypted", job.Encrypted),
		slog.Int64("size", input.Size),
	)
	return job, nil
}

// writeContainer streams plaintext into an encrypted container object. The
// write context is cancelled on failure, which aborts the blob write so no
// partial object becomes visible.
func (u *MediaUseCase) writeContainer(ctx context.Context, key string, publicKey *rsa.PublicKey, content io.Reader, size int64) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer, err := u.store.NewWriter(wctx, key)
	if err != nil {
		return err
	}

	if err := vaultService.WriteContainer(writer, publicKey, content, size, u.chunkSize); err != nil {
		cancel()
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (u *MediaUseCase) writeObject(ctx context.Context, key string, content io.Reader) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer, err := u.store.NewWriter(wctx, key)
	if err != nil {
		return err
	}

	if _, err := io.Copy(writer, content); err != nil {
		cancel()
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (u *MediaUseCase) discardUpload(ctx context.Context, caller *userDomain.User, job *domain.Job, cause error) {
	if err := u.store.Delete(ctx, job.MediaObjectKey()); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		u.logger.Warn(
			"failed to discard partial upload",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	failed := domain.StatusFailed
	msg := "upload failed"
	if _, err := u.jobs.Update(ctx, job.ID, caller.ID, caller.Admin, jobUseCase.UpdateJobInput{
		Status: &failed,
		Error:  &msg,
	}); err != nil {
		u.logger.Warn(
			"failed to mark job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	u.logger.Warn(
		"upload discarded",
		slog.String("job_id", job.ID.String()),
		slog.String("error", cause.Error()),
	)
}

// Stream serves the media bytes for a Range request. Encrypted jobs are
// decrypted chunk-by-chunk through the container codec; when the passphrase
// does not verify, or the encrypted container is missing, a plaintext
// sibling object is served instead if one exists.
func (u *MediaUseCase) Stream(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, rangeHeader, passphrase string) (*StreamOutput, error) {
	job, err := u.jobs.Get(ctx, jobID, caller.ID, caller.Admin)
	if err != nil {
		return nil, err
	}

	output, err := u.openMedia(ctx, job, rangeHeader, passphrase)
	if err != nil {
		u.business.RecordOperation(ctx, "media", "stream", "error")
		return nil, err
	}

	u.business.RecordOperation(ctx, "media", "stream", "success")
	return output, nil
}

// Download serves the complete media file.
func (u *MediaUseCase) Download(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, passphrase string) (*StreamOutput, error) {
	job, err := u.jobs.Get(ctx, jobID, caller.ID, caller.Admin)
	if err != nil {
		return nil, err
	}

	output, err := u.openMedia(ctx, job, "", passphrase)
	if err != nil {
		u.business.RecordOperation(ctx, "media", "download", "error")
		return nil, err
	}

	u.business.RecordOperation(ctx, "media", "download", "success")
	return output, nil
}

func (u *MediaUseCase) openMedia(ctx context.Context, job *domain.Job, rangeHeader, passphrase string) (*StreamOutput, error) {
	if !job.Encrypted {
		return u.openPlainObject(ctx, job, job.MediaObjectKey(), rangeHeader, SourcePlaintext)
	}

	privateKey, err := u.keys.PrivateKey(ctx, job.UserID, passphrase)
	if err != nil {
		return u.fallbackToPlainSibling(ctx, job, rangeHeader, err)
	}

	format, err := containerFormat(job.ContainerVersion)
	if err != nil {
		return nil, err
	}

	key := job.MediaObjectKey()
	stream, err := u.assembler.Stream(ctx, privateKey, format, func(ctx context.Context) (io.ReadCloser, error) {
		return u.store.NewReader(ctx, key)
	}, rangeHeader)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return u.fallbackToPlainSibling(ctx, job, rangeHeader, err)
		}
		return nil, err
	}

	return u.newStreamOutput(ctx, job, rangeHeader, SourceEncrypted,
		stream.Start, stream.End, stream.TotalSize, stream.Body), nil
}

// fallbackToPlainSibling serves the unencrypted sibling object left behind
// by the pre-encryption storage format. The original failure is propagated
// when no sibling exists.
func (u *MediaUseCase) fallbackToPlainSibling(ctx context.Context, job *domain.Job, rangeHeader string, cause error) (*StreamOutput, error) {
	plainKey := strings.TrimSuffix(job.MediaObjectKey(), domain.EncryptedSuffix)

	exists, err := u.store.Exists(ctx, plainKey)
	if err != nil || !exists {
		return nil, cause
	}

	u.logger.Info(
		"serving plaintext sibling",
		slog.String("job_id", job.ID.String()),
		slog.String("reason", cause.Error()),
	)
	return u.openPlainObject(ctx, job, plainKey, rangeHeader, SourcePlaintextFallback)
}

func (u *MediaUseCase) openPlainObject(ctx context.Context, job *domain.Job, key, rangeHeader, source string) (*StreamOutput, error) {
	size, err := u.store.Size(ctx, key)
	if err != nil {
		return nil, err
	}

	if size == 0 && !vaultService.ValidRangeHeader(rangeHeader) {
		return u.newStreamOutput(ctx, job, rangeHeader, source, 0, -1, 0,
			io.NopCloser(strings.NewReader(""))), nil
	}

	resolved, err := vaultService.ResolveRange(rangeHeader, size, u.chunkSize)
	if err != nil {
		return nil, err
	}

	body, err := u.store.NewRangeReader(ctx, key, resolved.Start, resolved.Length())
	if err != nil {
		return nil, err
	}

	return u.newStreamOutput(ctx, job, rangeHeader, source,
		resolved.Start, resolved.End, size, body), nil
}

func (u *MediaUseCase) newStreamOutput(ctx context.Context, job *domain.Job, rangeHeader, source string, start, end, total int64, body io.ReadCloser) *StreamOutput {
	output := &StreamOutput{
		Job:           job,
		Status:        200,
		ContentType:   mediaContentType,
		ContentLength: end - start + 1,
		TotalSize:     total,
		Source:        source,
		Body:          u.countBytes(ctx, source, body),
	}
	// An unparseable Range header is served the same as an absent one.
	if vaultService.ValidRangeHeader(rangeHeader) {
		output.Status = 206
		output.ContentRange = (&vaultService.Stream{Start: start, End: end, TotalSize: total}).ContentRange()
	}
	return output
}

// countBytes wraps a body so the served plaintext volume is recorded when
// the response finishes, however it finishes.
func (u *MediaUseCase) countBytes(ctx context.Context, source string, body io.ReadCloser) io.ReadCloser {
	return &countingBody{
		ReadCloser: body,
		record: func(n int64) {
			u.business.RecordStreamedBytes(context.WithoutCancel(ctx), "stream", source, n)
		},
	}
}

// UploadResult stores the transcript result for a job. Encrypted jobs get a
// standalone string envelope under the owner's public key, not container
// framing.
func (u *MediaUseCase) UploadResult(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, content string) error {
	job, err := u.jobs.Get(ctx, jobID, caller.ID, caller.Admin)
	if err != nil {
		return err
	}

	data := []byte(content)
	if job.Encrypted {
		publicKey, err := u.keys.PublicKey(ctx, job.UserID)
		if err != nil {
			return err
		}
		encoded, err := vaultService.EncryptString(publicKey, content)
		if err != nil {
			return err
		}
		data = []byte(encoded)
	}

	if err := u.store.WriteAll(ctx, job.ResultObjectKey(), data); err != nil {
		u.business.RecordOperation(ctx, "media", "result_upload", "error")
		return err
	}

	u.business.RecordOperation(ctx, "media", "result_upload", "success")
	u.logger.Info(
		"result stored",
		slog.String("job_id", job.ID.String()),
		slog.Bool("encrypted", job.Encrypted),
	)
	return nil
}

// Result returns the transcript of a completed job. The same plaintext
// sibling fallback as media streaming applies when the passphrase does not
// verify or no encrypted result exists.
func (u *MediaUseCase) Result(ctx context.Context, caller *userDomain.User, jobID uuid.UUID, passphrase string) (*ResultOutput, error) {
	job, err := u.jobs.Get(ctx, jobID, caller.ID, caller.Admin)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusCompleted {
		return nil, domain.ErrJobNotCompleted
	}

	output := &ResultOutput{
		Job:         job,
		Filename:    job.ResultFilename(),
		ContentType: resultContentType(job.OutputFormat),
	}

	if !job.Encrypted {
		data, err := u.store.ReadAll(ctx, job.ResultObjectKey())
		if err != nil {
			return nil, err
		}
		output.Content = string(data)
		output.Source = SourcePlaintext
		u.business.RecordOperation(ctx, "media", "result", "success")
		return output, nil
	}

	content, source, err := u.readEncryptedResult(ctx, job, passphrase)
	if err != nil {
		u.business.RecordOperation(ctx, "media", "result", "error")
		return nil, err
	}

	output.Content = content
	output.Source = source
	u.business.RecordOperation(ctx, "media", "result", "success")
	return output, nil
}

func (u *MediaUseCase) readEncryptedResult(ctx context.Context, job *domain.Job, passphrase string) (string, string, error) {
	privateKey, err := u.keys.PrivateKey(ctx, job.UserID, passphrase)
	if err != nil {
		return u.readPlainResultSibling(ctx, job, err)
	}

	encoded, err := u.store.ReadAll(ctx, job.ResultObjectKey())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return u.readPlainResultSibling(ctx, job, err)
		}
		return "", "", err
	}

	content, err := vaultService.DecryptString(privateKey, string(encoded))
	if err != nil {
		return "", "", err
	}
	return content, SourceEncrypted, nil
}

func (u *MediaUseCase) readPlainResultSibling(ctx context.Context, job *domain.Job, cause error) (string, string, error) {
	plainKey := strings.TrimSuffix(job.ResultObjectKey(), domain.EncryptedSuffix)

	data, err := u.store.ReadAll(ctx, plainKey)
	if err != nil {
		return "", "", cause
	}

	u.logger.Info(
		"serving plaintext result sibling",
		slog.String("job_id", job.ID.String()),
		slog.String("reason", cause.Error()),
	)
	return string(data), SourcePlaintextFallback, nil
}

func containerFormat(version domain.ContainerVersion) (vaultDomain.Format, error) {
	switch version {
	case domain.ContainerVersionLegacy:
		return vaultDomain.FormatLegacy, nil
	case domain.ContainerVersionSized:
		return vaultDomain.FormatSized, nil
	default:
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput,
			"job marked encrypted with container version %d", version)
	}
}

func resultContentType(format domain.OutputFormat) string {
	switch format {
	case domain.OutputFormatSRT:
		return "application/x-subrip"
	case domain.OutputFormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

type countingBody struct {
	io.ReadCloser
	n        int64
	recorded bool
	record   func(int64)
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *countingBody) Close() error {
	err := b.ReadCloser.Close()
	if !b.recorded {
		b.recorded = true
		b.record(b.n)
	}
	return err
}
