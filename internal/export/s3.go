package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// objectUploader is the subset of manager.Uploader used here
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader copies exported files to an S3 bucket under prefix/<run id>/
type S3Uploader struct {
	uploader objectUploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Uploader creates an uploader using the default AWS credential chain
func NewS3Uploader(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Uploader(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, prefix, log), nil
}

func newS3Uploader(uploader objectUploader, bucket, prefix string, log zerolog.Logger) *S3Uploader {
	return &S3Uploader{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("service", "s3_export").Logger(),
	}
}

// Key returns the object key for a file of a run
func (u *S3Uploader) Key(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// Upload uploads every file of a run
func (u *S3Uploader) Upload(ctx context.Context, runID string, files []string) error {
	for _, file := range files {
		if err := u.uploadFile(ctx, u.Key(runID, file), file); err != nil {
			return err
		}
	}

	u.log.Info().
		Str("bucket", u.bucket).
		Str("run_id", runID).
		Int("files", len(files)).
		Msg("Uploaded run exports")
	return nil
}

func (u *S3Uploader) uploadFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", file, u.bucket, key, err)
	}
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
