// Package storage persists avatar images in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/harmonia-app/harmonia/pkg/metrics"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

// MaxAvatarSize is the upload size limit in bytes.
const MaxAvatarSize = 2 << 20 // 2MB

var allowedContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
}

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// AvatarStore uploads avatar images and returns their public URLs.
type AvatarStore struct {
	client *minio.Client
	config Config
	logger ectologger.Logger
}

func NewAvatarStore(config Config, logger ectologger.Logger) (*AvatarStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &AvatarStore{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// EnsureBucket creates the avatar bucket if it does not exist.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check avatar bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.config.Bucket, minio.MakeBucketOptions{Region: s.config.Region}); err != nil {
		return fmt.Errorf("failed to create avatar bucket: %w", err)
	}
	return nil
}

// Upload stores an avatar image for a character and returns its public URL.
// Only PNG and JPEG up to MaxAvatarSize are accepted.
func (s *AvatarStore) Upload(ctx context.Context, characterID uuid.UUID, contentType string, size int64, body io.Reader) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.AvatarStore.Upload")
	defer span.End()

	ext, ok := allowedContentTypes[contentType]
	if !ok {
		metrics.AvatarUploadsTotal.WithLabelValues("rejected").Inc()
		return "", httperror.NewHTTPError(http.StatusBadRequest, "avatar must be a PNG or JPEG image")
	}
	if size <= 0 || size > MaxAvatarSize {
		metrics.AvatarUploadsTotal.WithLabelValues("rejected").Inc()
		return "", httperror.NewHTTPError(http.StatusBadRequest, "avatar must be 2MB or smaller")
	}

	key := fmt.Sprintf("avatars/%s.%s", characterID, ext)

	_, err := s.client.PutObject(ctx, s.config.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		metrics.AvatarUploadsTotal.WithLabelValues("error").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": characterID,
		}).Error("failed to upload avatar")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to upload avatar")
	}

	metrics.AvatarUploadsTotal.WithLabelValues("success").Inc()
	return fmt.Sprintf("%s/%s/%s", s.config.PublicURL, s.config.Bucket, key), nil
}
