package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures the S3-compatible artifact upload. Credentials
// come from the environment so run files stay free of secrets.
type ObjectStoreConfig struct {
	Endpoint     string
	Bucket       string
	Prefix       string
	UseSSL       bool
	AccessKeyEnv string
	SecretKeyEnv string
}

// Uploader copies local artifacts into an object store bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewUploader constructs an Uploader, reading credentials from the named
// environment variables.
func NewUploader(cfg ObjectStoreConfig) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("output: object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("output: object store bucket is required")
	}
	access := os.Getenv(cfg.AccessKeyEnv)
	secret := os.Getenv(cfg.SecretKeyEnv)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("output: object store credentials missing (checked $%s and $%s)",
			cfg.AccessKeyEnv, cfg.SecretKeyEnv)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("output: create object store client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload copies one local file into the bucket under prefix/basename and
// returns the object URL.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	key := path.Join(u.prefix, filepath.Base(localPath))
	_, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("output: upload %s: %w", localPath, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
