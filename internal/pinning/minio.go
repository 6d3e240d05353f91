package pinning

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"blockvault/pkg/faults"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	Bucket    string `env:"MINIO_BUCKET_NAME" env-default:"blockvault"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	PublicURL string `env:"MINIO_PUBLIC_URL" env-default:"http://localhost:9000"`
}

// MinIOStore is a self-hosted Store backend. Objects are keyed by the hex
// SHA-256 of their content, which stands in for an IPFS CID: the same bytes
// always land under the same key, and the key doubles as the retrieval
// address.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.Bucket)
		if !(errBucketExists == nil && exists) {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

func (s *MinIOStore) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64, onProgress func(float64)) (*Pin, error) {
	const op = "pinning.Upload"

	// The content address is the hash of the full payload, so it has to be
	// read before the object key is known.
	data, err := io.ReadAll(&progressReader{r: r, total: size, fn: onProgress})
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}

	sum := sha256.Sum256(data)
	cid := hex.EncodeToString(sum[:])

	_, err = s.client.PutObject(ctx, s.bucket, cid, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
		UserMetadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}

	return &Pin{ContentID: cid, URL: s.URLFor(cid)}, nil
}

func (s *MinIOStore) Remove(ctx context.Context, cid string) error {
	err := s.client.RemoveObject(ctx, s.bucket, cid, minio.RemoveObjectOptions{})
	if err != nil {
		return faults.Wrap(faults.RemoteUnavailable, "pinning.Remove", err)
	}
	return nil
}

func (s *MinIOStore) URLFor(cid string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, cid)
}
