package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
)

// S3 stores entries as objects keyed "<namespace>/<name>" in one bucket.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger
}

// OpenS3 creates a MinIO client from cfg and makes sure the bucket exists.
func OpenS3(ctx context.Context, cfg common.S3Config, logger *slog.Logger) (*S3, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	b := &S3{client: client, bucket: cfg.Bucket, region: cfg.Region, logger: logger}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("s3 backend ready", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return b, nil
}

func (b *S3) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if !exists {
		if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", b.bucket, err)
		}
	}
	return nil
}

func objectKey(namespace, name string) string {
	return path.Join(namespace, name)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// EnsureNamespace is a no-op: prefixes exist as soon as an object does.
func (b *S3) EnsureNamespace(_ context.Context, namespace string) error {
	return checkKey(namespace)
}

func (b *S3) Names(ctx context.Context, namespace string) ([]string, error) {
	if err := checkKey(namespace); err != nil {
		return nil, err
	}
	prefix := namespace + "/"
	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		// skip "directory" markers and nested keys
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *S3) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	if err := checkKey(namespace, name); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, objectKey(namespace, name), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return buf, nil
}

func (b *S3) Write(ctx context.Context, namespace, name string, data []byte) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType(name)}
	_, err := b.client.PutObject(ctx, b.bucket, objectKey(namespace, name), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Rename copies then deletes; S3 has no atomic rename.
func (b *S3) Rename(ctx context.Context, namespace, oldName, newName string) error {
	if err := checkKey(namespace, oldName, newName); err != nil {
		return err
	}
	if oldName == newName {
		ok, err := b.Exists(ctx, namespace, oldName)
		if err == nil && !ok {
			err = ErrNotExist
		}
		return err
	}
	src := minio.CopySrcOptions{Bucket: b.bucket, Object: objectKey(namespace, oldName)}
	dst := minio.CopyDestOptions{Bucket: b.bucket, Object: objectKey(namespace, newName)}
	if _, err := b.client.CopyObject(ctx, dst, src); err != nil {
		if isNoSuchKey(err) {
			return ErrNotExist
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, objectKey(namespace, oldName), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove renamed object: %w", err)
	}
	return nil
}

func (b *S3) Remove(ctx context.Context, namespace, name string) error {
	ok, err := b.Exists(ctx, namespace, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotExist
	}
	if err := b.client.RemoveObject(ctx, b.bucket, objectKey(namespace, name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (b *S3) Exists(ctx context.Context, namespace, name string) (bool, error) {
	if err := checkKey(namespace, name); err != nil {
		return false, err
	}
	_, err := b.client.StatObject(ctx, b.bucket, objectKey(namespace, name), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

func (b *S3) Close() error { return nil }

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json; charset=utf-8"
	}
	return "application/octet-stream"
}
