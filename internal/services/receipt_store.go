package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrReceiptRequired        = errors.New("a payment receipt is required")
	ErrReceiptTooLarge        = errors.New("receipt exceeds the maximum allowed size")
	ErrUnsupportedReceiptType = errors.New("receipt must be a JPEG, PNG or PDF file")
)

// receiptExtensions lists the accepted receipt formats by sniffed content type.
var receiptExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

// ReceiptStore keeps uploaded payment receipts in object storage.
type ReceiptStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	EnsureBucket(ctx context.Context) error
	Ping(ctx context.Context) error
}

type minioReceiptStore struct {
	client *minio.Client
	bucket string
}

func NewMinioReceiptStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (ReceiptStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioReceiptStore{client: client, bucket: bucket}, nil
}

func (m *minioReceiptStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *minioReceiptStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *minioReceiptStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *minioReceiptStore) EnsureBucket(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *minioReceiptStore) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

// ReceiptUpload is a receipt file as received from the client.
type ReceiptUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// receipt is a validated, fully buffered receipt ready to store.
type receipt struct {
	data        []byte
	contentType string
	sha256      string
}

// readReceipt buffers at most maxBytes and checks the sniffed content type.
// The declared content type of the upload is not trusted.
func readReceipt(upload *ReceiptUpload, maxBytes int64) (*receipt, error) {
	if upload == nil || upload.Reader == nil {
		return nil, ErrReceiptRequired
	}
	if upload.Size > maxBytes {
		return nil, ErrReceiptTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(upload.Reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrReceiptRequired
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrReceiptTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := receiptExtensions[contentType]; !ok {
		return nil, ErrUnsupportedReceiptType
	}

	sum := sha256.Sum256(data)
	return &receipt{data: data, contentType: contentType, sha256: hex.EncodeToString(sum[:])}, nil
}

// key places the receipt under its organization, named by content hash.
func (r *receipt) key(orgID uuid.UUID) string {
	return fmt.Sprintf("receipts/%s/%s.%s", orgID, r.sha256, receiptExtensions[r.contentType])
}

func (r *receipt) reader() io.Reader {
	return bytes.NewReader(r.data)
}
