package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the narrow slice of the SDK's S3 client the cold tier needs,
// so tests can substitute an in-memory fake instead of standing up a real
// bucket or a network-backed mock.
type S3Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ColdIndex is the T2 record describing an archived object, per spec.md
// §4.4: archive path, size, creation time, and endpoint kind.
type ColdIndex struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      Kind      `json:"kind"`
}

// cold is the T3 tier: a blob archive addressed by a deterministic
// year/month/key path, so archival and rehydration never need a separate
// side-table mapping key to path.
type cold struct {
	client S3Client
	bucket string
}

func newCold(client S3Client, bucket string) *cold {
	return &cold{client: client, bucket: bucket}
}

// archivePath deterministically derives the object path from the cache key
// and the current time, per spec.md §4.4.
func archivePath(key string, at time.Time) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%04d/%02d/%s", at.Year(), at.Month(), hex.EncodeToString(sum[:]))
}

// archive writes value to the cold tier and returns the ColdIndex record
// that should be stored in T2 under ColdIndexKey(key).
func (c *cold) archive(ctx context.Context, key string, value []byte, kind Kind, at time.Time) (ColdIndex, error) {
	path := archivePath(key, at)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return ColdIndex{}, err
	}
	return ColdIndex{Path: path, Size: int64(len(value)), CreatedAt: at, Kind: kind}, nil
}

// fetch retrieves the archived object at idx.Path.
func (c *cold) fetch(ctx context.Context, idx ColdIndex) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(idx.Path),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// newDownloader wraps an s3.Client in the transfer manager's concurrent-part
// downloader. Nothing in this package calls it: archived objects are read
// with a single GetObject stream.
func newDownloader(client *s3.Client) *manager.Downloader {
	return manager.NewDownloader(client)
}
