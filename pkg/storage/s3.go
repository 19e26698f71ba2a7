package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the part of the S3 API a Bucket uses. [s3.Client]
// implements it.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Bucket is a Store in an S3 bucket, under an optional key prefix.
type Bucket struct {
	client S3Client
	bucket string
	prefix string
}

// NewBucket creates a Bucket. The client carries credentials, region and
// endpoint.
func NewBucket(client S3Client, bucket, prefix string) *Bucket {
	return &Bucket{client: client, bucket: bucket, prefix: prefix}
}

func (b *Bucket) key(name string) (*string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if b.prefix != "" {
		clean = b.prefix + "/" + clean
	}
	return aws.String(clean), nil
}

func (b *Bucket) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key, err := b.key(name)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &uploader{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		_, w.err = b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    key,
			Body:   pr,
		})
		// Unblock pending writes when the upload fails early.
		pr.CloseWithError(w.err)
	}()
	return w, nil
}

func (b *Bucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := b.key(name)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: key})
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("storage: open %s: %w", name, os.ErrNotExist)
		}
		return nil, err
	}
	return out.Body, nil
}

func (b *Bucket) Remove(ctx context.Context, name string) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: key})
	return err
}

func (b *Bucket) Exists(ctx context.Context, name string) (bool, error) {
	key, err := b.key(name)
	if err != nil {
		return false, err
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: key})
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	}
	return false, err
}

// uploader feeds a PutObject call running in the background.
type uploader struct {
	pw   *io.PipeWriter
	done chan struct{}
	err  error
}

func (w *uploader) Write(p []byte) (int, error) { return w.pw.Write(p) }

// Close ends the upload and returns its error.
func (w *uploader) Close() error {
	w.pw.Close()
	<-w.done
	return w.err
}

func notFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var (
	_ Store = (*Bucket)(nil)
	_ Store = (*Dir)(nil)
)
