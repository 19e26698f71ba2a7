// Package storage archives transcripts and session results.
//
// A [Store] is a flat namespace of objects addressed by slash-separated
// names. [Dir] keeps them on the local filesystem, [Bucket] in Amazon S3
// or an S3-compatible object store. [Open] picks one from a URI:
//
//	/var/lib/asr/transcripts
//	file:///var/lib/asr/transcripts
//	s3://bucket/prefix?region=us-east-1&endpoint=http://localhost:9000
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store is an object store. Implementations are safe for concurrent use.
type Store interface {
	// Create opens the named object for writing, replacing any existing
	// one. The object is complete once the writer is closed.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Open opens the named object for reading. A missing object is an
	// error wrapping os.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes the named object. Removing a missing object is not an
	// error.
	Remove(ctx context.Context, name string) error

	// Exists reports whether the named object exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// ErrInvalidName is returned for names that are empty or escape the store.
var ErrInvalidName = errors.New("storage: invalid object name")

func cleanName(name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}

// Save writes data as the named object.
func Save(ctx context.Context, s Store, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return nil
}

// Open returns the store addressed by uri. Plain paths and file:// URIs
// select a Dir; s3://bucket/prefix selects a Bucket, configured from the
// region and endpoint query parameters and the AWS_* environment
// variables.
func Open(uri string) (Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %q: %w", uri, err)
	}
	switch u.Scheme {
	case "":
		return NewDir(uri)
	case "file":
		return NewDir(u.Path)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("storage: %q has no bucket", uri)
		}
		return NewBucket(newS3Client(u.Query()), u.Host, strings.Trim(u.Path, "/")), nil
	}
	return nil, fmt.Errorf("storage: unsupported scheme %q", u.Scheme)
}

func newS3Client(q url.Values) *s3.Client {
	region := q.Get("region")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
				if id == "" || secret == "" {
					return aws.Credentials{}, errors.New("storage: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")
				}
				return aws.Credentials{
					AccessKeyID:     id,
					SecretAccessKey: secret,
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
					Source:          "environment",
				}, nil
			})),
	}
	if endpoint := q.Get("endpoint"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
