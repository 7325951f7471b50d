// Package sink archives workflow results outside the runner process.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink stores the result payload of a completed run.
type Sink interface {
	Store(ctx context.Context, runID int64, name string, data []byte) error
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

var defaultS3Client = sync.OnceValues(func() (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
})

// S3 uploads results to Bucket under Prefix/<run id>/<name>.
type S3 struct {
	Bucket string
	Prefix string
	// Client defaults to a client built from the default AWS config
	// chain.
	Client S3API
	// WaitTimeout bounds the wait for the uploaded object to become
	// visible; zero skips the wait.
	WaitTimeout time.Duration
}

func NewS3(bucket string, prefix string) *S3 {
	return &S3{Bucket: bucket, Prefix: prefix, WaitTimeout: time.Minute}
}

func (s *S3) Key(runID int64, name string) string {
	return path.Join(s.Prefix, strconv.FormatInt(runID, 10), name)
}

func (s *S3) Store(ctx context.Context, runID int64, name string, data []byte) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	key := s.Key(runID, name)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", s.Bucket, key, err)
	}
	if s.WaitTimeout <= 0 {
		return nil
	}

	err = s3.NewObjectExistsWaiter(client).Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s.WaitTimeout)
	if err != nil {
		return fmt.Errorf("wait for s3 object %s/%s: %w", s.Bucket, key, err)
	}
	return nil
}

func (s *S3) client() (S3API, error) {
	if s.Client != nil {
		return s.Client, nil
	}
	client, err := defaultS3Client()
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return client, nil
}
