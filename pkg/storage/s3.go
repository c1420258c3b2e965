package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/storeit/server/pkg/apperr"
)

// S3Config holds the settings for an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store keeps blobs in an S3-compatible bucket under "{owner}/{name}"
// keys. It satisfies the same contract as DiskStore, so the two are
// interchangeable by configuration.
type S3Store struct {
	svc    s3iface.S3API
	bucket string
}

// NewS3Store connects to the configured bucket.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, apperr.E(apperr.ErrStorageIO, "storage.NewS3Store", "", cfg.Bucket, err)
	}
	return &S3Store{svc: s3.New(sess), bucket: cfg.Bucket}, nil
}

// NewS3StoreWithClient wraps an existing client. Used by tests.
func NewS3StoreWithClient(svc s3iface.S3API, bucket string) *S3Store {
	return &S3Store{svc: svc, bucket: bucket}
}

func (s *S3Store) key(owner, name string) string {
	return owner + "/" + name
}

func (s *S3Store) Write(ctx context.Context, owner, name string, data []byte) error {
	const op = "storage.s3.Write"

	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(owner, name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context, owner, name string) ([]byte, error) {
	const op = "storage.s3.Read"

	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(owner, name)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, apperr.E(apperr.ErrNotFound, op, owner, name, nil)
		}
		return nil, apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return data, nil
}

// Rename is copy-then-delete; S3 has no native move.
func (s *S3Store) Rename(ctx context.Context, owner, oldName, newName string) error {
	const op = "storage.s3.Rename"

	_, err := s.svc.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.key(owner, oldName)),
		Key:        aws.String(s.key(owner, newName)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return apperr.E(apperr.ErrNotFound, op, owner, oldName, nil)
		}
		return apperr.E(apperr.ErrStorageIO, op, owner, oldName, err)
	}

	_, err = s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(owner, oldName)),
	})
	if err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, oldName, err)
	}
	return nil
}

func (s *S3Store) Remove(ctx context.Context, owner, name string) error {
	const op = "storage.s3.Remove"

	// DeleteObject succeeds on absent keys, which matches the tolerant
	// remove contract.
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(owner, name)),
	})
	if err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, owner, name string) (bool, error) {
	const op = "storage.s3.Exists"

	_, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(owner, name)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
