package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 implements Store on an S3-compatible backend (AWS S3 or MinIO). Single
// bucket; keys map to object keys directly.
type S3 struct {
	client *s3.Client
	bucket string
	base   *url.URL // optional explicit endpoint for constructing object URLs
}

// S3Config holds explicit construction parameters, mostly for tests; prod
// wiring goes through OpenS3FromEnv.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables custom endpoint (e.g. MinIO)
	PathStyle bool

	// AccessKey/SecretKey override the default credential chain when both are
	// set, the usual arrangement for a self-hosted MinIO endpoint.
	AccessKey string
	SecretKey string
}

// NewS3 creates an S3 photo store from S3Config.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	var base *url.URL
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err == nil {
			base = u
		}
	}
	return &S3{client: client, bucket: cfg.Bucket, base: base}, nil
}

// OpenS3FromEnv constructs an S3 store from process environment.
//
//	FIELDOPS_BLOB_S3_BUCKET=<bucket> (required)
//	FIELDOPS_BLOB_S3_REGION=<region> (default us-east-1)
//	FIELDOPS_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	FIELDOPS_BLOB_S3_PATH_STYLE=true|false (default false)
//	FIELDOPS_BLOB_S3_ACCESS_KEY / FIELDOPS_BLOB_S3_SECRET_KEY (optional; falls
//	back to the standard AWS credential chain when unset)
func OpenS3FromEnv(ctx context.Context) (*S3, error) {
	bucket := os.Getenv("FIELDOPS_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("FIELDOPS_BLOB_S3_BUCKET required for s3 driver")
	}
	return NewS3(ctx, S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("FIELDOPS_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("FIELDOPS_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("FIELDOPS_BLOB_S3_PATH_STYLE"), "true"),
		AccessKey: os.Getenv("FIELDOPS_BLOB_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("FIELDOPS_BLOB_S3_SECRET_KEY"),
	})
}

// Driver identifies the backend.
func (s *S3) Driver() Driver { return DriverS3 }

func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error) {
	// Emulate create-only via Head first.
	if _, err := s.Head(ctx, key); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Info{}, err
	}
	return s.Head(ctx, key)
}

func (s *S3) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNoSuchKey(err) {
			return Info{}, nil, ErrNotFound
		}
		return Info{}, nil, err
	}
	return s.info(key, out.ContentLength, out.ContentType, out.ETag, out.LastModified), out.Body, nil
}

func (s *S3) Head(ctx context.Context, key string) (Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNoSuchKey(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	return s.info(key, out.ContentLength, out.ContentType, out.ETag, out.LastModified), nil
}

func (s *S3) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); errors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3) info(key string, length *int64, contentType, etag *string, modified *time.Time) Info {
	info := Info{Key: key, URL: s.objectURL(key)}
	if length != nil {
		info.Size = *length
	}
	if contentType != nil {
		info.ContentType = *contentType
	}
	if etag != nil {
		info.ETag = strings.Trim(*etag, `"`)
	}
	if modified != nil {
		info.LastModified = modified.UTC()
	}
	return info
}

func (s *S3) objectURL(key string) string {
	if s.base != nil {
		u := *s.base
		u.Path = "/" + s.bucket + "/" + key
		return u.String()
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
