package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store publishes to an S3 (or S3-compatible) bucket.
type S3Store struct {
	client   S3API
	bucket   string
	endpoint string
}

// NewS3Store loads AWS configuration for the configured region and credentials.
func NewS3Store(ctx context.Context, sc config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sc.Region)}
	if sc.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, cerrors.StorageAuth(fmt.Errorf("load aws config: %w", err))
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, cerrors.StorageAuth(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
		}
		o.UsePathStyle = sc.PathStyle
	})
	store := NewS3StoreWithClient(client, sc.Bucket)
	store.endpoint = strings.TrimRight(sc.Endpoint, "/")
	return store, nil
}

// NewS3StoreWithClient wraps an existing client (tests, custom endpoints).
func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) List(ctx context.Context, prefix string) (map[string]ObjectInfo, error) {
	out := make(map[string]ObjectInfo)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, cerrors.StorageFailed("list", prefix, err).WithContext("bucket", s.bucket)
		}
		for _, obj := range page.Contents {
			out[aws.ToString(obj.Key)] = ObjectInfo{
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			}
		}
	}
	return out, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.ACL != "" {
		in.ACL = types.ObjectCannedACL(opts.ACL)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return cerrors.StorageFailed("put", key, err).WithContext("bucket", s.bucket)
	}
	return nil
}

func (s *S3Store) URL(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// PublicURL is the HTTPS address of a public-read object. Custom endpoints
// are addressed path-style.
func (s *S3Store) PublicURL(key string) string {
	if s.endpoint != "" {
		return s.endpoint + "/" + s.bucket + "/" + key
	}
	return "https://" + s.bucket + ".s3.amazonaws.com/" + key
}
