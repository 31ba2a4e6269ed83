// Package storage issues presigned upload URLs against S3-compatible object
// storage (AWS S3, MinIO, RustFS).
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

var ErrDisabled = errors.New("storage: object storage is not configured")

type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PresignTTL    time.Duration
	PublicBaseURL string
}

// Upload is a presigned PUT the client performs itself.
type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// bucketAPI is the subset of *s3.Client used by S3.
type bucketAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type S3 struct {
	client     bucketAPI
	presign    func(ctx context.Context, in *s3.PutObjectInput, ttl time.Duration) (string, error)
	bucket     string
	ttl        time.Duration
	publicBase string
	now        func() time.Time
}

func New(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage.New: access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("storage.New: endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.New: aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	presigner := s3.NewPresignClient(client)

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		switch {
		case endpoint != "":
			publicBase = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
		default:
			publicBase = "https://" + cfg.Bucket + ".s3." + region + ".amazonaws.com"
		}
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3{
		client: client,
		presign: func(ctx context.Context, in *s3.PutObjectInput, ttl time.Duration) (string, error) {
			req, err := presigner.PresignPutObject(ctx, in, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket:     cfg.Bucket,
		ttl:        ttl,
		publicBase: publicBase,
		now:        time.Now,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage.EnsureBucket: head: %w", err)
	}

	log.Info().Str("component", "storage").Str("bucket", s.bucket).Msg("creating bucket")
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage.EnsureBucket: create: %w", err)
	}

	return nil
}

// PresignUpload returns a PUT URL for key restricted to contentType.
func (s *S3) PresignUpload(ctx context.Context, key, contentType string) (*Upload, error) {
	if key == "" {
		return nil, errors.New("storage.PresignUpload: key is required")
	}

	u, err := s.presign(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("storage.PresignUpload: %w", err)
	}

	return &Upload{
		Key:       key,
		UploadURL: u,
		PublicURL: s.PublicURL(key),
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}

func (s *S3) PublicURL(key string) string {
	return s.publicBase + "/" + strings.TrimLeft(key, "/")
}
