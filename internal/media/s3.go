package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const defaultS3Region = "us-east-1"

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures one bucket lookup. An empty Region uses the SDK default region.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Resolver reads objects from an S3 compatible bucket.
type S3Resolver struct {
	name   string
	bucket string
	client s3GetObjectAPI
}

// NewS3Resolver loads AWS configuration and builds a resolver for cfg.Bucket.
func NewS3Resolver(ctx context.Context, cfg S3Config) (*S3Resolver, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("media/s3: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media/s3: load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3Resolver(bucket, region, s3.NewFromConfig(awsCfg, clientOpts...)), nil
}

func newS3Resolver(bucket, region string, client s3GetObjectAPI) *S3Resolver {
	return &S3Resolver{
		name:   "s3:" + bucket + "@" + region,
		bucket: bucket,
		client: client,
	}
}

func (r *S3Resolver) Name() string { return r.name }

// Resolve downloads the object at key p.
func (r *S3Resolver) Resolve(ctx context.Context, p string) (Object, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(p),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("media/s3: get %s/%s: %w", r.bucket, p, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize))
	if err != nil {
		return Object{}, fmt.Errorf("media/s3: read %s/%s: %w", r.bucket, p, err)
	}
	return Object{
		Body:        body,
		ContentType: pickContentType(aws.ToString(out.ContentType), p),
		Source:      r.name,
	}, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket", "AccessDenied":
			return true
		}
	}
	return false
}
