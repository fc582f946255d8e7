// Package s3 publishes converted media to object storage under stable,
// publicly readable keys.
package s3

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
	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/convert"
)

// ObjectPutter is the slice of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client ObjectPutter
	bucket string
	urlFor func(key string) string
}

func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithBaseEndpoint(cfg.Endpoint),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.Endpoint != "" })
	return NewUploaderWithClient(client, cfg), nil
}

// NewUploaderWithClient wires an explicit client, used by tests.
func NewUploaderWithClient(client ObjectPutter, cfg config.S3Config) *Uploader {
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		urlFor: publicURLFunc(cfg),
	}
}

// Key returns the stable object key for a conversion. Re-running the same
// video overwrites the previous object rather than accumulating copies.
func Key(videoID, contentType string) string {
	return fmt.Sprintf("episodes/%s.%s", videoID, convert.FileExt(contentType))
}

// Upload stores the media publicly readable and returns its URL.
func (u *Uploader) Upload(ctx context.Context, videoID, contentType string, body io.Reader) (string, error) {
	key := Key(videoID, contentType)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(convert.MIMEType(contentType)),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", common.NewStepError("upload", videoID, 0, err)
	}

	return u.urlFor(key), nil
}

func publicURLFunc(cfg config.S3Config) func(string) string {
	switch {
	case cfg.BaseURL != "":
		base := strings.TrimRight(cfg.BaseURL, "/")
		return func(key string) string { return base + "/" + key }
	case cfg.Endpoint != "":
		base := strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		return func(key string) string { return base + "/" + key }
	default:
		base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		return func(key string) string { return base + "/" + key }
	}
}
