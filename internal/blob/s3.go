package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var cacheControl = aws.String("public, max-age=15552000")

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL, when set, replaces the upload location in returned URLs.
	PublicURL string
}

// S3 uploads to an S3-compatible bucket.
type S3 struct {
	cfg      S3Config
	uploader *s3manager.Uploader
}

func NewS3(cfg S3Config) (*S3, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &S3{cfg: cfg, uploader: s3manager.NewUploader(sess)}, nil
}

func (s *S3) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         r,
		ACL:          aws.String("public-read"),
		ContentType:  aws.String(contentType),
		CacheControl: cacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + key, nil
	}
	return result.Location, nil
}
