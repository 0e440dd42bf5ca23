package s3

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type Settings struct {
	Bucket  string
	Prefix  string
	Profile string
	Region  string
}

// Mirror copies extracted report files to a bucket.
type Mirror interface {
	Upload(ctx context.Context, requestID, localPath string) (string, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Mirror struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewMirror loads the shared AWS configuration of settings.Profile.
func NewMirror(ctx context.Context, settings Settings) (Mirror, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if settings.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(settings.Profile))
	}
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newMirror(s3.NewFromConfig(cfg), settings), nil
}

func newMirror(client putObjectAPI, settings Settings) *s3Mirror {
	return &s3Mirror{
		client: client,
		bucket: settings.Bucket,
		prefix: strings.Trim(settings.Prefix, "/"),
	}
}

func (m *s3Mirror) Upload(ctx context.Context, requestID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(m.prefix, requestID, filepath.Base(localPath))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3 (bucket %s, key %s): %w", m.bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", m.bucket, key)
	zerolog.Ctx(ctx).Info().Str("uri", uri).Msg("report mirrored")
	return uri, nil
}
