// Package archive copies finalized inventory directories to an S3 compatible
// bucket. Archiving is best effort: callers report failures as warnings.
package archive

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
)

// Uploader is the subset of the S3 client used by the archiver.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the bucket settings. Credentials fall back to the default AWS
// chain when no static key is given.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string

	// HTTPClient replaces the transport, mostly for tests.
	HTTPClient *http.Client
}

// Archiver uploads directories.
type Archiver struct {
	client Uploader
	bucket string
	prefix string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, &errors.ValidationError{Field: "archive.bucket", Message: "cannot be empty"}
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewConfigError("archive", "loading AWS configuration", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Uploader, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of a file of an archived directory.
func (a *Archiver) Key(dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	key := path.Join(filepath.Base(dir), filepath.ToSlash(rel))
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// Archive uploads every regular file below dir and returns the keys written.
// It stops at the first failure.
func (a *Archiver) Archive(ctx context.Context, dir string) ([]string, error) {
	logger := logging.FromContext(ctx)
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		key := a.Key(dir, p)
		if err := a.put(ctx, key, p); err != nil {
			return errors.WrapResource("upload", "object", key, err)
		}
		keys = append(keys, key)
		logger.Debug().Str("key", key).Msg("Archived file")
		return nil
	})
	if err != nil {
		return keys, err
	}
	logger.Info().Str("bucket", a.bucket).Int("files", len(keys)).Msg("Inventory archived")
	return keys, nil
}

func (a *Archiver) put(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	in := &s3.PutObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key), Body: f}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	_, err = a.client.PutObject(ctx, in)
	return err
}
