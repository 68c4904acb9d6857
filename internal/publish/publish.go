// SPDX-License-Identifier: MPL-2.0

// Package publish uploads bundles to S3-compatible object storage.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	contentType = "application/zstd"
)

// ErrMissingBucket is returned when no bucket is configured.
var ErrMissingBucket = errors.New("publish bucket is required")

type (
	// Config locates the bucket and its credentials. Empty credentials fall
	// back to the default AWS credential chain.
	Config struct {
		Bucket string
		// Prefix is prepended to every object key.
		Prefix    string
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
		// UsePathStyle addresses buckets by path, as most S3-compatible
		// stores require.
		UsePathStyle bool
	}

	// ObjectPutter is the subset of the S3 client used by Publisher.
	ObjectPutter interface {
		PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	}

	// Publisher uploads bundles.
	Publisher struct {
		api ObjectPutter
		cfg Config
	}

	// Location is where a bundle was stored.
	Location struct {
		Bucket string
		Key    string
		SHA256 string
		Size   int64
	}
)

// String returns the s3:// URL of the object.
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// Validate checks that the configuration can address a bucket.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return ErrMissingBucket
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("publish access key and secret key must be set together")
	}
	return nil
}

// New returns a Publisher using api.
func New(api ObjectPutter, cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{api: api, cfg: cfg}, nil
}

// NewS3 builds a Publisher backed by the AWS SDK S3 client.
func NewS3(ctx context.Context, cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg)
}

// Key returns the object key of a bundle file.
func (p *Publisher) Key(bundlePath string) string {
	return path.Join(p.cfg.Prefix, filepath.Base(bundlePath))
}

// Publish uploads the bundle at bundlePath with a SHA-256 checksum the
// store verifies on receipt.
func (p *Publisher) Publish(ctx context.Context, bundlePath, runID string) (Location, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return Location{}, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Location{}, fmt.Errorf("hash bundle: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Location{}, fmt.Errorf("rewind bundle: %w", err)
	}
	sum := h.Sum(nil)

	loc := Location{
		Bucket: p.cfg.Bucket,
		Key:    p.Key(bundlePath),
		SHA256: hex.EncodeToString(sum),
		Size:   size,
	}
	metadata := map[string]string{"sha256": loc.SHA256}
	if runID != "" {
		metadata["run-id"] = runID
	}
	_, err = p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(loc.Bucket),
		Key:               aws.String(loc.Key),
		Body:              f,
		ContentLength:     aws.Int64(size),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(base64.StdEncoding.EncodeToString(sum)),
		Metadata:          metadata,
	})
	if err != nil {
		return Location{}, fmt.Errorf("upload %s: %w", loc, err)
	}
	return loc, nil
}
