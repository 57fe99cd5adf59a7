// Package s3store implements the object store interface on Amazon S3 and
// S3-compatible services.
//
// The Store wraps the AWS SDK v2 client with the small surface the transfer
// engine needs: listing under a prefix, streaming reads, writes with
// automatic multipart handling for large payloads, and object tagging.
package s3store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/colpal/dataeng-container-tools/objstore"
)

const (
	// defaultPartSize is the multipart chunk size for large uploads.
	defaultPartSize = 8 * 1024 * 1024

	// multipartThreshold is the payload size above which uploads switch from
	// a single PutObject to the multipart uploader. Payloads of unknown size
	// always go through the uploader.
	multipartThreshold = 100 * 1024 * 1024
)

// Config holds S3 client configuration. Use the functional options with New
// rather than filling this directly.
type Config struct {
	// Region is the AWS region ("" resolves from the default chain)
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services and
	// local testing
	Endpoint string

	// AccessKey and SecretKey select static credentials; when empty the
	// default credential chain applies
	AccessKey    string
	SecretKey    string
	SessionToken string

	// PathStyle forces path-style addressing, required by most
	// S3-compatible services
	PathStyle bool

	// Timeout bounds individual S3 HTTP calls (0 disables)
	Timeout time.Duration

	// PartSize is the multipart chunk size for large uploads
	PartSize int64

	// AWSConfig overrides default configuration loading entirely
	AWSConfig *aws.Config

	// Client overrides the constructed SDK client, for tests
	Client *s3.Client
}

// Option is a functional option for configuring the store.
type Option func(*Config)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Config) { c.Region = region }
}

// WithEndpoint sets a custom S3 endpoint URL. Useful for S3-compatible
// services or local testing with MinIO or LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithStaticCredentials sets explicit credentials instead of the default
// credential chain. The session token may be empty.
func WithStaticCredentials(accessKey, secretKey, sessionToken string) Option {
	return func(c *Config) {
		c.AccessKey = accessKey
		c.SecretKey = secretKey
		c.SessionToken = sessionToken
	}
}

// WithPathStyle forces path-style URLs instead of virtual-hosted style.
func WithPathStyle(pathStyle bool) Option {
	return func(c *Config) { c.PathStyle = pathStyle }
}

// WithTimeout bounds individual S3 HTTP calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithPartSize sets the multipart chunk size. Must be at least 5MB per the
// S3 multipart minimum; smaller values are ignored.
func WithPartSize(partSize int64) Option {
	return func(c *Config) {
		if partSize >= manager.MinUploadPartSize {
			c.PartSize = partSize
		}
	}
}

// WithAWSConfig provides a fully formed AWS configuration, bypassing the
// default loading behavior.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(c *Config) { c.AWSConfig = cfg }
}

// WithClient injects a prebuilt SDK client. Intended for tests.
func WithClient(client *s3.Client) Option {
	return func(c *Config) { c.Client = client }
}

// Store is an S3-backed object store. Safe for concurrent use.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	partSize int64
}

// Statically verify the interface contract.
var _ objstore.Store = (*Store)(nil)

// New creates a store using the default AWS credential chain, adjusted by
// the provided options.
//
// Example:
//
//	store, err := s3store.New(ctx,
//	    s3store.WithRegion("us-east-1"),
//	    s3store.WithPathStyle(true),
//	)
func New(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := &Config{PartSize: defaultPartSize}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Client != nil {
		return fromClient(cfg.Client, cfg.PartSize), nil
	}

	var awsCfg aws.Config
	var err error
	if cfg.AWSConfig != nil {
		awsCfg = *cfg.AWSConfig
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: load config: %w", err)
		}
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if cfg.Timeout > 0 {
		httpClient := &http.Client{Timeout: cfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return fromClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.PartSize), nil
}

func fromClient(client *s3.Client, partSize int64) *Store {
	if partSize < manager.MinUploadPartSize {
		partSize = defaultPartSize
	}
	return &Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		partSize: partSize,
	}
}

// List returns every object under the prefix, in lexicographic key order as
// delivered by S3. It follows pagination to exhaustion.
func (s *Store) List(ctx context.Context, container, prefix string) ([]objstore.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(container),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []objstore.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list %s/%s: %w", container, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, objstore.Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	return objects, nil
}

// Get opens the object for streaming reads. The caller owns the returned
// reader and must close it. The second return is the object size, or -1
// when the service did not report one.
func (s *Store) Get(ctx context.Context, container, key string) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("s3store: get %s/%s: %w", container, key, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// Put writes the object. Payloads above the multipart threshold, or of
// unknown size (size < 0), go through the multipart uploader; everything
// else is a single PutObject call.
func (s *Store) Put(ctx context.Context, container, key string, reader io.Reader, size int64, contentType string) error {
	if size < 0 || size > multipartThreshold {
		input := &s3.PutObjectInput{
			Bucket: aws.String(container),
			Key:    aws.String(key),
			Body:   reader,
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		if _, err := s.uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("s3store: put %s/%s: %w", container, key, err)
		}
		return nil
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3store: put %s/%s: %w", container, key, err)
	}
	return nil
}

// SetTags replaces the object's tag set. Tags are applied in sorted key
// order for deterministic requests.
func (s *Store) SetTags(ctx context.Context, container, key string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tagSet := make([]s3types.Tag, 0, len(keys))
	for _, k := range keys {
		tagSet = append(tagSet, s3types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(container),
		Key:     aws.String(key),
		Tagging: &s3types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return fmt.Errorf("s3store: tag %s/%s: %w", container, key, err)
	}
	return nil
}
