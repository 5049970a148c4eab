package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/logging"
)

const s3Scheme = "s3://"

// ObjectGetter is the part of the S3 client the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads spreadsheets addressed as s3://bucket/key. The AWS
// client is created on first use so commands that never touch S3 do not
// need credentials.
type S3Fetcher struct {
	cfg config.SourceConfig

	once   sync.Once
	client ObjectGetter
	err    error
}

// NewS3Fetcher creates a fetcher using the default AWS credential chain.
func NewS3Fetcher(cfg config.SourceConfig) *S3Fetcher {
	return &S3Fetcher{cfg: cfg}
}

// NewS3FetcherWithClient creates a fetcher around an existing client.
func NewS3FetcherWithClient(client ObjectGetter) *S3Fetcher {
	f := &S3Fetcher{client: client}
	f.once.Do(func() {})
	return f
}

func (f *S3Fetcher) getClient(ctx context.Context) (ObjectGetter, error) {
	f.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if f.cfg.S3Region != "" {
			opts = append(opts, awsconfig.WithRegion(f.cfg.S3Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			f.err = fmt.Errorf("load AWS config: %w", err)
			return
		}

		var s3Opts []func(*s3.Options)
		if f.cfg.S3Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(f.cfg.S3Endpoint)
			})
		}
		if f.cfg.S3UsePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		f.client = s3.NewFromConfig(awsCfg, s3Opts...)
	})
	return f.client, f.err
}

// IsS3Path reports whether p is an s3:// URL.
func IsS3Path(p string) bool {
	return strings.HasPrefix(strings.ToLower(p), s3Scheme)
}

// ParseS3Path splits s3://bucket/key.
func ParseS3Path(p string) (bucket, key string, err error) {
	if !IsS3Path(p) {
		return "", "", fmt.Errorf("not an s3 path: %q", p)
	}
	rest := p[len(s3Scheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 path %q: want s3://bucket/key", p)
	}
	return bucket, key, nil
}

// Fetch downloads the object into memory. Objects larger than maxSize
// (when > 0) are rejected before the body is read.
func (f *S3Fetcher) Fetch(ctx context.Context, p string, maxSize int64) (*File, error) {
	bucket, key, err := ParseS3Path(p)
	if err != nil {
		return nil, err
	}
	client, err := f.getClient(ctx)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("fetching s3 object", "bucket", bucket, "key", key)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("read sheet: s3 object %s not found", p)
		}
		return nil, fmt.Errorf("read sheet: get s3 object %s: %w", p, err)
	}
	defer out.Body.Close()

	name := path.Base(key)
	size := aws.ToInt64(out.ContentLength)
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, size, maxSize)
	}

	data, err := io.ReadAll(&sizeLimiter{r: out.Body, max: maxSize, name: name})
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read sheet: download %s: %w", p, err)
	}
	return BytesFile(name, data), nil
}
