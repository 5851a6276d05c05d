package holdings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/config"
)

// ObjectStore opens a holdings file by its portfolio address
type ObjectStore interface {
	Open(ctx context.Context, address *url.URL) (io.ReadCloser, error)
}

// ParseAddress accepts s3://bucket/key and file://relative/path addresses
func ParseAddress(address string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return nil, fmt.Errorf("parse portfolio address %q: %w", address, err)
	}
	switch u.Scheme {
	case "s3":
		if u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return nil, fmt.Errorf("portfolio address %q needs a bucket and a key", address)
		}
	case "file":
		if u.Host == "" && strings.Trim(u.Path, "/") == "" {
			return nil, fmt.Errorf("portfolio address %q has no path", address)
		}
	default:
		return nil, fmt.Errorf("portfolio address %q: unsupported scheme %q", address, u.Scheme)
	}
	return u, nil
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads holdings files from S3. When bucket is set, addresses
// pointing at any other bucket are refused.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store loads AWS credentials from the default chain
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Holdings.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(awsCfg), bucket: cfg.Holdings.Bucket}, nil
}

// Open implements ObjectStore
func (s *S3Store) Open(ctx context.Context, address *url.URL) (io.ReadCloser, error) {
	if s.bucket != "" && address.Host != s.bucket {
		return nil, fmt.Errorf("bucket %q is not the configured holdings bucket", address.Host)
	}
	key := strings.TrimPrefix(address.Path, "/")
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(address.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("s3://%s/%s: %w", address.Host, key, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", address.Host, key, err)
	}
	return out.Body, nil
}

// FileStore reads holdings files below a local root directory
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Open implements ObjectStore; paths may not escape the root
func (f *FileStore) Open(_ context.Context, address *url.URL) (io.ReadCloser, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(address.Host+address.Path, "/")))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("portfolio address %q escapes the holdings directory", address.String())
	}

	file, err := os.Open(filepath.Join(f.root, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", address.String(), contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}
