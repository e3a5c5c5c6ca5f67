package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/matzehuels/tractstory/pkg/cache"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

// Published locations of the two tables.
const (
	DefaultTractsURL = "https://raw.githubusercontent.com/tblainek/st-louis/master/data/dataset.csv"
	DefaultYearsURL  = "https://raw.githubusercontent.com/tblainek/st-louis/master/data/populationchange.csv"
)

// maxBodySize caps a fetched table. The published tract table is well under 1 MiB.
const maxBodySize = 64 << 20

// Source names where the two tables live. Each location is an http(s) URL,
// an s3://bucket/key reference, or a local path.
type Source struct {
	Tracts string `toml:"tracts" json:"tracts"`
	Years  string `toml:"years" json:"years"`
}

// DefaultSource returns the published GitHub locations.
func DefaultSource() Source {
	return Source{Tracts: DefaultTractsURL, Years: DefaultYearsURL}
}

// Validate checks both locations.
func (s Source) Validate() error {
	if err := tserrors.ValidateSource(s.Tracts); err != nil {
		return err
	}
	return tserrors.ValidateSource(s.Years)
}

// Local reports whether both tables are local files (and can be watched).
func (s Source) Local() bool {
	return kindOf(s.Tracts) == kindFile && kindOf(s.Years) == kindFile
}

type sourceKind int

const (
	kindFile sourceKind = iota
	kindHTTP
	kindS3
)

func kindOf(loc string) sourceKind {
	switch {
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return kindHTTP
	case strings.HasPrefix(loc, "s3://"):
		return kindS3
	default:
		return kindFile
	}
}

// localPath strips a file:// prefix.
func localPath(loc string) string {
	if strings.HasPrefix(loc, "file://") {
		if u, err := url.Parse(loc); err == nil {
			return u.Path
		}
	}
	return loc
}

// S3API is the subset of the S3 client used for fetching tables.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client built for s3:// sources.
type S3Config struct {
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"` // optional, for S3-compatible stores such as MinIO
	PathStyle bool   `toml:"path_style"`
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func fetchHTTP(ctx context.Context, client *http.Client, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, loc)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, cache.Retryable(fmt.Errorf("%w: %s returned %d", cache.ErrNetwork, loc, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s returned %d", loc, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, cache.Retryable(fmt.Errorf("%w: read body: %v", cache.ErrNetwork, err))
	}
	return body, nil
}

func fetchS3(ctx context.Context, client S3API, loc string) ([]byte, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return nil, err
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, loc)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, maxBodySize))
}

func fetchFile(loc string) ([]byte, error) {
	path := localPath(loc)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, tserrors.Wrap(tserrors.ErrCodeFileNotFound, err, "dataset file %s", path)
	}
	return data, err
}
