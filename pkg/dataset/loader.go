package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/tractstory/pkg/cache"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/observability"
)

// DefaultFetchTimeout bounds one fetch of one table, retries included.
const DefaultFetchTimeout = 30 * time.Second

// Loader fetches, caches, parses, and validates the two tables.
type Loader struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Logger  *log.Logger
	Backoff cache.Backoff

	// Client is used for http(s) sources; http.DefaultClient when nil.
	Client *http.Client

	// S3 serves s3:// sources. When nil a client is built from S3Config on
	// first use.
	S3       S3API
	S3Config S3Config

	// Timeout bounds each table fetch; DefaultFetchTimeout when zero.
	Timeout time.Duration

	// Strict turns a summary mismatch into a load failure instead of a warning.
	Strict    bool
	Tolerance float64

	s3Mu sync.Mutex
}

// NewLoader returns a loader with the default backoff and tolerance.
// A nil cache disables caching of remote tables.
func NewLoader(c cache.Cache, logger *log.Logger) *Loader {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		Cache:     c,
		Keyer:     cache.NewDefaultKeyer(),
		Logger:    logger,
		Backoff:   cache.DefaultBackoff,
		Timeout:   DefaultFetchTimeout,
		Tolerance: DefaultTolerance,
	}
}

// Load fetches both tables concurrently and builds a Dataset. Any fetch
// failure is reported as DATASET_UNAVAILABLE; nothing is rendered from a
// partial load.
func (l *Loader) Load(ctx context.Context, src Source) (*Dataset, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Pipeline().OnLoadStart(ctx, src.Tracts)

	var tractsRaw, yearsRaw []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tractsRaw, err = l.fetch(gctx, src.Tracts)
		return err
	})
	g.Go(func() (err error) {
		yearsRaw, err = l.fetch(gctx, src.Years)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.Pipeline().OnLoadComplete(ctx, src.Tracts, 0, time.Since(start), err)
		return nil, err
	}

	ds, err := Parse(tractsRaw, yearsRaw)
	if err == nil {
		err = l.checkSummaries(ds)
	}
	if err != nil {
		observability.Pipeline().OnLoadComplete(ctx, src.Tracts, 0, time.Since(start), err)
		return nil, err
	}

	l.Logger.Info("dataset loaded",
		"tracts", len(ds.Tracts),
		"years", len(ds.Years),
		"hash", ds.Hash[:12],
		"elapsed", time.Since(start).Round(time.Millisecond))
	if !ds.Report.Clean() {
		l.Logger.Warn("dataset has unreadable cells",
			"empty", ds.Report.EmptyCells,
			"invalid", ds.Report.InvalidCells,
			"derived_buckets", ds.Report.DerivedBuckets,
			"skipped_rows", ds.Report.SkippedRows)
	}
	observability.Pipeline().OnLoadComplete(ctx, src.Tracts, len(ds.Tracts), time.Since(start), nil)
	return ds, nil
}

// Parse builds a Dataset from the raw bytes of both tables.
func Parse(tractsRaw, yearsRaw []byte) (*Dataset, error) {
	tracts, report, err := ParseTracts(bytes.NewReader(tractsRaw))
	if err != nil {
		return nil, err
	}
	years, err := ParseYears(bytes.NewReader(yearsRaw))
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Tracts:    tracts,
		Years:     years,
		Summaries: Summarize(tracts),
		Hash:      cache.HashAll(tractsRaw, yearsRaw),
		Report:    report,
	}, nil
}

func (l *Loader) checkSummaries(ds *Dataset) error {
	err := ValidateSummaries(ds.Summaries, l.Tolerance)
	if err == nil {
		return nil
	}
	if l.Strict {
		return err
	}
	l.Logger.Warn("derived summaries differ from published figures", "err", err)
	return nil
}

// fetch returns the bytes at loc. Remote tables go through the cache;
// local files are always read fresh so edits are picked up on reload.
func (l *Loader) fetch(ctx context.Context, loc string) ([]byte, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	kind := kindOf(loc)
	if kind == kindFile {
		data, err := fetchFile(loc)
		if err != nil {
			return nil, unavailable(err, loc)
		}
		return data, nil
	}

	key := l.Keyer.DatasetKey(loc)
	if data, ok, err := l.Cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "dataset")
		l.Logger.Debug("dataset cache hit", "source", loc)
		return data, nil
	} else if err != nil {
		l.Logger.Warn("dataset cache read failed", "source", loc, "err", err)
	}
	observability.Cache().OnCacheMiss(ctx, "dataset")

	var data []byte
	err := l.Backoff.Retry(ctx, func() (err error) {
		switch kind {
		case kindS3:
			var client S3API
			if client, err = l.s3Client(ctx); err == nil {
				data, err = fetchS3(ctx, client, loc)
			}
		default:
			data, err = l.fetchHTTP(ctx, loc)
		}
		if err != nil && cache.IsRetryable(err) {
			l.Logger.Debug("retrying fetch", "source", loc, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, unavailable(err, loc)
	}

	if err := l.Cache.Set(ctx, key, data, cache.TTLDataset); err != nil {
		l.Logger.Warn("dataset cache write failed", "source", loc, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "dataset", len(data))
	}
	return data, nil
}

func (l *Loader) fetchHTTP(ctx context.Context, loc string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	u, _ := url.Parse(loc)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, u.Host, u.Path)
	start := time.Now()
	data, err := fetchHTTP(ctx, client, loc)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, u.Host, u.Path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, http.MethodGet, u.Host, u.Path, http.StatusOK, time.Since(start))
	return data, nil
}

func (l *Loader) s3Client(ctx context.Context) (S3API, error) {
	l.s3Mu.Lock()
	defer l.s3Mu.Unlock()
	if l.S3 == nil {
		client, err := NewS3Client(ctx, l.S3Config)
		if err != nil {
			return nil, err
		}
		l.S3 = client
	}
	return l.S3, nil
}

func unavailable(err error, loc string) error {
	if tserrors.GetCode(err) == tserrors.ErrCodeDatasetUnavailable {
		return err
	}
	return tserrors.Wrap(tserrors.ErrCodeDatasetUnavailable, err, "cannot load %s", loc)
}
