package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/NarrativeCues/core/cas"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/cache"
	"github.com/FocuswithJustin/NarrativeCues/internal/logging"
)

// Failure reasons reported in AnalysisError.
const (
	ReasonTimeout   = "timeout"
	ReasonCall      = "call failed"
	ReasonEmpty     = "empty response"
	ReasonMalformed = "malformed response"
	ReasonCanceled  = "canceled"
)

// Defaults for NewClient.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultRetries  = 2
	DefaultBackoff  = 2 * time.Second
	DefaultCacheTTL = 10 * time.Minute
)

// Result is a successful analysis.
type Result struct {
	RequestID string        `json:"request_id"`
	Reference string        `json:"reference,omitempty"`
	Raw       string        `json:"raw"`
	Cues      []AnalyzedCue `json:"cues"`
	Attempts  int           `json:"attempts"`
	Cached    bool          `json:"cached"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets how many times a failed attempt is repeated.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the base delay between attempts. Attempt n waits n*d.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithCacheTTL sets how long successful results are reused. Zero disables
// caching.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache.New[string, Result](ttl)
	}
}

// WithResultStore keeps results in s as well as in memory, so later
// processes reuse them until the cache TTL runs out.
func WithResultStore(s ResultStore) ClientOption {
	return func(c *Client) {
		c.results = s
	}
}

// ResultStore persists results by cache key.
type ResultStore interface {
	// LoadResult returns the result stored under key unless it expired
	// at or before now.
	LoadResult(ctx context.Context, key string, now time.Time) (Result, bool, error)
	SaveResult(ctx context.Context, key string, r Result, expires time.Time) error
	DeleteResult(ctx context.Context, key string) error
}

// Client wraps an Analyzer with per-attempt timeout, bounded retry and a
// result cache keyed by request content.
type Client struct {
	analyzer Analyzer
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	cache    *cache.TTLCache[string, Result]
	results  ResultStore
	newID    func() string
	now      func() time.Time
}

// NewClient returns a Client around a.
func NewClient(a Analyzer, opts ...ClientOption) *Client {
	c := &Client{
		analyzer: a,
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		backoff:  DefaultBackoff,
		cache:    cache.New[string, Result](DefaultCacheTTL),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends text to the analyzer and extracts its cues. Identical
// text and reference within the cache TTL reuse the earlier result.
func (c *Client) Analyze(ctx context.Context, text, reference string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidation("text", "nothing to analyze")
	}

	key := cacheKey(text, reference)
	if r, ok := c.lookup(ctx, key); ok {
		return &r, nil
	}

	req := Request{ID: c.newID(), Text: text, Reference: reference}
	ctx = logging.WithRequestID(ctx, req.ID)

	var (
		reason  string
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= c.retries+1; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*c.backoff); err != nil {
				reason, lastErr = interrupted(err), err
				break
			}
		}

		made++
		logging.AnalysisAttempt(ctx, attempt, len(text))
		raw, found, r, err := c.attempt(ctx, req)
		if err == nil {
			res := Result{
				RequestID: req.ID,
				Reference: reference,
				Raw:       raw,
				Cues:      found,
				Attempts:  attempt,
			}
			c.remember(ctx, key, res)
			return &res, nil
		}
		reason, lastErr = r, err
		if ctx.Err() != nil {
			reason = interrupted(ctx.Err())
			break
		}
	}

	aerr := apperrors.NewAnalysis(req.ID, reason, lastErr)
	aerr.Attempts = made
	logging.AnalysisFailed(ctx, reason, lastErr, "attempts", made)
	return nil, aerr
}

// Forget drops any cached result for text and reference, in memory and in
// the result store.
func (c *Client) Forget(ctx context.Context, text, reference string) error {
	key := cacheKey(text, reference)
	c.cache.Delete(key)
	if c.results == nil {
		return nil
	}
	return c.results.DeleteResult(ctx, key)
}

func (c *Client) lookup(ctx context.Context, key string) (Result, bool) {
	if r, ok := c.cache.Get(key); ok {
		logging.DebugContext(ctx, "analysis_cache_hit", "tier", "memory", "cached_request_id", r.RequestID)
		r.Cached = true
		return r, true
	}
	if c.results == nil || c.cache.TTL() <= 0 {
		return Result{}, false
	}
	r, ok, err := c.results.LoadResult(ctx, key, c.now())
	if err != nil {
		// A broken store only costs a call to the analyzer.
		logging.WarnContext(ctx, "analysis_cache_read_failed", "error", err.Error())
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	c.cache.Set(key, r)
	logging.InfoContext(ctx, "analysis_cache_hit", "tier", "store", "cached_request_id", r.RequestID)
	r.Cached = true
	return r, true
}

func (c *Client) remember(ctx context.Context, key string, res Result) {
	ttl := c.cache.TTL()
	if ttl <= 0 {
		return
	}
	c.cache.Purge()
	c.cache.Set(key, res)
	if c.results == nil {
		return
	}
	if err := c.results.SaveResult(ctx, key, res, c.now().Add(ttl)); err != nil {
		logging.WarnContext(ctx, "analysis_cache_write_failed", "error", err.Error())
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (raw string, found []AnalyzedCue, reason string, err error) {
	actx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err = c.analyzer.Analyze(actx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", nil, ReasonTimeout, err
		}
		return "", nil, ReasonCall, err
	}
	if strings.TrimSpace(raw) == "" {
		return "", nil, ReasonEmpty, fmt.Errorf("analyzer returned no content")
	}
	found, err = ExtractCues(raw)
	if err != nil {
		return "", nil, ReasonMalformed, err
	}
	return raw, found, "", nil
}

// interrupted names a failure caused by the caller's context.
func interrupted(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCanceled
}

func cacheKey(text, reference string) string {
	return cas.Hash([]byte(reference + "\x00" + text))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
