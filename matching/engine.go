package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
)

// Matching engine error constants
var (
	ErrCorpusUnavailable = errors.New("guest corpus is unavailable")
	ErrMatchTimeout      = errors.New("matching run exceeded its time budget")
)

// Corpus abstracts the guest record store the engine reads. Implementations
// must treat the corpus as read-only; the engine never mutates guests.
type Corpus interface {
	// Size returns the number of guests in the binding's corpus
	Size(ctx context.Context, binding scope.CorpusBinding) (int64, error)

	// Version returns a monotonic marker of the corpus snapshot, used for
	// staleness detection and last-writer-wins on cached counts
	Version(ctx context.Context, binding scope.CorpusBinding) (int64, error)

	// Stream iterates the corpus in batches, calling fn for each batch until
	// the corpus is exhausted, fn returns an error, or ctx is cancelled
	Stream(ctx context.Context, binding scope.CorpusBinding, batchSize int, fn func(guests []*models.Guest) error) error
}

// MatchResult is the outcome of one matching run. It is ephemeral; only the
// count, version, and timestamp are cached back onto the segment record.
type MatchResult struct {
	SegmentUUID     uuid.UUID  `json:"segment_uuid"`
	SegmentVersion  uint       `json:"segment_version"`
	GuestCount      int64      `json:"guest_count"`
	MatchedGuestIDs []uint     `json:"matched_guest_ids,omitempty"`
	ComputedAt      time.Time  `json:"computed_at"`
	CorpusVersion   int64      `json:"corpus_version"`
}

// Engine evaluates segment criteria against a bound guest corpus. It is
// stateless; concurrent runs for different segments share one instance.
type Engine struct {
	corpus        Corpus
	timeBudget    time.Duration
	retryAttempts int
	retryBackoff  time.Duration
	batchSize     int
}

// Option configures an Engine
type Option func(*Engine)

// WithTimeBudget sets the wall-clock budget for one matching run
func WithTimeBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeBudget = d
		}
	}
}

// WithRetryPolicy sets the bounded retry behavior for corpus reads
func WithRetryPolicy(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.retryAttempts = attempts
		}
		if backoff > 0 {
			e.retryBackoff = backoff
		}
	}
}

// WithBatchSize sets the number of guests fetched per corpus page
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEngine creates a matching engine over the given corpus
func NewEngine(corpus Corpus, opts ...Option) *Engine {
	e := &Engine{
		corpus:        corpus,
		timeBudget:    utils.DefaultMatchTimeBudget,
		retryAttempts: utils.DefaultCorpusRetryAttempts,
		retryBackoff:  utils.DefaultCorpusRetryBackoff,
		batchSize:     utils.CorpusBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CorpusSize returns the size of the corpus the segment is bound to. Used by
// the lifecycle flow to decide between synchronous and asynchronous runs.
func (e *Engine) CorpusSize(ctx context.Context, seg *models.Segment) (int64, error) {
	binding, err := scope.CorpusBindingFor(seg)
	if err != nil {
		return 0, err
	}

	var size int64
	err = e.withRetry(ctx, func() error {
		var innerErr error
		size, innerErr = e.corpus.Size(ctx, binding)
		return innerErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
	}
	return size, nil
}

// Match evaluates the segment's criteria against its bound corpus in a
// single streaming pass. The segment's edit version is captured into the
// result so the write-back can abort if the definition moved underneath the
// run. When collectIDs is false only the count is accumulated.
func (e *Engine) Match(ctx context.Context, seg *models.Segment, collectIDs bool) (*MatchResult, error) {
	binding, err := scope.CorpusBindingFor(seg)
	if err != nil {
		return nil, err
	}

	var corpusVersion int64
	err = e.withRetry(ctx, func() error {
		var innerErr error
		corpusVersion, innerErr = e.corpus.Version(ctx, binding)
		return innerErr
	})
	if err != nil {
		matchRunsTotal.WithLabelValues(outcomeCorpusError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
	}

	preds := CompileCriteria(seg.Criteria)

	runCtx, cancel := context.WithTimeout(ctx, e.timeBudget)
	defer cancel()

	start := time.Now()
	result := &MatchResult{
		SegmentUUID:    seg.UUID,
		SegmentVersion: seg.Version,
		CorpusVersion:  corpusVersion,
	}

	var evaluated int64
	err = e.corpus.Stream(runCtx, binding, e.batchSize, func(guests []*models.Guest) error {
		for _, g := range guests {
			evaluated++
			if !MatchesAll(preds, g) {
				continue
			}
			result.GuestCount++
			if collectIDs {
				result.MatchedGuestIDs = append(result.MatchedGuestIDs, g.ID)
			}
		}
		return nil
	})
	guestsEvaluatedTotal.Add(float64(evaluated))
	matchRunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// A run that ran out of budget discards partial results; the
		// segment keeps its last good count flagged stale.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			matchRunsTotal.WithLabelValues(outcomeTimeout).Inc()
			return nil, ErrMatchTimeout
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			matchRunsTotal.WithLabelValues(outcomeCancelled).Inc()
			return nil, err
		}
		matchRunsTotal.WithLabelValues(outcomeCorpusError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
	}

	result.ComputedAt = utils.UTCNow()
	matchRunsTotal.WithLabelValues(outcomeOK).Inc()
	return result, nil
}

// withRetry runs fn with bounded exponential backoff. Context cancellation
// aborts immediately; only transient corpus errors are retried.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := e.retryBackoff
	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return lastErr
}
