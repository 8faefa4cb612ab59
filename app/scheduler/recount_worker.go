// Package scheduler contains the background workers that keep cached segment
// counts fresh without blocking the API request path.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultQueueSize     = 256
	defaultSweepInterval = 5 * time.Minute
	defaultSweepBatch    = 50
)

// RecountWorker consumes recount requests for segments whose corpus is too
// large to count inside a request. It also sweeps for stale counts on an
// interval so a dropped signal never leaves a count stale forever.
type RecountWorker struct {
	segmentRepo   repository.SegmentRepository
	engine        *matching.Engine
	logger        *log.Logger
	queue         chan uuid.UUID
	sweepInterval time.Duration
	group         singleflight.Group
}

// NewRecountWorker creates the background recount worker
func NewRecountWorker(segmentRepo repository.SegmentRepository, engine *matching.Engine, logger *log.Logger, queueSize int, sweepInterval time.Duration) *RecountWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if logger == nil {
		logger = log.Default()
	}

	return &RecountWorker{
		segmentRepo:   segmentRepo,
		engine:        engine,
		logger:        logger,
		queue:         make(chan uuid.UUID, queueSize),
		sweepInterval: sweepInterval,
	}
}

// Enqueue schedules a recount without blocking. Returns false when the queue
// is full; the periodic sweep will still pick the segment up via its stale
// flag, so a dropped enqueue is not a lost recount.
func (w *RecountWorker) Enqueue(segmentUUID uuid.UUID) bool {
	select {
	case w.queue <- segmentUUID:
		return true
	default:
		w.logger.Printf("recount queue full, deferring segment %s to sweep", segmentUUID)
		return false
	}
}

// Start launches the worker loops in background goroutines and returns a stop function
func (w *RecountWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case segmentUUID := <-w.queue:
				w.recount(ctx, segmentUUID)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweepStale(ctx)
			}
		}
	}()

	return cancel
}

// recount recomputes one segment's cached count. Concurrent requests for the
// same segment are collapsed into a single run.
func (w *RecountWorker) recount(ctx context.Context, segmentUUID uuid.UUID) {
	_, err, _ := w.group.Do(segmentUUID.String(), func() (any, error) {
		seg, err := w.segmentRepo.ByUUID(ctx, segmentUUID)
		if err != nil {
			return nil, err
		}
		if seg == nil || seg.IsArchived() || !seg.HasCorpus() {
			return nil, nil
		}

		result, err := w.engine.Match(ctx, seg, false)
		if err != nil {
			return nil, err
		}

		if err := w.segmentRepo.ApplyMatchResult(ctx, result); err != nil {
			if errors.Is(err, repository.ErrWriteSuperseded) {
				// A fresher run or a concurrent edit won; nothing to do.
				return nil, nil
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Printf("recount failed for segment %s: %v", segmentUUID, err)
	}
}

// sweepStale recounts segments whose cached count is flagged stale. This is
// the safety net behind both the queue and the corpus change signal.
func (w *RecountWorker) sweepStale(ctx context.Context) {
	segments, err := w.segmentRepo.ListStale(ctx, defaultSweepBatch)
	if err != nil {
		w.logger.Printf("stale sweep failed: %v", err)
		return
	}

	for _, seg := range segments {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.recount(ctx, seg.UUID)
	}
}
