package scheduler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/campsight/segmentation/repository"
	"github.com/redis/go-redis/v9"
)

// CorpusChangeChannel is the Redis pub/sub channel the reservation system
// publishes guest corpus changes on.
const CorpusChangeChannel = "segmentation:corpus-changed"

// CorpusChangeEvent is the payload published when guests are added, removed,
// or mutated. CampgroundID is nil for organization-wide imports.
type CorpusChangeEvent struct {
	OrganizationID uint  `json:"organization_id"`
	CampgroundID   *uint `json:"campground_id,omitempty"`
	Version        int64 `json:"version"`
}

// CorpusListener subscribes to corpus change signals and flags affected
// segments stale, then kicks the recount worker so counts converge quickly
// instead of waiting for the next sweep.
type CorpusListener struct {
	client      *redis.Client
	segmentRepo repository.SegmentRepository
	worker      *RecountWorker
	logger      *log.Logger
}

// NewCorpusListener creates the corpus change subscriber
func NewCorpusListener(client *redis.Client, segmentRepo repository.SegmentRepository, worker *RecountWorker, logger *log.Logger) *CorpusListener {
	if logger == nil {
		logger = log.Default()
	}
	return &CorpusListener{
		client:      client,
		segmentRepo: segmentRepo,
		worker:      worker,
		logger:      logger,
	}
}

// Start subscribes in a background goroutine and returns a stop function
func (l *CorpusListener) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	sub := l.client.Subscribe(ctx, CorpusChangeChannel)

	go func() {
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				l.handleMessage(ctx, msg.Payload)
			}
		}
	}()

	return cancel
}

func (l *CorpusListener) handleMessage(ctx context.Context, payload string) {
	var event CorpusChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.Printf("corpus change payload malformed: %v", err)
		return
	}
	if event.OrganizationID == 0 {
		l.logger.Printf("corpus change missing organization, dropping")
		return
	}

	affected, err := l.segmentRepo.MarkCountStale(ctx, event.OrganizationID, event.CampgroundID)
	if err != nil {
		// Staleness converges through the sweep even if this write failed.
		l.logger.Printf("failed to mark segments stale for organization %d (corpus version %d): %v", event.OrganizationID, event.Version, err)
		return
	}
	if affected == 0 {
		return
	}

	l.logger.Printf("corpus change for organization %d (corpus version %d) staled %d segments", event.OrganizationID, event.Version, affected)
	if l.worker != nil {
		l.worker.sweepStale(ctx)
	}
}
