package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSegmentRepo backs the worker and listener tests with a single
// in-memory segment, recording the last bulk-staling call it received.
type stubSegmentRepo struct {
	mu      sync.Mutex
	segment *models.Segment

	staledOrganizationID uint
	staledCampgroundID   *uint
}

func (r *stubSegmentRepo) Save(ctx context.Context, segment *models.Segment) error { return nil }

func (r *stubSegmentRepo) ByID(ctx context.Context, id uint) (*models.Segment, error) {
	return nil, nil
}

func (r *stubSegmentRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.segment == nil || r.segment.UUID != id {
		return nil, nil
	}
	clone := *r.segment
	return &clone, nil
}

func (r *stubSegmentRepo) ListVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	return nil, nil
}

func (r *stubSegmentRepo) CountVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter) (int64, error) {
	return 0, nil
}

func (r *stubSegmentRepo) UpdateDefinition(ctx context.Context, segment *models.Segment, expectedVersion uint, criteriaChanged bool) error {
	return nil
}

func (r *stubSegmentRepo) SetStatus(ctx context.Context, id uint, status models.SegmentStatus) error {
	return nil
}

func (r *stubSegmentRepo) ListStale(ctx context.Context, limit int) ([]*models.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.segment == nil || !r.segment.CountStale {
		return nil, nil
	}
	clone := *r.segment
	return []*models.Segment{&clone}, nil
}

func (r *stubSegmentRepo) ApplyMatchResult(ctx context.Context, result *matching.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := result.GuestCount
	r.segment.GuestCount = &count
	r.segment.CountStale = false
	r.segment.CorpusVersion = &result.CorpusVersion
	return nil
}

func (r *stubSegmentRepo) MarkStale(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.segment != nil && r.segment.ID == id {
		r.segment.CountStale = true
	}
	return nil
}

func (r *stubSegmentRepo) MarkCountStale(ctx context.Context, organizationID uint, campgroundID *uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staledOrganizationID = organizationID
	r.staledCampgroundID = campgroundID
	if r.segment == nil || r.segment.CountStale {
		return 0, nil
	}
	r.segment.CountStale = true
	return 1, nil
}

func (r *stubSegmentRepo) snapshot() models.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.segment
}

// stubCorpus serves a fixed guest slice regardless of binding.
type stubCorpus struct {
	guests []*models.Guest
}

func (c *stubCorpus) Size(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	return int64(len(c.guests)), nil
}

func (c *stubCorpus) Version(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	return 1, nil
}

func (c *stubCorpus) Stream(ctx context.Context, binding scope.CorpusBinding, batchSize int, fn func(guests []*models.Guest) error) error {
	return fn(c.guests)
}

func staleSegment() *models.Segment {
	return &models.Segment{
		ID:             1,
		UUID:           uuid.New(),
		Name:           "Stale counts",
		Scope:          models.SegmentScopeOrganization,
		OrganizationID: utils.ToPtr(uint(10)),
		Criteria: models.CriteriaList{
			{Type: "has_pets", Operator: "equals", Value: models.CriterionValue{Kind: models.CriterionValueBool, Bool: true}},
		},
		Status:     models.SegmentStatusActive,
		CountStale: true,
	}
}

func waitForFreshCount(t *testing.T, repo *stubSegmentRepo) models.Segment {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if seg := repo.snapshot(); !seg.CountStale {
			return seg
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("segment count never became fresh")
	return models.Segment{}
}

func TestEnqueueDoesNotBlockWhenFull(t *testing.T) {
	worker := NewRecountWorker(&stubSegmentRepo{}, nil, nil, 1, time.Hour)

	assert.True(t, worker.Enqueue(uuid.New()))
	assert.False(t, worker.Enqueue(uuid.New()))
}

func TestWorkerProcessesEnqueuedSegment(t *testing.T) {
	seg := staleSegment()
	id := seg.UUID
	repo := &stubSegmentRepo{segment: seg}
	corpus := &stubCorpus{guests: []*models.Guest{
		{ID: 1, HasPets: true},
		{ID: 2, HasPets: false},
		{ID: 3, HasPets: true},
	}}
	worker := NewRecountWorker(repo, matching.NewEngine(corpus), nil, 8, time.Hour)

	stop := worker.Start(context.Background())
	defer stop()

	require.True(t, worker.Enqueue(id))

	fresh := waitForFreshCount(t, repo)
	require.NotNil(t, fresh.GuestCount)
	assert.Equal(t, int64(2), *fresh.GuestCount)
}

func TestSweepPicksUpStaleSegments(t *testing.T) {
	repo := &stubSegmentRepo{segment: staleSegment()}
	corpus := &stubCorpus{guests: []*models.Guest{{ID: 1, HasPets: true}}}
	worker := NewRecountWorker(repo, matching.NewEngine(corpus), nil, 8, 10*time.Millisecond)

	stop := worker.Start(context.Background())
	defer stop()

	seg := waitForFreshCount(t, repo)
	require.NotNil(t, seg.GuestCount)
	assert.Equal(t, int64(1), *seg.GuestCount)
}

func TestWorkerSkipsArchivedSegments(t *testing.T) {
	seg := staleSegment()
	seg.Status = models.SegmentStatusArchived
	id := seg.UUID
	repo := &stubSegmentRepo{segment: seg}
	worker := NewRecountWorker(repo, matching.NewEngine(&stubCorpus{}), nil, 8, time.Hour)

	stop := worker.Start(context.Background())
	defer stop()

	require.True(t, worker.Enqueue(id))
	time.Sleep(50 * time.Millisecond)

	after := repo.snapshot()
	assert.True(t, after.CountStale)
	assert.Nil(t, after.GuestCount)
}
