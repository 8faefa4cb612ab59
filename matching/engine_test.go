package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCorpus is an in-memory Corpus backed by a guest slice.
type fakeCorpus struct {
	guests  []*models.Guest
	version int64

	sizeErr    error
	versionErr error
	streamErr  error

	// block makes Stream wait for context cancellation, to exercise the
	// engine's time budget handling.
	block bool

	versionCalls int
}

func (f *fakeCorpus) Size(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	if f.sizeErr != nil {
		return 0, f.sizeErr
	}
	return int64(len(f.guests)), nil
}

func (f *fakeCorpus) Version(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	f.versionCalls++
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.version, nil
}

func (f *fakeCorpus) Stream(ctx context.Context, binding scope.CorpusBinding, batchSize int, fn func(guests []*models.Guest) error) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.streamErr != nil {
		return f.streamErr
	}
	for start := 0; start < len(f.guests); start += batchSize {
		end := start + batchSize
		if end > len(f.guests) {
			end = len(f.guests)
		}
		if err := fn(f.guests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func orgSegment(criteria models.CriteriaList) *models.Segment {
	return &models.Segment{
		UUID:           uuid.New(),
		Name:           "Texas families",
		Scope:          models.SegmentScopeOrganization,
		OrganizationID: utils.ToPtr(uint(1)),
		Criteria:       criteria,
		Status:         models.SegmentStatusActive,
		Version:        4,
	}
}

func TestEngineMatch(t *testing.T) {
	corpus := &fakeCorpus{
		version: 42,
		guests: []*models.Guest{
			{ID: 1, Country: "US", State: "TX", HasPets: true},
			{ID: 2, Country: "US", State: "TX", HasPets: false},
			{ID: 3, Country: "US", State: "AZ", HasPets: true},
			{ID: 4, Country: "CA", State: "TX", HasPets: true},
			{ID: 5, Country: "US", State: "TX", HasPets: true},
		},
	}
	engine := NewEngine(corpus, WithBatchSize(2))

	seg := orgSegment(models.CriteriaList{
		{Type: "country", Operator: "equals", Value: strValue("US")},
		{Type: "state", Operator: "equals", Value: strValue("TX")},
		{Type: "has_pets", Operator: "equals", Value: boolValue(true)},
	})

	result, err := engine.Match(context.Background(), seg, false)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.GuestCount)
	assert.Equal(t, seg.UUID, result.SegmentUUID)
	assert.Equal(t, uint(4), result.SegmentVersion)
	assert.Equal(t, int64(42), result.CorpusVersion)
	assert.False(t, result.ComputedAt.IsZero())
	assert.Empty(t, result.MatchedGuestIDs)
}

func TestEngineMatchCollectsIDs(t *testing.T) {
	corpus := &fakeCorpus{
		version: 7,
		guests: []*models.Guest{
			{ID: 10, State: "TX"},
			{ID: 11, State: "AZ"},
			{ID: 12, State: "TX"},
		},
	}
	engine := NewEngine(corpus)

	seg := orgSegment(models.CriteriaList{
		{Type: "state", Operator: "equals", Value: strValue("TX")},
	})

	result, err := engine.Match(context.Background(), seg, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.GuestCount)
	assert.Equal(t, []uint{10, 12}, result.MatchedGuestIDs)
}

func TestEngineMatchEmptyCriteriaCountsEveryone(t *testing.T) {
	corpus := &fakeCorpus{
		version: 1,
		guests:  []*models.Guest{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	engine := NewEngine(corpus)

	result, err := engine.Match(context.Background(), orgSegment(nil), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.GuestCount)
}

func TestEngineMatchTimeout(t *testing.T) {
	corpus := &fakeCorpus{version: 1, block: true}
	engine := NewEngine(corpus, WithTimeBudget(20*time.Millisecond))

	result, err := engine.Match(context.Background(), orgSegment(nil), false)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrMatchTimeout)
}

func TestEngineMatchCorpusUnavailable(t *testing.T) {
	corpus := &fakeCorpus{versionErr: errors.New("connection refused")}
	engine := NewEngine(corpus, WithRetryPolicy(3, time.Millisecond))

	result, err := engine.Match(context.Background(), orgSegment(nil), false)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrCorpusUnavailable)
	assert.Equal(t, 3, corpus.versionCalls)
}

func TestEngineMatchGlobalSegmentHasNoCorpus(t *testing.T) {
	engine := NewEngine(&fakeCorpus{})

	seg := &models.Segment{
		UUID:   uuid.New(),
		Scope:  models.SegmentScopeGlobal,
		Status: models.SegmentStatusActive,
	}

	_, err := engine.Match(context.Background(), seg, false)
	assert.ErrorIs(t, err, scope.ErrNoCorpus)
}

func TestEngineCorpusSize(t *testing.T) {
	t.Run("returns the bound corpus size", func(t *testing.T) {
		corpus := &fakeCorpus{guests: []*models.Guest{{ID: 1}, {ID: 2}}}
		engine := NewEngine(corpus)

		size, err := engine.CorpusSize(context.Background(), orgSegment(nil))
		require.NoError(t, err)
		assert.Equal(t, int64(2), size)
	})

	t.Run("wraps corpus failures after retries", func(t *testing.T) {
		corpus := &fakeCorpus{sizeErr: errors.New("timeout")}
		engine := NewEngine(corpus, WithRetryPolicy(2, time.Millisecond))

		_, err := engine.CorpusSize(context.Background(), orgSegment(nil))
		assert.ErrorIs(t, err, ErrCorpusUnavailable)
	})
}
