package scheduler

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newListenerFixture() (*CorpusListener, *stubSegmentRepo, *bytes.Buffer) {
	repo := &stubSegmentRepo{segment: staleSegment()}
	repo.segment.CountStale = false

	var buf bytes.Buffer
	listener := NewCorpusListener(nil, repo, nil, log.New(&buf, "", 0))
	return listener, repo, &buf
}

func TestCorpusListenerHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("stales segments and traces the corpus version", func(t *testing.T) {
		listener, repo, buf := newListenerFixture()

		listener.handleMessage(ctx, `{"organization_id":10,"campground_id":100,"version":42}`)

		assert.Equal(t, uint(10), repo.staledOrganizationID)
		require.NotNil(t, repo.staledCampgroundID)
		assert.Equal(t, uint(100), *repo.staledCampgroundID)
		assert.True(t, repo.snapshot().CountStale)
		assert.Contains(t, buf.String(), "corpus version 42")
	})

	t.Run("organization-wide imports carry no campground", func(t *testing.T) {
		listener, repo, _ := newListenerFixture()

		listener.handleMessage(ctx, `{"organization_id":10,"version":7}`)

		assert.Equal(t, uint(10), repo.staledOrganizationID)
		assert.Nil(t, repo.staledCampgroundID)
	})

	t.Run("missing organization is dropped", func(t *testing.T) {
		listener, repo, buf := newListenerFixture()

		listener.handleMessage(ctx, `{"version":42}`)

		assert.Zero(t, repo.staledOrganizationID)
		assert.False(t, repo.snapshot().CountStale)
		assert.Contains(t, buf.String(), "missing organization")
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		listener, repo, buf := newListenerFixture()

		listener.handleMessage(ctx, `{not json`)

		assert.Zero(t, repo.staledOrganizationID)
		assert.False(t, repo.snapshot().CountStale)
		assert.Contains(t, buf.String(), "malformed")
	})
}
