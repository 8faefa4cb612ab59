package router

import (
	"testing"
	"time"

	"github.com/campsight/segmentation/app/middleware"
	"github.com/campsight/segmentation/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSegmentHandler struct{}

func (stubSegmentHandler) CreateSegment(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusCreated)
}
func (stubSegmentHandler) ListSegments(c fiber.Ctx) error     { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) GetSegment(c fiber.Ctx) error       { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) UpdateSegment(c fiber.Ctx) error    { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) DuplicateSegment(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) ArchiveSegment(c fiber.Ctx) error   { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) RecountSegment(c fiber.Ctx) error   { return c.SendStatus(fiber.StatusOK) }
func (stubSegmentHandler) ExportSegment(c fiber.Ctx) error    { return c.SendStatus(fiber.StatusOK) }

func newTestRouter(t *testing.T, globalRateLimit int) *FiberRouter {
	t.Helper()
	tokenService, err := services.NewTokenService(time.Minute, time.Hour, "campsight-segmentation", "campsight-api", "test-secret")
	require.NoError(t, err)

	r := NewFiberRouter(stubSegmentHandler{}, middleware.NewAuthMiddleware(tokenService), []string{"https://app.campsight.io"}, globalRateLimit)
	return r.(*FiberRouter)
}

func TestNewFiberRouterRateLimit(t *testing.T) {
	t.Run("carries the configured limit into the limiter", func(t *testing.T) {
		r := newTestRouter(t, 25)
		assert.Equal(t, 25, r.globalRateLimit)

		// Route registration must succeed with the configured limit.
		r.SetupRoutes()
	})

	t.Run("zero and negative fall back to the default", func(t *testing.T) {
		assert.Equal(t, 1000, newTestRouter(t, 0).globalRateLimit)
		assert.Equal(t, 1000, newTestRouter(t, -5).globalRateLimit)
	})
}
