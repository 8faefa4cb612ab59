package businessflow

import (
	"context"
	"testing"

	"github.com/campsight/segmentation/utils"
	"github.com/stretchr/testify/assert"
)

func TestClientMetadataFromContext(t *testing.T) {
	t.Run("reads the request-scoped values", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), utils.IPAddressKey, "203.0.113.7")
		ctx = context.WithValue(ctx, utils.UserAgentKey, "campsight-console/2.4")
		ctx = context.WithValue(ctx, utils.RequestIDKey, "req-8f3a1c")

		cm := ClientMetadataFromContext(ctx)
		assert.Equal(t, "203.0.113.7", cm.IPAddress)
		assert.Equal(t, "campsight-console/2.4", cm.UserAgent)
		assert.Equal(t, "req-8f3a1c", cm.RequestID)
	})

	t.Run("background contexts yield empty metadata", func(t *testing.T) {
		cm := ClientMetadataFromContext(context.Background())
		assert.Empty(t, cm.IPAddress)
		assert.Empty(t, cm.UserAgent)
		assert.Empty(t, cm.RequestID)
	})
}
