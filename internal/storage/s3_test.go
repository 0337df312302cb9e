package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3HostRequiresBucket(t *testing.T) {
	_, err := NewS3Host(context.Background(), config.StorageConfig{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateKeyAndPublicURL(t *testing.T) {
	h, err := NewS3Host(context.Background(), config.StorageConfig{
		Bucket:    "shop-images",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		BasePath:  "/products/",
	})
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	key := h.generateKey("webp")
	assert.True(t, strings.HasPrefix(key, "products/2024/03/09/"), key)
	assert.True(t, strings.HasSuffix(key, ".webp"), key)

	assert.Equal(t, "https://shop-images.s3.us-east-1.amazonaws.com/"+key, h.PublicURL(key))

	h.publicURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/a/b.png", h.PublicURL("a/b.png"))
}
