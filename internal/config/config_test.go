package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUBMIT_GRACE_SECONDS", "")
	t.Setenv("IPFS_GATEWAYS", "")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.SubmitGrace)
	assert.Equal(t, 50, cfg.ReleaseBatchSize)
	assert.Len(t, cfg.IPFSGateways, 3)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IPFS_GATEWAYS", " https://a.example/ipfs , ,https://b.example/ipfs")
	t.Setenv("RELEASE_BATCH_SIZE", "10")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example/ipfs", "https://b.example/ipfs"}, cfg.IPFSGateways)
	assert.Equal(t, 10, cfg.ReleaseBatchSize)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "content:bafy123:envelope", CacheKey.ContentEnvelopeKey("bafy123"))
	assert.Equal(t, "auth:revoked:abc", CacheKey.RevokedTokenKey("abc"))
}
