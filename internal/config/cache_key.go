package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ContentEnvelopeKey returns the cache key for a published (still encrypted)
// envelope fetched from the content store.
func (r *CacheKeyStruct) ContentEnvelopeKey(handle string) string {
	return fmt.Sprintf("content:%s:envelope", handle)
}

// RevokedTokenKey returns the cache key marking a logged-out JWT as revoked.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

var CacheKey = NewCacheKeyStruct()
