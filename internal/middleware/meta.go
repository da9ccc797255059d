package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// responseMeta collects envelope metadata while a handler runs.
type responseMeta struct {
	started time.Time
	values  map[string]interface{}
}

// WithResponseMeta starts the per-request metadata collector.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from the report-card cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// SetMeta stores a metadata value. It is a no-op when WithResponseMeta is not
// installed.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaFrom(c); meta != nil {
		meta.values[key] = value
	}
}

// ExtractMeta returns a snapshot of the collected values plus
// processing_time_ms, or nil when WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaFrom(c)
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta.values)+1)
	for k, v := range meta.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(meta.started).Milliseconds()
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(*responseMeta)
	return meta
}
