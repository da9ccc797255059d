package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithResponseMetaCollectsValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var captured map[string]interface{}
	router.Use(WithResponseMeta())
	router.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "mode", "UNIVERSITY")
		captured = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, captured["cache_hit"])
	assert.Equal(t, "UNIVERSITY", captured["mode"])
	assert.Contains(t, captured, "processing_time_ms")
}

func TestExtractMetaReturnsSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var first, second map[string]interface{}
	router.Use(WithResponseMeta())
	router.GET("/x", func(c *gin.Context) {
		first = ExtractMeta(c)
		first["cache_hit"] = true
		second = ExtractMeta(c)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotContains(t, second, "cache_hit")
}

func TestMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	SetCacheHit(c, false)
	assert.Nil(t, ExtractMeta(c))
	assert.Nil(t, ExtractMeta(nil))
}
