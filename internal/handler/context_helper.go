package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the caller identity set by the upstream auth gateway.
const ActorHeader = "X-Actor-ID"

func actorFromContext(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if val, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback))); err == nil && val > 0 {
		return val
	}
	return fallback
}
