package handler

import (
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	bearerPrefix    = "Bearer "
)

// RequireToken 只接受設定中的 bearer token；沒有設定時全部拒絕
func RequireToken(tokens []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			respondFail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
			return
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])
		if _, ok := allowed[token]; !ok || token == "" {
			respondFail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

// RequestLogger 記錄每個請求，並帶上客戶端送來的 X-Request-ID
func RequestLogger() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", c.GetHeader(headerRequestID)),
		)
	}
}
