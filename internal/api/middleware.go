package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/pocketledger/internal/log"
)

const partyKey = "party_id"

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			log.FieldMethod, c.Request.Method,
			log.FieldPath, c.FullPath(),
			log.FieldStatusCode, status,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, c.ClientIP(),
		}
		if party := c.GetString(partyKey); party != "" {
			args = append(args, log.FieldParty, party)
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(c.Request.Context(), "request failed", args...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(c.Request.Context(), "request rejected", args...)
		default:
			logger.InfoContext(c.Request.Context(), "request", args...)
		}
	}
}

func requireParty() gin.HandlerFunc {
	return func(c *gin.Context) {
		party := strings.TrimSpace(c.GetHeader(HeaderParty))
		if party == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + HeaderParty + " header"})
			return
		}
		c.Set(partyKey, party)
		c.Next()
	}
}

func partyID(c *gin.Context) string { return c.GetString(partyKey) }
