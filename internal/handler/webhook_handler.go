package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/relay"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookRelay invokes the function that owns a provider's webhooks
type WebhookRelay interface {
	Invoke(ctx context.Context, provider string, envelope relay.Envelope) (relay.Response, error)
}

type WebhookHandler struct {
	relay  WebhookRelay
	logger *zap.Logger
}

func NewWebhookHandler(relay WebhookRelay, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{relay: relay, logger: logger.Named("webhook_handler")}
}

// Relay returns the handler for one provider's webhook route
func (h *WebhookHandler) Relay(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			body = []byte("{}")
		}
		if !json.Valid(body) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		envelope := relay.NewEnvelope(provider, body, c.Request.Header, c.Request.URL.Query())

		resp, err := h.relay.Invoke(c.Request.Context(), provider, envelope)
		switch {
		case errors.Is(err, relay.ErrNotLoaded):
			h.logger.Error("webhook function not loaded", zap.String("provider", provider), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook handler unavailable"})
			return
		case errors.Is(err, relay.ErrUnknownProvider):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error("webhook function failed",
				zap.String("provider", provider),
				zap.String("request_id", envelope.RequestContext.RequestID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		if len(resp.Body) == 0 {
			c.Status(status)
			return
		}
		c.Data(status, "application/json; charset=utf-8", resp.Body)
	}
}
