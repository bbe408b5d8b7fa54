package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tryon/internal/observability/logger"
	"github.com/smallbiznis/tryon/internal/payment/adapters/stripe"
	"go.uber.org/zap"
)

// HandlePaymentWebhook acknowledges duplicates and ignored events with 200 so
// providers stop retrying them.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	s.ingestPaymentWebhook(c, c.Param("provider"))
}

func (s *Server) HandleStripeWebhook(c *gin.Context) {
	s.ingestPaymentWebhook(c, stripe.ProviderName)
}

func (s *Server) ingestPaymentWebhook(c *gin.Context, provider string) {
	provider = strings.TrimSpace(provider)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	outcome, err := s.paymentSvc.IngestWebhook(ctx, provider, payload, c.Request.Header)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("payment webhook not applied",
			zap.String("provider", provider),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": outcome})
}
