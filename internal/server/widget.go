package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/tryon/internal/analytics/domain"
	obscontext "github.com/smallbiznis/tryon/internal/observability/context"
	tryondomain "github.com/smallbiznis/tryon/internal/tryon/domain"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
)

type widgetConfigResponse struct {
	Config         map[string]any `json:"config"`
	APIKey         string         `json:"api_key"`
	AllowedOrigins []string       `json:"allowedOrigins"`
}

func newWidgetConfigResponse(cfg *widgetdomain.WidgetConfig) widgetConfigResponse {
	config := map[string]any(cfg.Config)
	if config == nil {
		config = map[string]any{}
	}
	origins := []string(cfg.AllowedOrigins)
	if origins == nil {
		origins = []string{}
	}
	return widgetConfigResponse{Config: config, APIKey: cfg.APIKey, AllowedOrigins: origins}
}

func (s *Server) GetWidgetConfig(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	cfg, err := s.widgetSvc.Ensure(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newWidgetConfigResponse(cfg))
}

// SaveWidgetConfig accepts {"config": {...}, "allowedOrigins": [...]} or a
// bare config object.
func (s *Server) SaveWidgetConfig(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := decodeWidgetSaveRequest(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cfg, err := s.widgetSvc.Save(c.Request.Context(), account.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newWidgetConfigResponse(cfg))
}

func decodeWidgetSaveRequest(body map[string]json.RawMessage) (widgetdomain.SaveRequest, error) {
	var req widgetdomain.SaveRequest

	rawConfig, wrapped := body["config"]
	if !wrapped {
		config := make(map[string]any, len(body))
		for key, raw := range body {
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				return req, widgetdomain.ErrInvalidConfig
			}
			config[key] = value
		}
		req.Config = config
		return req, nil
	}

	if err := json.Unmarshal(rawConfig, &req.Config); err != nil {
		return req, widgetdomain.ErrInvalidConfig
	}
	if rawOrigins, ok := body["allowedOrigins"]; ok {
		origins := []string{}
		if err := json.Unmarshal(rawOrigins, &origins); err != nil {
			return req, widgetdomain.ErrInvalidOrigin
		}
		req.AllowedOrigins = origins
	}
	return req, nil
}

func (s *Server) RotateWidgetAPIKey(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	cfg, err := s.widgetSvc.RotateAPIKey(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_key": cfg.APIKey})
}

func (s *Server) GetEmbedCode(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.widgetSvc.EmbedCode(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPublicWidgetConfig(c *gin.Context) {
	resp, err := s.widgetSvc.PublicConfig(c.Request.Context(), c.GetString(contextAPIKeyKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPublicProduct(c *gin.Context) {
	widget, ok := currentWidget(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	productID := firstQuery(c, "product_id", "productId")
	if productID == "" {
		AbortWithError(c, newValidationError("product_id", "required", "product_id is required"))
		return
	}

	product, err := s.productSvc.Get(c.Request.Context(), widget.AccountID, productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// IngestWidgetEvent stores one analytics beacon sent by the embedded widget.
func (s *Server) IngestWidgetEvent(c *gin.Context) {
	widget, ok := currentWidget(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.analyticsSvc.Ingest(c.Request.Context(), widget.AccountID, payload); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type generateTryOnRequest struct {
	Photo     string `json:"photo"`
	ProductID string `json:"productId"`
}

// GenerateTryOnImage debits the per-image price and returns the result.
func (s *Server) GenerateTryOnImage(c *gin.Context) {
	widget, ok := currentWidget(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req generateTryOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	result, err := s.tryonSvc.Generate(ctx, tryondomain.GenerateRequest{
		AccountID: widget.AccountID,
		Photo:     req.Photo,
		ProductID: strings.TrimSpace(req.ProductID),
		RequestID: obscontext.RequestIDFromContext(ctx),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetAnalyticsSummary(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	start, end, err := parseWindowQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.analyticsSvc.Summary(c.Request.Context(), analyticsdomain.SummaryRequest{
		AccountID: account.ID,
		Period:    c.Query("period"),
		Start:     start,
		End:       end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
