package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	obscontext "github.com/smallbiznis/tryon/internal/observability/context"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
)

const (
	HeaderAPIKey = "X-API-Key"

	contextAccountKey = "account"
	contextWidgetKey  = "widget"
	contextAPIKeyKey  = "api_key"

	maxWidgetBodyBytes = 10 << 20
)

// AuthRequired authenticates dashboard requests with a bearer session token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		account, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithAccountID(c.Request.Context(), account.ID.String())
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeAccount), account.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextAccountKey, account)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func currentAccount(c *gin.Context) (*authdomain.Account, bool) {
	value, ok := c.Get(contextAccountKey)
	if !ok {
		return nil, false
	}
	account, ok := value.(*authdomain.Account)
	return account, ok && account != nil
}

// WidgetKeyRequired resolves the public widget API key to its account and
// enforces the widget's origin allow list. The key is read from the
// X-API-Key header, the api_key/apiKey query parameter, or the apiKey
// field of a JSON body.
func (s *Server) WidgetKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, err := widgetAPIKey(c)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				AbortWithError(c, ErrPayloadTooLarge)
				return
			}
			AbortWithError(c, invalidRequestError())
			return
		}
		if apiKey == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		resolved, err := s.widgetSvc.ResolveAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !resolved.OriginAllowed(strings.TrimSpace(c.GetHeader("Origin"))) {
			AbortWithError(c, widgetdomain.ErrOriginDenied)
			return
		}

		ctx := obscontext.WithAccountID(c.Request.Context(), resolved.AccountID.String())
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeAPIKey), resolved.WidgetID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextWidgetKey, resolved)
		c.Set(contextAPIKeyKey, apiKey)
		c.Next()
	}
}

func currentWidget(c *gin.Context) (*widgetdomain.Resolved, bool) {
	value, ok := c.Get(contextWidgetKey)
	if !ok {
		return nil, false
	}
	resolved, ok := value.(*widgetdomain.Resolved)
	return resolved, ok && resolved != nil
}

func widgetAPIKey(c *gin.Context) (string, error) {
	if key := strings.TrimSpace(c.GetHeader(HeaderAPIKey)); key != "" {
		return key, nil
	}
	for _, name := range []string{"api_key", "apiKey"} {
		if key := strings.TrimSpace(c.Query(name)); key != "" {
			return key, nil
		}
	}
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return "", nil
	}
	return readBodyAPIKey(c)
}

// readBodyAPIKey peeks at the JSON body and restores it for the handler.
// Bodies over maxWidgetBodyBytes are rejected.
func readBodyAPIKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWidgetBodyBytes))
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return strings.TrimSpace(payload.APIKey), nil
}
