package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	usagereportdomain "github.com/smallbiznis/tryon/internal/usagereport/domain"
)

const (
	defaultPurchaseLimit = 10
	maxPurchaseLimit     = 50
)

type creditPurchaseResponse struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Credits     int64           `json:"credits"`
	Description string          `json:"description"`
	DownloadURL string          `json:"downloadUrl"`
}

func (s *Server) GetCredits(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	balance, err := s.ledgerSvc.Balance(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

func (s *Server) ListCreditPackages(c *gin.Context) {
	cfg := s.credits.Get()
	c.JSON(http.StatusOK, gin.H{
		"perImage": cfg.PerImage,
		"packages": cfg.Packages,
	})
}

func (s *Server) ListCreditPurchases(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit := defaultPurchaseLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxPurchaseLimit {
			AbortWithError(c, newValidationError("limit", "invalid_limit", fmt.Sprintf("limit must be between 1 and %d", maxPurchaseLimit)))
			return
		}
		limit = parsed
	}

	purchases, err := s.ledgerSvc.ListPurchases(c.Request.Context(), account.ID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]creditPurchaseResponse, 0, len(purchases))
	for _, purchase := range purchases {
		resp = append(resp, s.newCreditPurchaseResponse(purchase))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) newCreditPurchaseResponse(purchase ledgerdomain.CreditPurchase) creditPurchaseResponse {
	return creditPurchaseResponse{
		ID:          purchase.ID.String(),
		Date:        purchase.CreatedAt,
		Amount:      purchase.Amount,
		Currency:    purchase.Currency,
		Credits:     purchase.Credits,
		Description: purchase.Description,
		DownloadURL: fmt.Sprintf("%s/credit-purchases/%s/receipt", s.cfg.PublicBaseURL, purchase.ID.String()),
	}
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	purchaseID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || purchaseID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid purchase id"))
		return
	}

	doc, err := s.receiptSvc.Receipt(c.Request.Context(), account.ID, purchaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

// GetUsageReport serves the bucketed usage and balance history.
func (s *Server) GetUsageReport(c *gin.Context) {
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

	report, err := s.reportSvc.Report(c.Request.Context(), usagereportdomain.Request{
		AccountID: account.ID,
		Period:    c.Query("period"),
		Start:     start,
		End:       end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
