package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tryon/internal/authorization"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
)

// authorizeAction must run after AuthRequired.
func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := currentAccount(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		actor := authorization.Actor{AccountID: account.ID, Role: account.Role}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

type reconciliationResponse struct {
	ledgerdomain.Reconciliation
	Consistent bool  `json:"consistent"`
	Drift      int64 `json:"drift"`
}

func newReconciliationResponse(rec ledgerdomain.Reconciliation) reconciliationResponse {
	return reconciliationResponse{Reconciliation: rec, Consistent: rec.Consistent(), Drift: rec.Drift()}
}

func (s *Server) VerifyLedger(c *gin.Context) {
	accountID, err := parseSnowflakeID(c.Param("accountId"))
	if err != nil {
		AbortWithError(c, newValidationError("accountId", "invalid_account_id", "invalid account id"))
		return
	}

	rec, err := s.ledgerSvc.Verify(c.Request.Context(), accountID)
	if err != nil && !reportableDrift(err, rec != nil) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newReconciliationResponse(*rec)})
}

// VerifyAllLedgers returns only the accounts whose balance drifted.
func (s *Server) VerifyAllLedgers(c *gin.Context) {
	recs, err := s.ledgerSvc.VerifyAll(c.Request.Context())
	if err != nil && !reportableDrift(err, true) {
		AbortWithError(c, err)
		return
	}

	drifted := make([]reconciliationResponse, 0)
	for _, rec := range recs {
		if rec.Consistent() {
			continue
		}
		drifted = append(drifted, newReconciliationResponse(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":      len(recs),
		"inconsistent": drifted,
	})
}

// reportableDrift is true when verification finished and only found drift.
func reportableDrift(err error, hasResult bool) bool {
	return hasResult && errors.Is(err, ledgerdomain.ErrLedgerInconsistency)
}

type grantCreditsRequest struct {
	Credits int64  `json:"credits"`
	Note    string `json:"note"`
}

func (s *Server) GrantCredits(c *gin.Context) {
	actor, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	accountID, err := parseSnowflakeID(c.Param("accountId"))
	if err != nil {
		AbortWithError(c, newValidationError("accountId", "invalid_account_id", "invalid account id"))
		return
	}

	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.ledgerSvc.Grant(c.Request.Context(), ledgerdomain.GrantRequest{
		AccountID: accountID,
		Credits:   req.Credits,
		Note:      strings.TrimSpace(req.Note),
		ActorID:   actor.ID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"purchase_id": result.Purchase.ID.String(),
			"credits":     result.Purchase.Credits,
			"balance":     result.Balance,
		},
	})
}
