package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Action    string `form:"action"`
	AccountID string `form:"account_id"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var accountID snowflake.ID
	if raw := strings.TrimSpace(query.AccountID); raw != "" {
		parsed, err := parseSnowflakeID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
			return
		}
		accountID = parsed
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AccountID: accountID,
		Action:    strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
