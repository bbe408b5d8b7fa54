package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productdomain "github.com/smallbiznis/tryon/internal/product/domain"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
)

type upsertProductRequest struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku"`
	Price    *string  `json:"price"`
	PageURL  *string  `json:"page_url"`
	Category *string  `json:"category"`
	Images   []string `json:"images"`
}

func (r upsertProductRequest) toDomain() productdomain.UpsertRequest {
	return productdomain.UpsertRequest{
		Name:     strings.TrimSpace(r.Name),
		SKU:      strings.TrimSpace(r.SKU),
		Price:    r.Price,
		PageURL:  r.PageURL,
		Category: r.Category,
		Images:   r.Images,
	}
}

func (s *Server) CreateProduct(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req upsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), account.ID, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListProducts(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		Category string `form:"category"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		Pagination: query.Pagination,
		AccountID:  account.ID,
		Category:   strings.TrimSpace(query.Category),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Products, "page_info": resp.PageInfo})
}

func (s *Server) GetProductByID(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.productSvc.Get(c.Request.Context(), account.ID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req upsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Update(c.Request.Context(), account.ID, strings.TrimSpace(c.Param("id")), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProduct(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.productSvc.Delete(c.Request.Context(), account.ID, strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
