package apiutil

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination holds parsed page/limit query parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page/limit query params with defaults and caps.
func ParsePagination(c *gin.Context) Pagination {
	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// Envelope wraps a paginated list response.
func (p Pagination) Envelope(items interface{}, total int64) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        p.Page,
			"limit":       p.Limit,
			"total":       total,
			"total_pages": (total + int64(p.Limit) - 1) / int64(p.Limit),
		},
	}
}
