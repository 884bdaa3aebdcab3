package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-chat-api/internal/constants"
)

// PaginationParams holds the page window requested by a list endpoint
type PaginationParams struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// GetPaginationParams reads page and page_size from the query string.
// Out-of-range sizes fall back to the default; page starts at 1.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(constants.DefaultPageSize)))
	if err != nil || size < constants.MinPageSize || size > constants.MaxPageSize {
		size = constants.DefaultPageSize
	}

	return PaginationParams{Page: page, PageSize: size}
}
