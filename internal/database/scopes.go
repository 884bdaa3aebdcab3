package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/task-chat-api/internal/utils"
)

// Paginate applies the page window to a query. A zero page size leaves the
// query unbounded.
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if params.PageSize <= 0 {
			return db
		}
		return db.Offset(params.Offset()).Limit(params.PageSize)
	}
}

// OldestFirst orders rows by creation time with the primary key as tiebreak
func OldestFirst(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".created_at ASC").Order(table + ".id ASC")
	}
}
