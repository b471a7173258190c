package option

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option applies a reusable query refinement to a gorm statement.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination decodes the cursor token and limits the statement to one
// page plus a single look-ahead row.
func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := o.page.PageSize
	if size <= 0 {
		size = 50
	}

	token := strings.TrimSpace(o.page.PageToken)
	if token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil && cursor != nil {
			createdAt, timeErr := time.Parse(time.RFC3339, cursor.CreatedAt)
			id, idErr := snowflake.ParseString(cursor.ID)
			if timeErr == nil && idErr == nil {
				stmt = stmt.Where(
					"(created_at < ? OR (created_at = ? AND id < ?))",
					createdAt,
					createdAt,
					id,
				)
			}
		}
	}

	return stmt.Limit(size + 1)
}
