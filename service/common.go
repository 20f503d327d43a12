package service

import (
	"errors"
	"math"
	"strings"

	"expensehub/models"

	"gorm.io/gorm"
)

// Actor 当前请求的调用者
type Actor struct {
	UserID uint
	Role   models.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageQuery 分页与排序参数
type PageQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (q PageQuery) normalize() (page, limit, offset int) {
	page, limit = q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

// orderBy 只允许白名单内的排序字段，追加 id 保证分页顺序稳定
func (q PageQuery) orderBy(allowed map[string]string, defaultField, defaultOrder string) string {
	column, ok := allowed[q.SortBy]
	if !ok {
		column = allowed[defaultField]
	}
	order := strings.ToUpper(q.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = defaultOrder
	}
	return column + " " + order + ", id " + order
}

// Pagination 分页信息
type Pagination struct {
	CurrentPage int
	TotalPages  int
	Total       int64
	HasNextPage bool
	HasPrevPage bool
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		Total:       total,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate 唯一索引冲突，需开启 gorm.Config.TranslateError
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
