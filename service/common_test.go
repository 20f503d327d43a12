package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQuery_OrderBy(t *testing.T) {
	tests := []struct {
		name  string
		query PageQuery
		want  string
	}{
		{"default sort", PageQuery{}, "COALESCE(submitted_at, created_at) DESC, id DESC"},
		{"allowed field", PageQuery{SortBy: "amount", SortOrder: "asc"}, "amount ASC, id ASC"},
		{"unknown field falls back", PageQuery{SortBy: "amount; DROP TABLE expenses", SortOrder: "ASC"}, "COALESCE(submitted_at, created_at) ASC, id ASC"},
		{"bad order falls back", PageQuery{SortBy: "subject", SortOrder: "sideways"}, "subject DESC, id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.orderBy(expenseSortFields, "submittedAt", "DESC"))
		})
	}
}

func TestPageQuery_Normalize(t *testing.T) {
	page, limit, offset := PageQuery{Page: 3, Limit: 500}.normalize()
	assert.Equal(t, 3, page)
	assert.Equal(t, maxPageSize, limit)
	assert.Equal(t, 2*maxPageSize, offset)

	page, limit, offset = PageQuery{}.normalize()
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 0, offset)
}
