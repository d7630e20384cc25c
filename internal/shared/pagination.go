package shared

import (
	"fmt"
	"math"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps Offset inside a 32-bit int on every platform.
	maxPage = math.MaxInt32 / maxPageSize
)

// ListParams holds the page, search and sort parameters of a listing request.
type ListParams struct {
	Page    int
	Size    int
	Query   string
	SortBy  string
	SortDir string
}

// Normalize clamps paging values and restricts SortBy to allowed columns.
func (p ListParams) Normalize(allowedSort ...string) ListParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	p.Query = strings.TrimSpace(p.Query)
	sortOK := false
	for _, col := range allowedSort {
		if p.SortBy == col {
			sortOK = true
			break
		}
	}
	if !sortOK {
		p.SortBy = "created_at"
	}
	if strings.EqualFold(p.SortDir, "desc") {
		p.SortDir = "DESC"
	} else {
		p.SortDir = "ASC"
	}
	return p
}

// Offset returns the row offset of the current page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Size
}

// Fingerprint identifies a parameter set inside a collection cache entry.
func (p ListParams) Fingerprint() string {
	return fmt.Sprintf("p=%d|s=%d|q=%s|by=%s|dir=%s", p.Page, p.Size, strings.ToLower(p.Query), p.SortBy, p.SortDir)
}

// Page is one page of a listing.
type Page[T any] struct {
	Data          []T  `json:"data"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	Size          int  `json:"size"`
	Page          int  `json:"page"`
	HasNext       bool `json:"hasNext"`
}

// NewPage computes pagination metadata.
func NewPage[T any](data []T, params ListParams, total int) Page[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := int(math.Ceil(float64(total) / float64(params.Size)))
	return Page[T]{
		Data:          data,
		TotalPages:    totalPages,
		TotalElements: total,
		Size:          params.Size,
		Page:          params.Page,
		HasNext:       params.Page < totalPages,
	}
}
