package dto

import "github.com/storesync/backend/internal/domain/integration"

// ErrorResponse is the error envelope of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewErrorResponse creates an error envelope
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: message, Code: code}
}

// ListResponse is one page of a list endpoint
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewListResponse builds a page, computing total_pages from total and pageSize
func NewListResponse[T any](items []T, total int64, page, pageSize int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// ListRequest holds the paging query parameters of list endpoints
type ListRequest struct {
	Page           int  `form:"page" binding:"omitempty,min=1"`
	PageSize       int  `form:"page_size" binding:"omitempty,min=1,max=250"`
	IncludeDeleted bool `form:"include_deleted"`
}

// Filter converts the request to a repository filter
func (r ListRequest) Filter() integration.ListFilter {
	return integration.ListFilter{
		Page:           r.Page,
		PageSize:       r.PageSize,
		IncludeDeleted: r.IncludeDeleted,
	}
}

// LimitRequest bounds the audit log endpoints
type LimitRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=250"`
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}
