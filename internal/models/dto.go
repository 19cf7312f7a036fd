package models

// PaginatedResponse wraps list payloads with paging metadata. Page is
// 1-based and echoes the query that produced the items, so clients can
// page off the envelope alone.
type PaginatedResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// NewPaginatedResponse builds the standard list envelope.
func NewPaginatedResponse[T any](items []T, total int64, page, size int) *PaginatedResponse[T] {
	return &PaginatedResponse[T]{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
	}
}
