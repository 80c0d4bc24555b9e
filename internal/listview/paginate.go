package listview

// DefaultPageSize is used when a descriptor does not set one.
const DefaultPageSize = 5

// Page is one page of a filtered list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// TotalPages returns ceil(n/size), never less than 1.
func TotalPages(n, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (n + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage returns requested when it lies in [1,totalPages] and 1 otherwise.
func ClampPage(requested, totalPages int) int {
	if requested < 1 || requested > totalPages {
		return 1
	}
	return requested
}

// Paginate slices items into the requested page. An out of range page falls back to page 1.
func Paginate[T any](items []T, pageSize, requested int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := TotalPages(len(items), pageSize)
	page := ClampPage(requested, total)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Page: page, TotalPages: total, Total: len(items)}
}
