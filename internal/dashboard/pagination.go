package dashboard

import "math"

// TotalPages returns ceil(total/limit), or zero when limit is not positive.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// HasNextPage reports whether another page follows page.
func HasNextPage(page, limit, total int) bool {
	return limit > 0 && page < TotalPages(total, limit)
}

// HasPreviousPage reports whether page is past the first page.
func HasPreviousPage(page int) bool {
	return page > 1
}
