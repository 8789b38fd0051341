package util

import (
	"strconv"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseInt64 parses a string to an int64, returning defaultValue if parsing fails
func ParseInt64(s string, defaultValue int64) int64 {
	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val
	}
	return defaultValue
}

// ParseFloat parses a string to a float64, returning defaultValue if parsing fails
func ParseFloat(s string, defaultValue float64) float64 {
	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val
	}
	return defaultValue
}

// Pagination extracts page/limit query params with sane bounds.
// Page is 1-based; limit is clamped to [1, 100].
func Pagination(pageStr, limitStr string) (page, limit, offset int) {
	page = ParseInt(pageStr, 1)
	if page < 1 {
		page = 1
	}
	limit = ParseInt(limitStr, 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = (page - 1) * limit
	return page, limit, offset
}
