package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, ParseInt("42", 0))
	assert.Equal(t, 7, ParseInt("", 7))
	assert.Equal(t, 7, ParseInt("abc", 7))
	assert.Equal(t, -3, ParseInt("-3", 0))
}

func TestParseInt64(t *testing.T) {
	assert.Equal(t, int64(9999), ParseInt64("9999", 0))
	assert.Equal(t, int64(-1), ParseInt64("1.5", -1))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 3.5, ParseFloat("3.5", 0))
	assert.Equal(t, 1.0, ParseFloat("nope", 1.0))
}

func TestPagination(t *testing.T) {
	page, limit, offset := Pagination("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	page, limit, offset = Pagination("3", "10")
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	// Bounds are clamped, not rejected.
	_, limit, _ = Pagination("1", "500")
	assert.Equal(t, 100, limit)

	page, limit, offset = Pagination("-2", "0")
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)
}
