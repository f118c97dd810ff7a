package utils

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash computes a content hash used as a cache validator
func Hash(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// ETag returns a strong entity tag for data
func ETag(data []byte) string {
	return `"` + Hash(data) + `"`
}
