package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, optionally namespaced as "<prefix>_<hex>".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// NewToken returns an opaque secret suitable for refresh and reset tokens.
func NewToken() string {
	return NewID("") + NewID("")
}
