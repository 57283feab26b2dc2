package logging

import (
	"strings"

	masker "github.com/goliatone/go-masker"
	"go.uber.org/zap"
)

const secretMask = "preserveEnds(2,2)"

// Mask hides all but the first and last two characters of value.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if masked, err := masker.Default.String(secretMask, value); err == nil {
		return masked
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// Secret is a zap field carrying the masked form of value.
func Secret(key, value string) zap.Field {
	return zap.String(key, Mask(value))
}
