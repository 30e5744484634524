package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a secret while keeping a minimal suffix for log correlation.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if len(trimmed) <= 4 {
		return maskToken
	}

	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskPhone keeps the country code and last four digits of a normalized number.
func MaskPhone(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < 8 {
		return maskToken
	}

	return trimmed[:3] + maskToken + trimmed[len(trimmed)-4:]
}
