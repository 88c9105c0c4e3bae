package tenant

import "strings"

const (
	// identifierPrefix is prepended when sanitization produces an identifier
	// that would be empty or start with a digit.
	identifierPrefix = "t_"

	// maxIdentifierLen matches the PostgreSQL identifier length limit.
	maxIdentifierLen = 63
)

// SanitizeIdentifier derives a storage identifier (schema or database name)
// from a raw tenant identifier. The mapping is: lowercase, strip every
// character outside [a-z0-9_-], truncate to 63 characters, and prefix with
// "t_" when the result is empty or starts with a digit.
//
// Stripping (rather than replacing with a separator) keeps the identifiers
// compatible with records provisioned by earlier releases. It means distinct
// raw names such as "ab#c" and "abc" collapse to the same identifier; the
// provisioner's existence check turns such collisions into a hard
// StorageAlreadyExists failure instead of silent sharing.
//
// The function is pure, total for non-empty input, and idempotent:
// SanitizeIdentifier(SanitizeIdentifier(x)) == SanitizeIdentifier(x).
func SanitizeIdentifier(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if len(cleaned) > maxIdentifierLen {
		cleaned = cleaned[:maxIdentifierLen]
	}

	if cleaned == "" || (cleaned[0] >= '0' && cleaned[0] <= '9') {
		cleaned = identifierPrefix + cleaned
		if len(cleaned) > maxIdentifierLen {
			cleaned = cleaned[:maxIdentifierLen]
		}
	}

	return cleaned
}
