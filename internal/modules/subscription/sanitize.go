package subscription

import (
	"fmt"
	"net/mail"
	neturl "net/url"
	"strings"
	"unicode"
)

// SanitizeEmail normalizes and validates an email address: trimmed,
// lowercased, and parseable as a bare RFC 5322 address.
func SanitizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("invalid email address: %w", err)
	}
	if addr.Name != "" {
		return "", fmt.Errorf("invalid email address: display name not allowed")
	}
	return addr.Address, nil
}

// SanitizeToken strips everything that is not alphanumeric and clamps to the
// 32 hex characters a token can hold.
func SanitizeToken(token string) string {
	var b strings.Builder
	for _, r := range token {
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 32 {
			break
		}
	}
	return b.String()
}

// SanitizeText trims, collapses control characters to spaces, and clamps to
// maxLength runes (0 means no limit).
func SanitizeText(text string, maxLength int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if maxLength > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLength {
			cleaned = string(runes[:maxLength])
		}
	}
	return cleaned
}

// SanitizeURL accepts only absolute http(s) URLs and returns the normalized
// form.
func SanitizeURL(raw string) (string, error) {
	u, err := neturl.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url: scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url: missing host")
	}
	return u.String(), nil
}
