package middleware

import (
	"fmt"
	"net/url"
	"strings"

	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

// Input validation for analysis targets

// ValidateTarget checks a target URL after scheme normalization. The bare
// host form ("example.com") is accepted and normalized to https.
func ValidateTarget(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("target URL cannot be empty")
	}

	u, err := url.Parse(domain.NormalizeTarget(raw))
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("target URL has no host")
	}

	// Check for localhost/internal IPs (SSRF protection)
	host := strings.ToLower(u.Hostname())
	blocked := []string{"localhost", "127.0.0.1", "0.0.0.0", "[::]", "::1"}
	for _, b := range blocked {
		if strings.Contains(host, b) {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
	}

	// Block private IP ranges (basic check)
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.31.") {
		return fmt.Errorf("private IP ranges are not allowed")
	}

	return nil
}

// ValidateLimit clamps a pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
