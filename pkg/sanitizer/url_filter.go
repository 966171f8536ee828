package sanitizer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
)

var (
	// Match URLs in markdown links: [text](url)
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	// Match URLs (including all protocols)
	urlRegex = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s<>"'\[\]{}()]+`)
)

// URLFilterResult holds the result of URL filtering operations
type URLFilterResult struct {
	FilteredContent string   // Content with URLs filtered
	RemovedURLs     []string // List of URLs that were removed for logging
}

// FilterURLsConfig holds configuration for URL filtering
type FilterURLsConfig struct {
	AllowDomains []string // List of allowed domain patterns
}

// FilterURLs filters URLs in schema-provided text before it is shown to the user.
// Non-HTTPS URLs are always removed. HTTPS URLs are kept only when their host matches
// an allowed domain; with no configured domains the documentation domains apply.
func FilterURLs(content string, config *FilterURLsConfig) *URLFilterResult {
	if content == "" {
		return &URLFilterResult{FilteredContent: "", RemovedURLs: nil}
	}

	var removedURLs []string

	// First pass: handle markdown links
	filteredContent := markdownLinkRegex.ReplaceAllStringFunc(content, func(match string) string {
		submatches := markdownLinkRegex.FindStringSubmatch(match)
		if len(submatches) != 3 {
			return match
		}

		linkText := submatches[1]
		linkURL := submatches[2]

		if shouldFilterURL(linkURL, config) {
			removedURLs = append(removedURLs, linkURL)
			if linkText != "" {
				return linkText + " [filtered]"
			}
			return "[filtered]"
		}

		return match
	})

	// Second pass: handle plain URLs
	filteredContent = urlRegex.ReplaceAllStringFunc(filteredContent, func(match string) string {
		if shouldFilterURL(match, config) {
			removedURLs = append(removedURLs, match)
			return "[filtered]"
		}
		return match
	})

	return &URLFilterResult{
		FilteredContent: filteredContent,
		RemovedURLs:     removedURLs,
	}
}

// CheckSchemaURL reports whether a remote schema may be fetched from rawURL
func CheckSchemaURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid schema URL %q: %w", rawURL, err)
	}
	if parsedURL.Scheme != "https" {
		return fmt.Errorf("schema URL %q must use https", rawURL)
	}
	if !isHostnameAllowed(parsedURL.Hostname(), constants.AllowedSchemaHosts) {
		return fmt.Errorf("schema host %q is not allowed, use one of: %s",
			parsedURL.Hostname(), strings.Join(constants.AllowedSchemaHosts, ", "))
	}
	return nil
}

// shouldFilterURL determines if a URL should be filtered based on the configuration
func shouldFilterURL(rawURL string, config *FilterURLsConfig) bool {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	if parsedURL.Scheme != "https" {
		return true
	}

	allowedDomains := constants.AllowedDocumentationDomains
	if config != nil && len(config.AllowDomains) > 0 {
		allowedDomains = config.AllowDomains
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return true
	}

	return !isHostnameAllowed(hostname, allowedDomains)
}

// isHostnameAllowed checks if a hostname matches any of the allowed domain patterns
func isHostnameAllowed(hostname string, allowedDomains []string) bool {
	hostname = strings.ToLower(hostname)
	if hostname == "" {
		return false
	}

	for _, allowedDomain := range allowedDomains {
		allowedDomain = strings.ToLower(strings.TrimSpace(allowedDomain))
		if allowedDomain == "" {
			continue
		}

		// Exact match
		if hostname == allowedDomain {
			return true
		}

		// Subdomain match (e.g., "drone.io" matches "docs.drone.io")
		if strings.HasSuffix(hostname, "."+allowedDomain) {
			return true
		}
	}

	return false
}
