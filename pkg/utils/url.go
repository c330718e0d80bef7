package utils

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ResolveURL resolves ref against base using standard relative reference
// rules, so "../apply/42" against "https://example.com/jobs/" gives
// "https://example.com/apply/42".
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// PageURL builds the address of a listing page. Page 1 is base itself; later
// pages append pattern to base with placeholder replaced by the page number.
func PageURL(base, pattern, placeholder string, page int) string {
	if page <= 1 {
		return base
	}
	return base + strings.ReplaceAll(pattern, placeholder, strconv.Itoa(page))
}

// RootDomain returns the registrable domain (eTLD+1) of a URL, such as
// "example.co.uk" for "https://jobs.example.co.uk/list". IP addresses and
// hosts without a public suffix are returned as they are.
func RootDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
