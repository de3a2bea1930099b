// Package urlguard validates and normalizes candidate URLs, enforcing a
// protocol allowlist, a blocked-hostname list, and an IP-range blocklist
// (SSRF guard) before the crawler or orchestrator ever dials out.
package urlguard

import (
	"context"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ParsedURL is the normalized form of a validated URL.
type ParsedURL struct {
	Original   string
	Normalized string
	Scheme     string
	Host       string // bare hostname, no port
	Authority  string // host, or host:port when port is non-default
	Domain     string
	Port       string
	Path       string
	Query      string
}

// Guard validates and normalizes URLs against the SSRF/scheme/host policy.
type Guard struct {
	resolver   *net.Resolver
	dnsTimeout time.Duration
}

// New constructs a Guard using the default net.Resolver and a 5s DNS budget.
func New() *Guard {
	return &Guard{resolver: net.DefaultResolver, dnsTimeout: 5 * time.Second}
}

// skipSchemes are non-HTML schemes the crawler never follows.
var skipSchemes = map[string]bool{
	"mailto": true, "tel": true, "javascript": true, "data": true, "ftp": true,
}

// skipExtensions is the closed set of file extensions the crawler skips:
// documents, archives, media, images, scripts/styles, binaries.
var skipExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".rtf": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".webm": true, ".ogg": true, ".wav": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true, ".bmp": true, ".ico": true,
	".js": true, ".css": true, ".map": true,
	".exe": true, ".dmg": true, ".apk": true, ".bin": true, ".iso": true,
}

// ValidateSyntactic trims, defaults the scheme, and validates input,
// returning a normalized ParsedURL or a final *Error.
func (g *Guard) ValidateSyntactic(input string) (*ParsedURL, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, newErr(ReasonInvalidSyntax, input, nil)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, newErr(ReasonInvalidSyntax, input, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, newErr(ReasonDisallowedScheme, input, nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, newErr(ReasonInvalidSyntax, input, nil)
	}

	if isLocalhostVariant(host) || isBlockedHostname(host) {
		return nil, newErr(ReasonBlockedHost, input, nil)
	}

	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return nil, newErr(ReasonPrivateAddress, input, nil)
	}

	return buildParsedURL(input, u, scheme, host), nil
}

// isLocalhostVariant covers the localhost hostname family that the CIDR
// table can't catch (hostname forms, not IP literals).
func isLocalhostVariant(host string) bool {
	switch host {
	case "localhost", "localhost.localdomain", "ip6-localhost", "ip6-loopback":
		return true
	}
	return false
}

// ValidateWithDNS performs syntactic validation, then resolves host and
// rejects if any resolved address falls in a blocked range.
func (g *Guard) ValidateWithDNS(ctx context.Context, input string) (*ParsedURL, error) {
	parsed, err := g.ValidateSyntactic(input)
	if err != nil {
		return nil, err
	}

	// A literal IP already passed the blocklist check in ValidateSyntactic.
	if net.ParseIP(parsed.Host) != nil {
		return parsed, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(dnsCtx, parsed.Host)
	if err != nil {
		return nil, newErr(ReasonDNSFailure, input, err)
	}
	if len(addrs) == 0 {
		return nil, newErr(ReasonDNSFailure, input, nil)
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return nil, newErr(ReasonBlockedHost, input, nil)
		}
	}
	return parsed, nil
}

// ShouldSkipURL reports whether u should never be fetched: non-HTML
// schemes, anchor-only fragments, or a closed set of file extensions.
func ShouldSkipURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "" && scheme != "http" && scheme != "https" {
		return true
	}
	if skipSchemes[scheme] {
		return true
	}
	if u.Path == "" || u.Path == "/" {
		// anchor-only link on the same page resolves to empty/root path with
		// a fragment only when there is no path component at all combined
		// with a fragment; treat bare "#..." hrefs (no scheme/host) as skip.
		if u.Host == "" && u.Fragment != "" && !strings.HasPrefix(rawURL, "/") {
			return true
		}
	}
	ext := strings.ToLower(pathExt(u.Path))
	return skipExtensions[ext]
}

func pathExt(p string) string {
	if i := strings.LastIndex(p, "."); i >= 0 && i > strings.LastIndex(p, "/") {
		return p[i:]
	}
	return ""
}

// SameDomain reports whether two domains match, www-insensitive and
// case-insensitive, so it accepts raw host strings as well as
// ParsedURL.Domain values.
func SameDomain(d1, d2 string) bool {
	return strings.EqualFold(stripWWW(d1), stripWWW(d2))
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// ResolveRelative resolves href against base and runs it back through
// ValidateSyntactic, returning nil if the result should be skipped or uses
// a disallowed scheme. sameDomainOnly restricts the result to
// base's domain.
func (g *Guard) ResolveRelative(base *ParsedURL, href string, sameDomainOnly bool) *ParsedURL {
	baseURL, err := url.Parse(base.Normalized)
	if err != nil {
		return nil
	}
	hrefURL, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	resolved := baseURL.ResolveReference(hrefURL)

	if ShouldSkipURL(resolved.String()) {
		return nil
	}

	parsed, err := g.ValidateSyntactic(resolved.String())
	if err != nil {
		return nil
	}
	if sameDomainOnly && !SameDomain(parsed.Domain, base.Domain) {
		return nil
	}
	return parsed
}

func buildParsedURL(original string, u *url.URL, scheme, host string) *ParsedURL {
	port := u.Port()
	normalizedHost := host
	if port != "" && !isDefaultPort(scheme, port) {
		normalizedHost = host + ":" + port
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	// Trailing-slash normalization: collapse any trailing slash beyond root.
	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	query := sortedQuery(u.RawQuery)

	normalized := scheme + "://" + normalizedHost + path
	if query != "" {
		normalized += "?" + query
	}

	domain := strings.TrimPrefix(host, "www.")

	return &ParsedURL{
		Original:   original,
		Normalized: normalized,
		Scheme:     scheme,
		Host:       host,
		Authority:  normalizedHost,
		Domain:     domain,
		Port:       port,
		Path:       path,
		Query:      query,
	}
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// sortedQuery re-serializes a raw query string with keys sorted and
// fragment already dropped by url.Parse, giving normalize(u) idempotence.
func sortedQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil || len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
