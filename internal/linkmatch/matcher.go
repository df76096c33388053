// Package linkmatch finds links to supported video platforms in free-form text.
package linkmatch

import (
	"regexp"
	"strings"
)

// DefaultHosts are the platforms the bot downloads from.
var DefaultHosts = []string{
	"youtube.com",
	"youtu.be",
	"facebook.com",
	"fb.watch",
	"instagram.com",
	"tiktok.com",
}

// Matcher locates the first allow-listed URL in a block of text.
type Matcher struct {
	re    *regexp.Regexp
	hosts map[string]struct{}
}

// New creates a Matcher for the given hosts. An empty list means DefaultHosts.
func New(hosts ...string) *Matcher {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	quoted := make([]string, 0, len(hosts))
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.ToLower(h), "www.")
		quoted = append(quoted, regexp.QuoteMeta(h))
		set[h] = struct{}{}
	}

	// Host must be followed by a path so "youtube.com.evil.net" never matches.
	pattern := `(?i)https?://(?:www\.)?(?:` + strings.Join(quoted, "|") + `)/\S+`

	return &Matcher{
		re:    regexp.MustCompile(pattern),
		hosts: set,
	}
}

// Find returns the first allow-listed URL in text. The path is taken as
// written; malformed percent-escapes are left for the extractor to judge.
func (m *Matcher) Find(text string) (string, bool) {
	for _, candidate := range m.re.FindAllString(text, -1) {
		if m.allowed(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// allowed re-checks the scheme and host of a regex candidate, which always
// has the form scheme://host/path with no port or userinfo.
func (m *Matcher) allowed(raw string) bool {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return false
	}
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host, _, _ := strings.Cut(rest, "/")
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	_, ok = m.hosts[host]
	return ok
}
