package discover

import (
	"net/url"
	"regexp"
	"strings"
)

var datePathPattern = regexp.MustCompile(`/20\d{2}/`)

// excludedSegments are path segments that mark listing, taxonomy or utility
// pages rather than individual posts.
var excludedSegments = map[string]struct{}{
	"category": {}, "categories": {}, "tag": {}, "tags": {},
	"author": {}, "page": {}, "feed": {}, "search": {},
	"wp-content": {}, "wp-admin": {}, "wp-json": {},
	"login": {}, "signup": {}, "cart": {}, "checkout": {},
	"about": {}, "contact": {}, "privacy": {}, "terms": {},
}

var excludedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp",
	".pdf", ".zip", ".css", ".js", ".xml", ".ico", ".mp4",
}

// looksLikePost reports whether a link plausibly points at an individual
// post on the same host as the seed page. It checks path depth, date
// patterns and hyphenated slugs, and rejects taxonomy and asset URLs.
func looksLikePost(seedURL, link string) bool {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !strings.EqualFold(u.Hostname(), seed.Hostname()) {
		return false
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false
	}
	lowerPath := strings.ToLower(path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}

	segments := strings.Split(lowerPath, "/")
	for _, seg := range segments {
		if _, ok := excludedSegments[seg]; ok {
			return false
		}
	}

	if datePathPattern.MatchString(u.Path) {
		return true
	}
	last := segments[len(segments)-1]
	if strings.Count(last, "-") >= 2 {
		return true
	}
	return len(segments) >= 2
}
