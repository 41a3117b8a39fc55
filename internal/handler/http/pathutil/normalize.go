// Package pathutil maps request paths onto route templates for metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern pairs a route regex with the template reported in its place.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// Evaluated in order, most specific first.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/admin/services/[^/]+/reset$`), Template: "/admin/services/:name/reset"},
	{Pattern: regexp.MustCompile(`^/health/services/[^/]+$`), Template: "/health/services/:name"},
}

// NormalizePath replaces the service name in gateway routes so that metric labels
// stay bounded. Query strings and a trailing slash are dropped; paths that match
// no pattern are returned as they are.
//
//	NormalizePath("/health/services/wordpress")      // "/health/services/:name"
//	NormalizePath("/admin/services/slack/reset")     // "/admin/services/:name/reset"
//	NormalizePath("/health/services?verbose=1")      // "/health/services"
//	NormalizePath("/metrics")                        // "/metrics"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return path
}

// GetExpectedCardinality returns an upper estimate of distinct path labels:
// one per template plus the static routes.
func GetExpectedCardinality() int {
	staticCount := 6 // /livez, /metrics, /health, /health/services, /health/embeddings, /
	return len(pathPatterns) + staticCount
}
