package sources

import (
	"net/url"
	"strings"
)

// EscapeDOI path-escapes each segment of a DOI while keeping its slashes, so it can be
// appended to REST paths such as /works/{doi}.
func EscapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// JoinURL appends path to base, avoiding a doubled or missing slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
