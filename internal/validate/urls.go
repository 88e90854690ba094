package validate

import "strings"

// IsPDFLike reports whether a URL or filename looks like it points at a PDF: it ends
// with ".pdf" (any case), or ".pdf" is immediately followed by a query or fragment.
// The check is a hint for whether a download is worth attempting; it says nothing
// about what the server will actually return.
func IsPDFLike(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if strings.HasSuffix(lower, ".pdf") {
		return true
	}
	return strings.Contains(lower, ".pdf?") || strings.Contains(lower, ".pdf#")
}
