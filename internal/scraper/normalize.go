package scraper

import "strings"

var invalidAuthors = map[string]struct{}{
	"anon":      {},
	"[deleted]": {},
	"unknown":   {},
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
}

// NormalizePermalink ensures a leading slash and strips any trailing slash.
func NormalizePermalink(p string) string {
	if p == "" {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// IsImageURL reports whether url ends in a recognized image extension,
// ignoring a trailing query string.
func IsImageURL(url string) bool {
	u := url
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsValidAuthor rejects the known placeholder author values.
func IsValidAuthor(author string) bool {
	if author == "" {
		return false
	}
	_, invalid := invalidAuthors[strings.ToLower(author)]
	return !invalid
}

// UnescapeHTML replaces the handful of HTML entities Reddit-style markup
// commonly emits. Not a general HTML-entity decoder by design — the
// source format only ever uses these five.
func UnescapeHTML(s string) string {
	for entity, replacement := range htmlEntities {
		s = strings.ReplaceAll(s, entity, replacement)
	}
	return s
}

var trailingPunctuation = ".,)];"

// StripTrailingPunctuation repeatedly removes trailing `.`, `,`, `)`,
// `]`, `;` from a URL, undoing the punctuation a sentence wraps around a
// bare link.
func StripTrailingPunctuation(url string) string {
	for len(url) > 0 && strings.ContainsRune(trailingPunctuation, rune(url[len(url)-1])) {
		url = url[:len(url)-1]
	}
	return url
}
