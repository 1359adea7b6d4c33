package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// Report strings end up in admin dashboards, so anything the strict policy
// would strip is refused instead of written to the chain.
var strictPolicy = bluemonday.StrictPolicy()

// HasMarkup reports whether s contains HTML tags or entity-encoded markup.
func HasMarkup(s string) bool {
	if s == "" {
		return false
	}
	return html.UnescapeString(strictPolicy.Sanitize(s)) != s
}
