package apiutil

import (
	"github.com/microcosm-cc/bluemonday"
)

// ugcPolicy allows the rich-text subset Volto editors produce.
var ugcPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips disallowed markup from a rich-text body.
func SanitizeHTML(body string) string {
	return ugcPolicy.Sanitize(body)
}
