package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips all markup from free-text input such as record notes.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
