package http

import "net/url"

const editSuffix = "/edit"

// pageURL returns the view URL of the named page.
func pageURL(name string) string {
	return "/" + url.PathEscape(name)
}

// editURL returns the edit form URL of the named page.
func editURL(name string) string {
	return pageURL(name) + editSuffix
}
