package templates

import "time"

// SiteName is shown in the page header and document titles.
const SiteName = "tinywiki"

// DefaultFooterNote is shown in the shared layout.
const DefaultFooterNote = "Pages are written in Markdown. Anyone can edit any page."

// ViewPageData contains the values for a rendered wiki page.
type ViewPageData struct {
	Name    string
	HTML    string
	EditURL string
	Created time.Time
	Edited  *time.Time
}

// EditPageData contains the values for the edit form of a page.
type EditPageData struct {
	Name      string
	Contents  string
	ActionURL string
	ViewURL   string
	Exists    bool
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	StatusLabel string
	Message     string
}
