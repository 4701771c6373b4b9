package views

import "strconv"

// Element ids rendered by components.templ that livepages.js relies on.
const (
	PageListID       = "top-pages"
	DetailsID        = "page-details"
	DetailsTitleID   = "page-details-title"
	LastUpdatedID    = "page-details-last-updated"
	ReferrerListID   = "top-referrers-list"
	TopPagesFragment = "/fragments/top-pages"
)

// DetailsPath returns the detail fragment URL for rank.
func DetailsPath(rank int) string {
	return "/pages/" + strconv.Itoa(rank) + "/"
}

// VisitsLabel returns the visits cell text; empty until the slot is populated.
func VisitsLabel(item ListItem) string {
	if !item.Filled {
		return ""
	}
	return strconv.Itoa(item.Visits)
}

func orEmpty(d *Details) Details {
	if d == nil {
		return Details{}
	}
	return *d
}
