package views

// SiteConfig holds the page-level settings templates need.
type SiteConfig struct {
	Name      string // page heading and <title>
	Host      string // tracked host shown under the heading
	RefreshMS int64  // list refresh period for the browser, in milliseconds
}

// ListItem is one slot of the top pages list.
type ListItem struct {
	Rank   int
	Title  string
	Visits int
	Filled bool // false until a poll has covered this rank
}

// Referrer is one row of the detail panel's referrer list.
type Referrer struct {
	Domain   string
	Visitors int
}

// Details is the content of the detail panel.
type Details struct {
	Rank        int
	Title       string
	LastUpdated string
	Referrers   []Referrer
}
