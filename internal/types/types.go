package types

import "time"

// DefaultIcon is shown for a group whose first tab has no favicon.
const DefaultIcon = "icon.png"

// Tab represents a single browser tab as reported by the host.
type Tab struct {
	ID          int
	Title       string
	URL         string
	FavIconURL  string // empty if the host reported none
	Highlighted bool   // the active tab of the window at open time

	WindowID     int
	Index        int
	Pinned       bool
	LastAccessed time.Time
}

// TabQuery filters a host tab listing.
type TabQuery struct {
	ActiveOnly        bool
	CurrentWindowOnly bool
}

// NavEntry is one item of the side navigation: a group of tabs.
type NavEntry struct {
	Ordinal     int // position in group iteration order, valid for one render
	Key         string
	Icon        string
	Highlighted bool // group holds the highlighted tab
	Count       int
}

// Row is one rendered tab of the expanded group.
type Row struct {
	Tab        *Tab
	Switchable bool
	Deletable  bool
}

// Source selects which host backs the popup.
type Source string

const (
	SourceBridge  Source = "bridge"
	SourceCDP     Source = "cdp"
	SourceFirefox Source = "firefox"
)

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}
