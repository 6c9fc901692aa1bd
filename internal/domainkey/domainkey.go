// Package domainkey derives the navigation group key of a tab from its URL.
package domainkey

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/lotas/tabnav/internal/types"
)

// Others is the catch-all group key.
const Others = "others"

// suspendedMarker is the page tab-suspender extensions park a tab on; the
// original address rides along in a uri= parameter.
const suspendedMarker = "suspended.html"

var (
	errNoScheme = errors.New("missing scheme")
	errNoHost   = errors.New("missing host")
)

// MalformedURLError reports a tab URL that cannot be parsed.
type MalformedURLError struct {
	URL string
	Err error
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed tab URL %q: %v", e.URL, e.Err)
}

func (e *MalformedURLError) Unwrap() error {
	return e.Err
}

// Key returns the group key for a tab. Malformed URLs fall back to Others.
func Key(tab *types.Tab) string {
	key, err := Extract(tab)
	if err != nil {
		return Others
	}
	return key
}

// Extract returns the group key for a tab:
//
//   - no favicon: Others
//   - suspended tab: full hostname of the embedded original URL
//   - localhost: Others
//   - otherwise the second-to-last hostname label (mail.google.com -> google)
//
// The last rule misgroups multi-part public suffixes (site.co.uk -> co).
func Extract(tab *types.Tab) (string, error) {
	if tab.FavIconURL == "" {
		return Others, nil
	}

	if embedded, ok := suspendedTarget(tab.URL); ok {
		host, err := hostname(embedded)
		if err != nil {
			return Others, err
		}
		return host, nil
	}

	host, err := hostname(tab.URL)
	if err != nil {
		return Others, err
	}
	if host == "localhost" {
		return Others, nil
	}
	return siteLabel(host), nil
}

// suspendedTarget returns the original URL wrapped by a tab-suspender page.
func suspendedTarget(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "chrome-extension://") || !strings.Contains(raw, suspendedMarker) {
		return "", false
	}
	for _, sep := range []string{"&uri=", "#uri=", "?uri="} {
		if i := strings.Index(raw, sep); i >= 0 {
			return raw[i+len(sep):], true
		}
	}
	return "", false
}

func hostname(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &MalformedURLError{URL: raw, Err: err}
	}
	if u.Scheme == "" {
		return "", &MalformedURLError{URL: raw, Err: errNoScheme}
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", &MalformedURLError{URL: raw, Err: errNoHost}
	}
	return host, nil
}

func siteLabel(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return labels[len(labels)-2]
}
