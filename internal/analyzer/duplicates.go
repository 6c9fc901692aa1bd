package analyzer

import (
	"net/url"
	"sort"
	"strings"

	"github.com/lotas/tabnav/internal/types"
)

// NormalizeURL drops the fragment, sorts query parameters and trims a
// trailing slash from non-root paths.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	params := u.Query()
	for k := range params {
		sort.Strings(params[k])
	}
	u.RawQuery = params.Encode()
	result := u.String()
	if strings.HasSuffix(result, "/") && result != u.Scheme+"://"+u.Host+"/" {
		result = strings.TrimRight(result, "/")
	}
	return result
}

// Duplicates returns the IDs of tabs whose normalized URL is shared with
// another tab.
func Duplicates(tabs []*types.Tab) map[int]bool {
	byURL := make(map[string][]int)
	for _, tab := range tabs {
		normalized := NormalizeURL(tab.URL)
		byURL[normalized] = append(byURL[normalized], tab.ID)
	}
	dups := make(map[int]bool)
	for _, ids := range byURL {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			dups[id] = true
		}
	}
	return dups
}
