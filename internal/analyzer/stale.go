package analyzer

import (
	"time"

	"github.com/lotas/tabnav/internal/types"
)

// Stale returns whole days since last access for tabs idle longer than
// thresholdDays. Tabs without a known access time are never stale.
func Stale(tabs []*types.Tab, thresholdDays int, now time.Time) map[int]int {
	stale := make(map[int]int)
	if thresholdDays <= 0 {
		return stale
	}
	threshold := time.Duration(thresholdDays) * 24 * time.Hour

	for _, tab := range tabs {
		if tab.LastAccessed.IsZero() {
			continue
		}
		age := now.Sub(tab.LastAccessed)
		if age > threshold {
			stale[tab.ID] = int(age.Hours() / 24)
		}
	}
	return stale
}
