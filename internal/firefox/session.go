package firefox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/types"
	"github.com/pierrec/lz4/v4"
)

// ErrReadOnly is returned for tab actions against a session file.
var ErrReadOnly = errors.New("firefox session is read-only")

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if string(data[:len(mozLz4Magic)]) != string(mozLz4Magic) {
		return nil, errors.New("mozlz4: invalid header magic")
	}

	dst := make([]byte, binary.LittleEndian.Uint32(data[8:12]))
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries      []rawEntry `json:"entries"`
	Index        int        `json:"index"`
	LastAccessed int64      `json:"lastAccessed"`
	Image        string     `json:"image"`
	Pinned       bool       `json:"pinned"`
	Hidden       bool       `json:"hidden"`
}

type rawWindow struct {
	Tabs     []rawTab `json:"tabs"`
	Selected int      `json:"selected"` // 1-based
}

type rawSession struct {
	Windows        []rawWindow `json:"windows"`
	SelectedWindow int         `json:"selectedWindow"` // 1-based
}

// ParseSession converts session store JSON into tabs. Tab IDs are 1-based
// positions across all windows. Only the selected tab of the selected
// window is highlighted.
func ParseSession(data []byte) ([]*types.Tab, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	selectedWin := raw.SelectedWindow
	if selectedWin < 1 || selectedWin > len(raw.Windows) {
		selectedWin = 1
	}

	var tabs []*types.Tab
	for winIdx, window := range raw.Windows {
		for tabIdx, rt := range window.Tabs {
			if len(rt.Entries) == 0 || rt.Hidden {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			tab := &types.Tab{
				ID:          len(tabs) + 1,
				URL:         entry.URL,
				Title:       entry.Title,
				FavIconURL:  rt.Image,
				Highlighted: winIdx+1 == selectedWin && tabIdx+1 == window.Selected,
				WindowID:    winIdx + 1,
				Index:       tabIdx,
				Pinned:      rt.Pinned,
			}
			if rt.LastAccessed > 0 {
				tab.LastAccessed = time.UnixMilli(rt.LastAccessed)
			}
			tabs = append(tabs, tab)
		}
	}
	return tabs, nil
}

// ReadSessionFile reads and parses a Firefox session recovery file from the given profile directory.
// It tries recovery.jsonlz4 first (active session), then previous.jsonlz4 (last closed session).
func ReadSessionFile(profileDir string) ([]*types.Tab, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	var data []byte
	var err error
	for _, name := range sessionFiles {
		data, err = os.ReadFile(filepath.Join(backupDir, name))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no session file found in %s", backupDir)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}
	return ParseSession(decompressed)
}

// SessionHost serves a profile's last saved session. It can list tabs but
// not act on them.
type SessionHost struct {
	profileDir string
}

func NewSessionHost(profileDir string) *SessionHost {
	return &SessionHost{profileDir: profileDir}
}

func (h *SessionHost) QueryTabs(ctx context.Context, q types.TabQuery) ([]*types.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabs, err := ReadSessionFile(h.profileDir)
	if err != nil {
		return nil, err
	}
	applog.Info("firefox.session", "profile", h.profileDir, "tabs", len(tabs))
	return filterTabs(tabs, q), nil
}

// filterTabs scopes tabs to the window holding the highlighted tab.
func filterTabs(tabs []*types.Tab, q types.TabQuery) []*types.Tab {
	if !q.ActiveOnly && !q.CurrentWindowOnly {
		return tabs
	}
	window := 1
	for _, tab := range tabs {
		if tab.Highlighted {
			window = tab.WindowID
			break
		}
	}
	var out []*types.Tab
	for _, tab := range tabs {
		if tab.WindowID != window {
			continue
		}
		if q.ActiveOnly && !tab.Highlighted {
			continue
		}
		out = append(out, tab)
	}
	return out
}

func (h *SessionHost) ActivateTab(_ context.Context, id int) error {
	return fmt.Errorf("activate tab %d: %w", id, ErrReadOnly)
}

func (h *SessionHost) RemoveTab(_ context.Context, id int) error {
	return fmt.Errorf("remove tab %d: %w", id, ErrReadOnly)
}
