package firefox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lotas/tabnav/internal/types"
	"github.com/pierrec/lz4/v4"
)

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)

		// Compress with lz4 block compression.
		dst := make([]byte, lz4.CompressBlockBound(len(original)))
		n, err := lz4.CompressBlock(original, dst, nil)
		if err != nil {
			t.Fatalf("lz4.CompressBlock failed: %v", err)
		}
		compressed := dst[:n]

		// Build mozlz4 payload: 8-byte magic + 4-byte LE uint32 size + compressed data.
		magic := []byte("mozLz40\x00")
		sizeBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBytes, uint32(len(original)))

		payload := make([]byte, 0, len(magic)+len(sizeBytes)+len(compressed))
		payload = append(payload, magic...)
		payload = append(payload, sizeBytes...)
		payload = append(payload, compressed...)

		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		// Wrong magic bytes.
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		_, err := DecompressMozLz4(bad)
		if err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		short := []byte("mozLz40")
		_, err := DecompressMozLz4(short)
		if err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	// 2 windows, the second selected. Window 2 selects its second tab.
	// Tab 1 of window 1 has two entries, index=2 (current page is entries[1]).
	session := map[string]interface{}{
		"selectedWindow": 2,
		"windows": []map[string]interface{}{
			{
				"selected": 1,
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://example.com", "title": "Example"},
						},
						"index":        1,
						"lastAccessed": 1707654321000,
						"image":        "https://example.com/favicon.ico",
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index":  2,
						"pinned": true,
					},
					{
						"entries": []map[string]interface{}{},
					},
				},
			},
			{
				"selected": 2,
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{{"url": "https://go.dev", "title": "Go"}},
						"index":   1,
					},
					{
						"entries": []map[string]interface{}{{"url": "https://github.com", "title": "GitHub"}},
						"index":   1,
						"image":   "gh.ico",
					},
				},
			},
		},
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	tabs, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}
	if len(tabs) != 4 {
		t.Fatalf("expected 4 tabs (empty entries skipped), got %d", len(tabs))
	}

	for i, tab := range tabs {
		if tab.ID != i+1 {
			t.Errorf("tab %d: ID = %d", i, tab.ID)
		}
	}

	tab0 := tabs[0]
	if tab0.URL != "https://example.com" || tab0.Title != "Example" {
		t.Errorf("tab0 = %q %q", tab0.URL, tab0.Title)
	}
	if tab0.FavIconURL != "https://example.com/favicon.ico" {
		t.Errorf("tab0 FavIconURL: got %q", tab0.FavIconURL)
	}
	if tab0.LastAccessed.UnixMilli() != 1707654321000 {
		t.Errorf("tab0 LastAccessed: expected 1707654321000, got %d", tab0.LastAccessed.UnixMilli())
	}
	if tab0.Highlighted {
		t.Error("selected tab of an unselected window must not be highlighted")
	}

	// index=2 means entries[1] is the current page.
	if tabs[1].URL != "https://current.com" || !tabs[1].Pinned {
		t.Errorf("tab1 = %+v", tabs[1])
	}
	if !tabs[1].LastAccessed.IsZero() {
		t.Error("missing lastAccessed should stay zero")
	}

	if tabs[3].URL != "https://github.com" || !tabs[3].Highlighted || tabs[3].WindowID != 2 {
		t.Errorf("tab3 = %+v, want highlighted github in window 2", tabs[3])
	}
	if tabs[2].Highlighted {
		t.Error("only one tab is highlighted")
	}
}

func TestFilterTabs(t *testing.T) {
	tabs := []*types.Tab{
		{ID: 1, WindowID: 1},
		{ID: 2, WindowID: 2},
		{ID: 3, WindowID: 2, Highlighted: true},
	}

	if got := filterTabs(tabs, types.TabQuery{}); len(got) != 3 {
		t.Errorf("no filter: %d tabs", len(got))
	}
	got := filterTabs(tabs, types.TabQuery{CurrentWindowOnly: true})
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("current window = %v", got)
	}
	got = filterTabs(tabs, types.TabQuery{ActiveOnly: true})
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("active only = %v", got)
	}
}

func TestSessionHostIsReadOnly(t *testing.T) {
	h := NewSessionHost(t.TempDir())
	ctx := context.Background()
	if err := h.ActivateTab(ctx, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("ActivateTab = %v", err)
	}
	if err := h.RemoveTab(ctx, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("RemoveTab = %v", err)
	}
	if _, err := h.QueryTabs(ctx, types.TabQuery{}); err == nil {
		t.Error("QueryTabs without a session file should fail")
	}
}
