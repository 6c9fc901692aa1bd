package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabnav/internal/types"
	"nhooyr.io/websocket"
)

// dialExtension connects a fake extension and waits until the server sees it.
func dialExtension(t *testing.T, srv *Server, h http.Handler) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	if err := srv.WaitConnected(ctx); err != nil {
		t.Fatalf("WaitConnected: %v", err)
	}
	return conn, ctx
}

// answer reads one command and replies with the response built by fn.
func answer(ctx context.Context, conn *websocket.Conn, fn func(OutgoingMsg) map[string]any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	var cmd OutgoingMsg
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}
	resp := fn(cmd)
	resp["id"] = cmd.ID
	out, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, out)
}

func TestServerAcceptsConnection(t *testing.T) {
	srv := New(0) // port 0 = pick any free port
	conn, ctx := dialExtension(t, srv, srv.Handler())

	data, _ := json.Marshal(IncomingMsg{Type: "tab.removed", TabID: 4})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-srv.Messages():
		if msg.Type != "tab.removed" || msg.TabID != 4 {
			t.Errorf("got %+v, want tab.removed for 4", msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestQueryTabs(t *testing.T) {
	srv := New(0)
	conn, ctx := dialExtension(t, srv, srv.Handler())

	got := make(chan OutgoingMsg, 1)
	go answer(ctx, conn, func(cmd OutgoingMsg) map[string]any {
		got <- cmd
		return map[string]any{
			"ok": true,
			"tabs": []map[string]any{
				{"id": 11, "url": "https://go.dev", "title": "Go", "favIconUrl": "go.ico", "highlighted": true, "windowId": 1, "index": 0, "lastAccessed": 1700000000000.5},
				{"id": 12, "url": "https://github.com", "title": "GitHub", "windowId": 1, "index": 1},
			},
		}
	})

	tabs, err := srv.QueryTabs(ctx, types.TabQuery{CurrentWindowOnly: true})
	if err != nil {
		t.Fatalf("QueryTabs: %v", err)
	}
	cmd := <-got
	if cmd.Action != ActionQuery || !cmd.CurrentWindow || cmd.Active || cmd.ID == "" {
		t.Errorf("command = %+v", cmd)
	}
	if len(tabs) != 2 {
		t.Fatalf("got %d tabs", len(tabs))
	}
	if tabs[0].ID != 11 || !tabs[0].Highlighted || tabs[0].FavIconURL != "go.ico" || tabs[0].LastAccessed.IsZero() {
		t.Errorf("tab[0] = %+v", tabs[0])
	}
	if tabs[1].Highlighted || tabs[1].Index != 1 {
		t.Errorf("tab[1] = %+v", tabs[1])
	}
}

func TestRemoveTabRejected(t *testing.T) {
	srv := New(0)
	conn, ctx := dialExtension(t, srv, srv.Handler())

	go answer(ctx, conn, func(cmd OutgoingMsg) map[string]any {
		return map[string]any{"ok": false, "error": "No tab with id: 7"}
	})

	err := srv.RemoveTab(ctx, 7)
	var extErr *ExtensionError
	if !errors.As(err, &extErr) {
		t.Fatalf("RemoveTab error = %v, want ExtensionError", err)
	}
	if extErr.Action != ActionRemove || extErr.Msg != "No tab with id: 7" {
		t.Errorf("ExtensionError = %+v", extErr)
	}
}

func TestActivateTab(t *testing.T) {
	srv := New(0)
	conn, ctx := dialExtension(t, srv, srv.Handler())

	got := make(chan OutgoingMsg, 1)
	go answer(ctx, conn, func(cmd OutgoingMsg) map[string]any {
		got <- cmd
		return map[string]any{"ok": true}
	})

	if err := srv.ActivateTab(ctx, 42); err != nil {
		t.Fatalf("ActivateTab: %v", err)
	}
	if cmd := <-got; cmd.Action != ActionActivate || cmd.TabID != 42 {
		t.Errorf("command = %+v", cmd)
	}
}

func TestRequestNotConnected(t *testing.T) {
	srv := New(0)
	if _, err := srv.QueryTabs(context.Background(), types.TabQuery{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("QueryTabs error = %v, want ErrNotConnected", err)
	}
	if err := srv.Send(OutgoingMsg{Action: ActionQuery}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send error = %v", err)
	}
}

func TestRequestFailsOnDisconnect(t *testing.T) {
	srv := New(0)
	conn, ctx := dialExtension(t, srv, srv.Handler())

	go func() {
		conn.Read(ctx)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	err := srv.RemoveTab(ctx, 1)
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("RemoveTab error = %v, want ErrDisconnected", err)
	}
}

func TestWaitConnectedTimeout(t *testing.T) {
	srv := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := srv.WaitConnected(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitConnected = %v", err)
	}
}

func TestStatusRoute(t *testing.T) {
	srv := New(19191)
	dialExtension(t, srv, srv.Router())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var got status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Connected || got.Port != 19191 {
		t.Errorf("status = %+v", got)
	}
}

func TestListenAndServe(t *testing.T) {
	srv := New(0)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}

	_, port, _ := strings.Cut(ln.Addr().String(), ":")
	busy := New(mustAtoi(t, port))
	if _, err := busy.Listen(); err == nil {
		t.Error("second Listen on a bound port succeeded")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}
