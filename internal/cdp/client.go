// Package cdp runs the popup against a Chromium browser started with
// --remote-debugging-port.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/types"
)

// DefaultURL is the DevTools HTTP endpoint of a locally debugged browser.
const DefaultURL = "http://127.0.0.1:9222"

const requestTimeout = 10 * time.Second

var ErrUnknownTarget = errors.New("unknown target")

// targetActions runs browser-level Target commands.
type targetActions interface {
	Activate(ctx context.Context, id target.ID) error
	Close(ctx context.Context, id target.ID) error
}

// Client lists page targets and activates or closes them. Target IDs are
// strings in CDP; the client hands out small integers instead and keeps
// them stable for the life of the client.
type Client struct {
	httpBase string
	http     *http.Client
	actions  targetActions

	mu      sync.Mutex
	ids     map[target.ID]int
	targets map[int]target.ID
	nextID  int
}

// New returns a client for the DevTools endpoint at baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		httpBase: strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: requestTimeout},
		ids:      make(map[target.ID]int),
		targets:  make(map[int]target.ID),
	}
	c.actions = &browserActions{wsURL: c.browserWSURL}
	return c
}

type listEntry struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FaviconURL string `json:"faviconUrl"`
}

// QueryTabs lists page targets. DevTools orders them by recent activity, so
// the first page is reported as the highlighted tab. Window scoping is not
// available through discovery and CurrentWindowOnly is ignored.
func (c *Client) QueryTabs(ctx context.Context, q types.TabQuery) ([]*types.Tab, error) {
	if q.CurrentWindowOnly {
		applog.Info("cdp.window.ignored")
	}

	var entries []listEntry
	if err := c.getJSON(ctx, "/json/list", &entries); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var tabs []*types.Tab
	for _, e := range entries {
		if e.Type != "page" {
			continue
		}
		tab := &types.Tab{
			ID:         c.idFor(target.ID(e.ID)),
			Title:      e.Title,
			URL:        e.URL,
			FavIconURL: e.FaviconURL,
			Index:      len(tabs),
		}
		if len(tabs) == 0 {
			tab.Highlighted = true
		} else if q.ActiveOnly {
			break
		}
		tabs = append(tabs, tab)
	}
	applog.Info("cdp.listed", "targets", len(entries), "pages", len(tabs))
	return tabs, nil
}

// idFor must be called with mu held.
func (c *Client) idFor(tid target.ID) int {
	if id, ok := c.ids[tid]; ok {
		return id
	}
	c.nextID++
	c.ids[tid] = c.nextID
	c.targets[c.nextID] = tid
	return c.nextID
}

func (c *Client) targetFor(id int) (target.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tid, ok := c.targets[id]
	if !ok {
		return "", fmt.Errorf("%w: tab %d", ErrUnknownTarget, id)
	}
	return tid, nil
}

// ActivateTab brings a page target to the front.
func (c *Client) ActivateTab(ctx context.Context, id int) error {
	tid, err := c.targetFor(id)
	if err != nil {
		return err
	}
	if err := c.actions.Activate(ctx, tid); err != nil {
		return fmt.Errorf("activate target %s: %w", tid, err)
	}
	return nil
}

// RemoveTab closes a page target.
func (c *Client) RemoveTab(ctx context.Context, id int) error {
	tid, err := c.targetFor(id)
	if err != nil {
		return err
	}
	if err := c.actions.Close(ctx, tid); err != nil {
		return fmt.Errorf("close target %s: %w", tid, err)
	}

	c.mu.Lock()
	delete(c.targets, id)
	delete(c.ids, tid)
	c.mu.Unlock()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cdp %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cdp %s: HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("cdp %s: %w", path, err)
	}
	return nil
}

// browserWSURL fetches the WebSocket debugger URL from /json/version.
func (c *Client) browserWSURL(ctx context.Context) (string, error) {
	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := c.getJSON(ctx, "/json/version", &info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", errors.New("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

// browserActions opens a short-lived browser connection per command.
type browserActions struct {
	wsURL func(ctx context.Context) (string, error)
}

func (b *browserActions) run(ctx context.Context, action func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	wsURL, err := b.wsURL(ctx)
	if err != nil {
		return err
	}
	browser, err := chromedp.NewBrowser(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	return action(cdp.WithExecutor(ctx, browser))
}

func (b *browserActions) Activate(ctx context.Context, id target.ID) error {
	return b.run(ctx, func(ctx context.Context) error {
		return target.ActivateTarget(id).Do(ctx)
	})
}

func (b *browserActions) Close(ctx context.Context, id target.ID) error {
	return b.run(ctx, func(ctx context.Context) error {
		return target.CloseTarget(id).Do(ctx)
	})
}
