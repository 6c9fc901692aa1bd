package popup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/types"
)

// ErrHostActionFailed wraps any rejection reported by the host.
var ErrHostActionFailed = errors.New("host action failed")

// Host is the browser tab API the popup runs against.
type Host interface {
	QueryTabs(ctx context.Context, q types.TabQuery) ([]*types.Tab, error)
	ActivateTab(ctx context.Context, id int) error
	RemoveTab(ctx context.Context, id int) error
}

// ClosedTab is what the journal keeps about a tab closed from the popup.
type ClosedTab struct {
	Group    string
	Tab      types.Tab
	ClosedAt time.Time
}

// Journal records tabs closed through the popup.
type Journal interface {
	RecordClosed(ctx context.Context, c ClosedTab) error
}

// Controller ties a Session to a Host. The session is only mutated after
// the host confirms an action.
type Controller struct {
	host    Host
	journal Journal
	session *Session
	now     func() time.Time
}

// NewController returns a controller with a fresh session. journal may be nil.
func NewController(host Host, journal Journal) *Controller {
	return &Controller{
		host:    host,
		journal: journal,
		session: NewSession(),
		now:     time.Now,
	}
}

// Session returns the controlled session.
func (c *Controller) Session() *Session {
	return c.session
}

// Open queries the current window and renders it.
func (c *Controller) Open(ctx context.Context) error {
	tabs, err := c.Fetch(ctx)
	if err != nil {
		return err
	}
	c.session.Load(tabs)
	return nil
}

// Fetch queries the current window without touching the session.
func (c *Controller) Fetch(ctx context.Context) ([]*types.Tab, error) {
	tabs, err := c.host.QueryTabs(ctx, types.TabQuery{CurrentWindowOnly: true})
	if err != nil {
		applog.Error("host.query", err)
		return nil, fmt.Errorf("%w: query tabs: %w", ErrHostActionFailed, err)
	}
	return tabs, nil
}

// Switch asks the host to focus a listed tab. The popup state does not change.
func (c *Controller) Switch(ctx context.Context, id int) error {
	if _, ok := c.session.Tab(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTab, id)
	}
	return c.Activate(ctx, id)
}

// Activate is Switch without the session lookup.
func (c *Controller) Activate(ctx context.Context, id int) error {
	if err := c.host.ActivateTab(ctx, id); err != nil {
		applog.Error("host.activate", err, "tab", id)
		return fmt.Errorf("%w: activate tab %d: %w", ErrHostActionFailed, id, err)
	}
	applog.Info("tab.switched", "tab", id)
	return nil
}

// Remove asks the host to close a tab without touching the session. Callers
// apply the result with Applied once the host confirms.
func (c *Controller) Remove(ctx context.Context, id int) error {
	if err := c.host.RemoveTab(ctx, id); err != nil {
		applog.Error("host.remove", err, "tab", id)
		return fmt.Errorf("%w: remove tab %d: %w", ErrHostActionFailed, id, err)
	}
	return nil
}

// Applied drops a tab the host has closed from the session.
func (c *Controller) Applied(id int) (ClosedTab, bool) {
	key, tab, ok := c.session.index.Find(id)
	if !ok {
		return ClosedTab{}, false
	}
	closed := ClosedTab{Group: key, Tab: *tab, ClosedAt: c.now()}
	c.session.TabClosed(id)
	applog.Info("tab.closed", "tab", id, "group", key)
	return closed, true
}

// Record journals a closed tab. Journal failures are logged, not returned.
func (c *Controller) Record(ctx context.Context, closed ClosedTab) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordClosed(ctx, closed); err != nil {
		applog.Error("journal.record", err, "tab", closed.Tab.ID)
	}
}

// Delete asks confirm, removes the tab through the host and only then drops
// it from the session. A declined confirmation returns false and no error;
// a nil confirm counts as confirmed.
func (c *Controller) Delete(ctx context.Context, id int, confirm func(prompt string) bool) (bool, error) {
	tab, err := c.session.CheckDeletable(id)
	if err != nil {
		return false, err
	}
	if confirm != nil && !confirm(ConfirmPrompt(tab)) {
		return false, nil
	}
	if err := c.Remove(ctx, id); err != nil {
		return false, err
	}
	if closed, ok := c.Applied(id); ok {
		c.Record(ctx, closed)
	}
	return true, nil
}
