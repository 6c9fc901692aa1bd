package server

import (
	"context"

	"github.com/lotas/tabnav/internal/types"
)

// QueryTabs asks the extension for tabs matching q.
func (s *Server) QueryTabs(ctx context.Context, q types.TabQuery) ([]*types.Tab, error) {
	resp, err := s.Request(ctx, OutgoingMsg{
		Action:        ActionQuery,
		Active:        q.ActiveOnly,
		CurrentWindow: q.CurrentWindowOnly,
	})
	if err != nil {
		return nil, err
	}
	return ParseTabs(resp.Tabs)
}

// ActivateTab focuses a tab.
func (s *Server) ActivateTab(ctx context.Context, id int) error {
	_, err := s.Request(ctx, OutgoingMsg{Action: ActionActivate, TabID: id})
	return err
}

// RemoveTab closes a tab.
func (s *Server) RemoveTab(ctx context.Context, id int) error {
	_, err := s.Request(ctx, OutgoingMsg{Action: ActionRemove, TabID: id})
	return err
}
