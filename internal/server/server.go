package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/lotas/tabnav/internal/applog"
	"nhooyr.io/websocket"
)

// Commands understood by the extension.
const (
	ActionQuery    = "query"
	ActionActivate = "activate"
	ActionRemove   = "remove"
)

var (
	ErrNotConnected = errors.New("no extension connected")
	ErrDisconnected = errors.New("extension disconnected")
)

// IncomingMsg is a message from the extension. Command responses carry the
// ID of the command and OK; everything else is an unsolicited event.
type IncomingMsg struct {
	Type  string          `json:"type,omitempty"`
	Tab   json.RawMessage `json:"tab,omitempty"`
	Tabs  json.RawMessage `json:"tabs,omitempty"`
	TabID int             `json:"tabId,omitempty"`
	// Command response fields
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

func (m IncomingMsg) isResponse() bool {
	return m.ID != "" && m.OK != nil
}

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	TabID         int    `json:"tabId,omitempty"`
	Active        bool   `json:"active,omitempty"`
	CurrentWindow bool   `json:"currentWindow,omitempty"`
}

// ExtensionError is a command rejected by the extension.
type ExtensionError struct {
	Action string
	Msg    string
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("extension rejected %s: %s", e.Action, e.Msg)
}

type reply struct {
	msg IncomingMsg
	err error
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	nextID  atomic.Uint64
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	ready   chan struct{} // closed while an extension is attached
	pending map[string]chan reply
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 64),
		ready:   make(chan struct{}),
		pending: make(map[string]chan reply),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of unsolicited messages from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// WaitConnected blocks until an extension connects or ctx is done.
func (s *Server) WaitConnected(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for extension: %w", ctx.Err())
	}
}

// Send writes a command without waiting for its response.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return s.write(ctx, conn, msg)
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg OutgoingMsg) error {
	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Request sends a command and waits for the response with the same ID.
func (s *Server) Request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	msg.ID = "cmd-" + strconv.FormatUint(s.nextID.Add(1), 10)
	ch := make(chan reply, 1)

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, ErrNotConnected
	}
	s.pending[msg.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.write(ctx, conn, msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return IncomingMsg{}, r.err
		}
		if !*r.msg.OK {
			return r.msg, &ExtensionError{Action: msg.Action, Msg: r.msg.Error}
		}
		return r.msg, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

func (s *Server) deliver(msg IncomingMsg) {
	if msg.isResponse() {
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		s.mu.Unlock()
		if ok {
			select {
			case ch <- reply{msg: msg}:
			default:
			}
			return
		}
		applog.Info("ws.orphan", "id", msg.ID)
		return
	}
	select {
	case s.msgs <- msg:
	default:
		applog.Info("ws.dropped", "type", msg.Type)
	}
}

// failPending unblocks every in-flight request after the connection drops.
func (s *Server) failPending() {
	for id, ch := range s.pending {
		select {
		case ch <- reply{err: ErrDisconnected}:
		default:
		}
		delete(s.pending, id)
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // windows with thousands of tabs

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		select {
		case <-s.ready:
		default:
			close(s.ready)
		}
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
				s.ready = make(chan struct{})
				s.failPending()
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			s.deliver(msg)
		}
	})
}

type status struct {
	Connected bool `json:"connected"`
	Port      int  `json:"port"`
}

// Router mounts the WebSocket endpoint and a status probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status{Connected: s.Connected(), Port: s.port}); err != nil {
			applog.Error("status.encode", err)
		}
	})
	r.Handle("/", s.Handler())
	return r
}

// Listen binds the bridge port so address errors surface before serving.
func (s *Server) Listen() (net.Listener, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve runs the bridge on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	applog.Info("server.start", "addr", ln.Addr().String())
	srv := &http.Server{Handler: s.Router()}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe starts the bridge on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
