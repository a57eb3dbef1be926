package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"truthengine/internal/config"
	"truthengine/internal/logging"
	"truthengine/internal/session"
)

// Server exposes the verification pipeline over websocket connections.
// One connection can carry many sessions over its lifetime; one session
// fault never closes the connection.
type Server struct {
	cfg     *config.Config
	manager *session.Manager

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer builds the websocket front end over a session manager.
func NewServer(cfg *config.Config, manager *session.Manager) *Server {
	return &Server{
		cfg:     cfg,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The orchestration core carries no auth; origin policy
			// belongs to the deployment in front of it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	s.httpSrv = &http.Server{Addr: s.cfg.Stream.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logging.Stream("listening on %s", s.cfg.Stream.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// ServeHTTP upgrades the request and runs the connection loops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Stream("upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &clientConn{
		ws:           ws,
		out:          make(chan []byte, 256),
		done:         make(chan struct{}),
		writeTimeout: s.cfg.WriteTimeout(),
	}
	logging.Stream("client connected from %s", r.RemoteAddr)

	go c.writePump(s.cfg.PingInterval())
	c.sendFrame(MsgConnectionEstablished, nil)
	s.readLoop(c)

	c.close()
	logging.Stream("client disconnected from %s", r.RemoteAddr)
}

// clientConn is one websocket connection. Outbound frames funnel through
// a single write pump so delivery stays FIFO.
type clientConn struct {
	ws           *websocket.Conn
	out          chan []byte
	writeTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	cancels []func()
}

func (c *clientConn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// send queues one frame for the write pump.
func (c *clientConn) send(frame []byte) {
	select {
	case c.out <- frame:
	case <-c.done:
	}
}

func (c *clientConn) sendFrame(tag string, payload any) {
	frame, err := EncodeFrame(tag, payload)
	if err != nil {
		logging.Stream("encode %s failed: %v", tag, err)
		return
	}
	c.send(frame)
}

// close tears down the connection. In-flight sessions keep running
// server-side; only the event subscriptions are detached.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		cancels := c.cancels
		c.cancels = nil
		c.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		_ = c.ws.Close()
	})
}

func (s *Server) readLoop(c *clientConn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := DecodeInbound(data)
		if err != nil {
			// Rejected without touching any session state.
			c.sendFrame(MsgProtocolError, map[string]string{"error": err.Error()})
			continue
		}
		s.dispatch(c, msg)
	}
}

// dispatch is the exhaustive switch over the inbound union.
func (s *Server) dispatch(c *clientConn, msg Inbound) {
	switch m := msg.(type) {
	case StartTextVerification:
		s.attach(c, s.manager.StartText(m.Text))

	case StartImageVerification:
		s.attach(c, s.manager.StartDocument(m.Image, m.Filename))

	case SubmitFollowUpAnswers:
		if err := s.manager.SubmitAnswers(m.SessionID, m.Answers); err != nil {
			c.sendFrame(MsgProtocolError, map[string]string{
				"session_id": m.SessionID,
				"error":      err.Error(),
			})
		}

	case ResumeSession:
		sess, err := s.manager.Resume(m.SessionID)
		if err != nil {
			c.sendFrame(MsgProtocolError, map[string]string{
				"session_id": m.SessionID,
				"error":      err.Error(),
			})
			return
		}
		s.attach(c, sess)

	case Ping:
		c.sendFrame(MsgPong, nil)

	default:
		// A variant decoded without a dispatch arm must surface, not
		// vanish.
		c.sendFrame(MsgProtocolError, map[string]string{
			"error": fmt.Sprintf("unhandled message type %T", msg),
		})
	}
}

// attach subscribes the connection to a session: snapshot first, then
// live events until the session or the connection ends. A terminal
// session's snapshot already carries the final result.
func (s *Server) attach(c *clientConn, sess *session.Session) {
	snap, events, cancel := sess.Subscribe()

	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	c.sendFrame(MsgSessionSnapshot, snap)

	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				frame, err := EncodeEvent(ev)
				if err != nil {
					logging.Stream("session %s: encode %s failed: %v", ev.SessionID, ev.Kind, err)
					continue
				}
				c.send(frame)
			case <-c.done:
				return
			}
		}
	}()
}
