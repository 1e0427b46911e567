package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientSession is one connected learner and the environment it drives.
type ClientSession struct {
	ID          string
	conn        *websocket.Conn
	env         *env.Environment
	logger      log.Log
	writeWait   time.Duration
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix nanos

	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if int(atomic.LoadInt64(&s.clientCount)) >= s.config.MaxClients {
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	id := uuid.NewString()
	n := atomic.AddUint64(&s.totalSessions, 1)
	environment, err := s.newEnvironment(id, n)
	if err != nil {
		s.logger.Error("Failed to create environment", log.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "environment unavailable"))
		_ = conn.Close()
		return
	}

	session := &ClientSession{
		ID:          id,
		conn:        conn,
		env:         environment,
		logger:      s.logger.With(log.String("client_id", id)),
		writeWait:   s.config.WriteTimeout,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now().UnixNano(),
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	s.clients.Store(session.ID, session)
	atomic.AddInt64(&s.clientCount, 1)

	s.logger.Info("Client connected",
		log.String("client_id", session.ID),
		log.String("remote_addr", r.RemoteAddr),
		log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	s.handleClient(session)
}

// handleClient serves requests until the connection drops.
func (s *Server) handleClient(session *ClientSession) {
	defer func() {
		s.clients.Delete(session.ID)
		atomic.AddInt64(&s.clientCount, -1)
		session.close("")

		s.logger.Info("Client disconnected",
			log.String("client_id", session.ID),
			log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))
	}()

	session.logger.Debug("Client handler started")

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.logger.Warn("Failed to receive message", log.Error(err))
			}
			break
		}
		atomic.StoreInt64(&session.LastSeen, time.Now().UnixNano())

		resp := session.handleMessage(data)
		if err := session.write(resp); err != nil {
			session.logger.Warn("Failed to send response", log.Error(err))
			break
		}
	}

	session.logger.Debug("Client handler stopped")
}

// handleMessage decodes one request and runs it against the environment.
func (cs *ClientSession) handleMessage(data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(0, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
	}

	cs.logger.Debug("Handling message", log.String("type", req.Type), log.Uint64("seq", req.Seq))

	switch req.Type {
	case MessageReset:
		res := cs.env.Reset()
		return Response{Type: MessageObservation, Seq: req.Seq, Result: &res}
	case MessageStep:
		res, err := cs.env.Step(req.Action, req.Dt)
		if err != nil {
			if !isClientError(err) {
				cs.logger.Error("Step failed", log.Error(err))
			}
			return errorResponse(req.Seq, err)
		}
		return Response{Type: MessageObservation, Seq: req.Seq, Result: &res}
	case MessageInfo:
		info := cs.env.Info()
		return Response{Type: MessageInfo, Seq: req.Seq, Info: &info}
	case MessageCollision:
		cs.env.ReportCollision()
		return Response{Type: MessageAck, Seq: req.Seq}
	default:
		return errorResponse(req.Seq, fmt.Errorf("%w: %q", ErrUnknownMessage, req.Type))
	}
}

func isClientError(err error) bool {
	switch errorCode(err) {
	case CodeInternal:
		return false
	default:
		return true
	}
}

func (cs *ClientSession) write(resp Response) error {
	if cs.writeWait > 0 {
		_ = cs.conn.SetWriteDeadline(time.Now().Add(cs.writeWait))
	}
	return cs.conn.WriteJSON(resp)
}

// close sends a close frame when a reason is given and drops the connection.
// It is safe to call from any goroutine.
func (cs *ClientSession) close(reason string) {
	cs.closeOnce.Do(func() {
		if reason != "" {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
			if err := cs.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil &&
				!errors.Is(err, websocket.ErrCloseSent) {
				cs.logger.Debug("Close frame not sent", log.Error(err))
			}
		}
		_ = cs.conn.Close()
	})
}
