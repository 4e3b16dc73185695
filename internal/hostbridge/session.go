package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"studytimer/internal/broadcast"
	"studytimer/internal/core/countdown"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxCommandSize = 4096
	eventBuffer    = 256
)

// session is one host connection and the countdown service behind it.
type session struct {
	server   *Server
	conn     *websocket.Conn
	endpoint *broadcast.Endpoint
	service  *countdown.Service
	logger   *zap.Logger
	replies  chan Frame
	done     chan struct{}
}

func (server *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.upgrader.Upgrade(w, r, nil)
	if err != nil {
		server.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	logger := server.logger.With(zap.String("client", r.RemoteAddr))
	endpoint := server.hub.Open(server.config.Channel)
	service := countdown.New(server.countdownConfig(),
		countdown.WithClock(server.clock),
		countdown.WithLogger(logger),
		countdown.WithChannel(endpoint),
	)
	sess := &session{
		server:   server,
		conn:     conn,
		endpoint: endpoint,
		service:  service,
		logger:   logger.With(zap.String("source", service.Source())),
		replies:  make(chan Frame, 8),
		done:     make(chan struct{}),
	}

	if !server.register(sess) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		_ = endpoint.Close()
		return
	}
	defer server.unregister(sess)

	events := service.Subscribe(eventBuffer)
	if err := service.Open(); err != nil {
		sess.logger.Warn("Countdown service failed to open", zap.Error(err))
	}
	sess.logger.Info("Host connected")

	go sess.writeLoop(events)
	sess.readLoop()

	service.Close()
	_ = endpoint.Close()
	<-sess.done
	_ = conn.Close()
	sess.logger.Info("Host disconnected")
}

// readLoop dispatches commands until the connection fails.
func (sess *session) readLoop() {
	sess.conn.SetReadLimit(maxCommandSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Debug("Host connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := sess.dispatch(payload); err != nil {
			sess.logger.Debug("Rejected host command", zap.Error(err))
			sess.reply(errorFrame(err.Error()))
		}
	}
}

func (sess *session) dispatch(payload []byte) error {
	var command Command
	if err := json.Unmarshal(payload, &command); err != nil {
		return fmt.Errorf("malformed command: %w", err)
	}

	switch command.Type {
	case CommandStart:
		duration := sess.server.config.StudySeconds
		if command.Duration != nil {
			duration = *command.Duration
		}
		if err := sess.service.Start(duration); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	case CommandStop:
		sess.service.Stop()
	case CommandSync:
		sess.service.Sync()
	case CommandVisibilityChange:
		sess.service.VisibilityChange()
	case "":
		return errors.New("command type is missing")
	default:
		return fmt.Errorf("unknown command %q", command.Type)
	}
	return nil
}

func (sess *session) reply(frame Frame) {
	select {
	case sess.replies <- frame:
	case <-sess.done:
	}
}

// writeLoop is the only writer on the connection. It exits once the
// service closes its notification channel.
func (sess *session) writeLoop(events <-chan countdown.Notification) {
	defer close(sess.done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	failed := false
	write := func(frame Frame) {
		if failed {
			return
		}
		_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sess.conn.WriteJSON(frame); err != nil {
			failed = true
			sess.logger.Debug("Host write failed", zap.Error(err))
			_ = sess.conn.Close()
		}
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if sess.server.recorder != nil {
				sess.server.recorder.Observe(context.Background(), event)
			}
			write(FrameFor(event))
		case frame := <-sess.replies:
			write(frame)
		case <-ticker.C:
			if failed {
				continue
			}
			if err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				failed = true
				_ = sess.conn.Close()
			}
		}
	}
}
