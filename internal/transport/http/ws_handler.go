package http

import (
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/config"
	"github.com/anochat/anochat-server/internal/core"
)

const sendQueueSize = 32

// WSHandler upgrades HTTP connections and bridges them to the room
// coordinator.
type WSHandler struct {
	coord *core.Coordinator
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(coord *core.Coordinator, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{coord: coord, cfg: cfg, log: logger}
}

// wsConn adapts one websocket connection to core.Conn: a buffered
// outbound queue drained by the write loop, and a terminal shutdown
// signal the coordinator can trip.
type wsConn struct {
	transportID string
	out         chan []byte

	once   sync.Once
	closed chan struct{}
	reason string
}

func newWSConn(transportID string) *wsConn {
	return &wsConn{
		transportID: transportID,
		out:         make(chan []byte, sendQueueSize),
		closed:      make(chan struct{}),
	}
}

func (c *wsConn) TransportID() string { return c.transportID }

// Send enqueues without blocking; a full queue drops the payload so a
// slow receiver cannot stall the coordinator.
func (c *wsConn) Send(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- payload:
		return true
	default:
		return false
	}
}

// Shut is terminal: the write loop drains what is already queued for
// this connection and then closes the socket.
func (c *wsConn) Shut(reason string) {
	c.once.Do(func() {
		c.reason = reason
		close(c.closed)
	})
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, acceptOptions(h.cfg.AllowedOrigins))
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	wc := newWSConn(transportID(r.RemoteAddr))
	h.log.Debug().Str("transport_id", wc.transportID).Msg("ws connection accepted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Disconnect exactly once, after both loops have stopped touching the
	// connection. Frame and disconnect handling for one connection are
	// strictly ordered because both run on this goroutine's exit path.
	defer h.coord.Disconnect(wc)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, wc)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, wc)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if wc.reason != "" {
		status = websocket.StatusPolicyViolation
		reason = wc.reason
	} else if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("transport_id", wc.transportID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn) error {
	limiter := newFrameLimiter(h.cfg.FramesPerMinute)
	defer limiter.stop()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		select {
		case <-wc.closed:
			// Closed connections never retry within the same handle.
			return nil
		default:
		}
		if !limiter.allow() {
			h.log.Debug().Str("transport_id", wc.transportID).Msg("frame rate limit exceeded, dropping")
			continue
		}
		if err := h.coord.HandleFrame(wc, data); err != nil {
			h.log.Debug().Err(err).Str("transport_id", wc.transportID).Msg("frame rejected")
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn) error {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case payload := <-wc.out:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				h.log.Error().Err(err).Str("transport_id", wc.transportID).Msg("write ws payload")
				return err
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingInterval/2)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Warn().Err(err).Str("transport_id", wc.transportID).Msg("ws ping failed")
				return err
			}
		case <-wc.closed:
			// Flush whatever the coordinator queued before the shutdown
			// (the systemFailure envelope), then stop.
			for {
				select {
				case payload := <-wc.out:
					_ = conn.Write(ctx, websocket.MessageText, payload)
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// transportID derives the per-connection identifier from the remote TCP
// port, falling back to a short random id when the address is not
// host:port shaped (some proxies, unix sockets).
func transportID(remoteAddr string) string {
	if _, port, err := net.SplitHostPort(remoteAddr); err == nil && port != "" {
		return port
	}
	return uuid.NewString()[:8]
}

func acceptOptions(allowedOrigins []string) *websocket.AcceptOptions {
	if len(allowedOrigins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	patterns := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		host := origin
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		patterns = append(patterns, host)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
