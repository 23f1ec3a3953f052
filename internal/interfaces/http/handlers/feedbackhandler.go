package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/orris-inc/storefront/internal/application/feedback"
	"github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/goroutine"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils"
)

const (
	feedbackWriteWait  = 10 * time.Second
	feedbackPongWait   = 60 * time.Second
	feedbackPingPeriod = 30 * time.Second
)

// EmitterSource hands out the merchant's feedback emitter.
type EmitterSource interface {
	Emitter(merchantID string) *feedback.Emitter
}

// FeedbackHandler exposes the advisory queue and a live stream of it.
type FeedbackHandler struct {
	emitters EmitterSource
	upgrader websocket.Upgrader
	logger   logger.Interface
}

// NewFeedbackHandler creates the handler. An empty allowedOrigins accepts
// websocket upgrades from any origin.
func NewFeedbackHandler(emitters EmitterSource, allowedOrigins []string, logger logger.Interface) *FeedbackHandler {
	return &FeedbackHandler{
		emitters: emitters,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ListActive returns the advisories that have not expired, oldest first.
// GET /feedback
func (h *FeedbackHandler) ListActive(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		utils.ErrorResponseWithError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	active := h.emitters.Emitter(mid).Active()
	utils.ListSuccessResponse(c, active, len(active))
}

// Stream upgrades to a websocket, replays the active advisories, then pushes
// each new one as a JSON text frame.
// GET /feedback/ws?token=xxx
func (h *FeedbackHandler) Stream(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		utils.ErrorResponseWithError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("failed to upgrade feedback websocket",
			"error", err,
			"merchant_id", mid,
			"ip", c.ClientIP(),
		)
		return
	}

	emitter := h.emitters.Emitter(mid)
	updates, cancel := emitter.Subscribe()
	backlog := emitter.Active()

	h.logger.Debugw("feedback websocket connected", "merchant_id", mid, "backlog", len(backlog))

	done := make(chan struct{})
	goroutine.SafeGo(h.logger, "feedback-ws-write-pump", func() {
		h.writePump(conn, mid, backlog, updates, done)
	})
	h.readPump(conn, mid)
	close(done)
	cancel()
}

// readPump only drains control frames; clients never send data.
func (h *FeedbackHandler) readPump(conn *websocket.Conn, mid string) {
	defer conn.Close()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(feedbackPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedbackPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnw("feedback websocket read error", "error", err, "merchant_id", mid)
			}
			return
		}
	}
}

func (h *FeedbackHandler) writePump(conn *websocket.Conn, mid string, backlog []feedback.Advisory, updates <-chan feedback.Advisory, done <-chan struct{}) {
	ticker := time.NewTicker(feedbackPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	// An advisory pushed between Subscribe and Active shows up in both.
	sent := make(map[string]struct{}, len(backlog))
	for _, a := range backlog {
		if !h.write(conn, mid, a) {
			return
		}
		sent[a.ID] = struct{}{}
	}

	for {
		select {
		case a, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(feedbackWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if _, dup := sent[a.ID]; dup {
				delete(sent, a.ID)
				continue
			}
			if !h.write(conn, mid, a) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedbackWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *FeedbackHandler) write(conn *websocket.Conn, mid string, a feedback.Advisory) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(feedbackWriteWait))
	if err := conn.WriteJSON(a); err != nil {
		h.logger.Warnw("failed to write feedback advisory",
			"error", err,
			"merchant_id", mid,
			"advisory_id", a.ID,
		)
		return false
	}
	return true
}
